package session

import "github.com/mnh-jansson/m18-protocol/pkg/schema"

// holes is the set of register IDs deliberately left out of the sweep
// list, matching the "covers all known banks with a few holes left
// opaque" character of spec.md §4.8's read_all. Any holed ID is still
// reachable individually through Session.Read.
var holes = map[schema.ID]bool{
	"DischargeCurrentBucket3":  true,
	"StartVoltageBucket7":      true,
	"EndVoltageBucket7":        true,
	"StartTempBucket11":        true,
	"EndTempBucket11":          true,
	"ChargeDurationBucket15":   true,
	"ForgeTelemetry9":          true,
}

// sweepList is the coarse block list read_all iterates: every table entry
// except the deliberate holes above, in table order.
var sweepList = buildSweepList()

func buildSweepList() []schema.ID {
	ids := make([]schema.ID, 0, len(schema.Registers))
	for _, e := range schema.Registers {
		if holes[e.ID] {
			continue
		}
		ids = append(ids, e.ID)
	}
	return ids
}

// healthSubset is the small set of registers a quick health report reads,
// distinct from a full read_all sweep.
var healthSubset = []schema.ID{
	schema.CellVoltages,
	schema.PackTemperature,
	schema.GunTemperature,
	schema.CumulativeChargeCount,
	schema.CumulativeDischargeCount,
	schema.CumulativeChargeDuration,
}
