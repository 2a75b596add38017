package schema

import "fmt"

// ID names one entry in the register table. IDs are stable strings rather
// than raw addresses so callers (pkg/session in particular) can refer to
// "CellVoltages" instead of memorizing 0x4000.
type ID string

// Entry is one row of the static register table: the address and length a
// read/write operates on, and the semantic type that governs how its
// payload is decoded.
type Entry struct {
	ID    ID
	Addr  uint16
	Len   int
	Type  SemanticType
	Label string
}

// Known IDs for the registers spec.md names explicitly or exercises in its
// worked examples.
const (
	IdentityManufactureDate ID = "IdentityManufactureDate"
	IdentitySerial          ID = "IdentitySerial"
	IdentityActivationDate  ID = "IdentityActivationDate"
	UserNote                ID = "UserNote"
	WallClock               ID = "WallClock"

	CellVoltages     ID = "CellVoltages"
	PackTemperature  ID = "PackTemperature"
	GunTemperature   ID = "GunTemperature"

	CumulativeChargeCount    ID = "CumulativeChargeCount"
	CumulativeDischargeCount ID = "CumulativeDischargeCount"
	CumulativeChargeDuration ID = "CumulativeChargeDuration"
	// ReservedAlwaysEmpty is the 0x9152 register spec.md §9 documents as
	// always answering with a zero-length payload. It is kept in the table
	// (rather than special-cased in code) so ReadAll's sweep simply
	// decodes it to "no value" like any other short response.
	ReservedAlwaysEmpty ID = "ReservedAlwaysEmpty"
)

// UserNoteLen is the fixed width of the free-text note field (spec.md §4.8:
// 20 octets, padded with '-').
const UserNoteLen = 20

// Registers is the static register table (spec.md §4.7), covering the
// banks spec.md names: identity/clock (0x00xx), live cell/temperature
// telemetry (0x40xx), opaque per-unit telemetry (0x60xx), cumulative usage
// histograms (0x90xx-0x91xx), and the opaque trailer (0xA0xx). The
// cumulative-usage bank's bucketed histograms are generated in init rather
// than listed by hand, since they are mechanically repetitive, at
// consecutive addresses. The sweep's "few holes left opaque" are not gaps
// in this table: pkg/session leaves a few of these IDs out of its sweep
// list.
var Registers = buildRegisters()

// ByID indexes Registers for O(1) lookup.
var ByID = func() map[ID]Entry {
	m := make(map[ID]Entry, len(Registers))
	for _, e := range Registers {
		m[e.ID] = e
	}
	return m
}()

func buildRegisters() []Entry {
	entries := []Entry{
		{IdentityManufactureDate, 0x0000, 4, Date, "manufacture date"},
		{IdentitySerial, 0x0004, 5, SN, "battery type + serial"},
		{IdentityActivationDate, 0x000C, 4, Date, "first activation date"},
		{UserNote, 0x0023, UserNoteLen, ASCII, "user-writable note"},
		{WallClock, 0x0037, 4, Date, "pack wall-clock"},

		{CellVoltages, 0x4000, 10, CellV, "five series cell voltages"},
		{PackTemperature, 0x400A, 2, ADCTemp, "pack thermistor ADC code"},
		{GunTemperature, 0x400C, 2, DecTemp, "charger-gun temperature sensor"},
	}

	// 0x60xx: opaque per-unit telemetry the teacher's pack never decodes
	// further; kept as plain uint registers so a sweep still surfaces them.
	for i := 0; i < 16; i++ {
		addr := uint16(0x6000 + i*2)
		entries = append(entries, Entry{
			ID:    ID(sprintID("ForgeTelemetry", i)),
			Addr:  addr,
			Len:   2,
			Type:  Uint,
			Label: "opaque per-unit telemetry",
		})
	}

	// 0x90xx-0x91xx: cumulative usage counters and histogram buckets.
	addr := uint16(0x9000)
	entries = append(entries,
		Entry{CumulativeChargeCount, addr, 2, Uint, "lifetime charge count"},
		Entry{CumulativeDischargeCount, addr + 2, 2, Uint, "lifetime discharge count"},
	)
	addr += 4

	type bucketGroup struct {
		name    string
		count   int
		typ     SemanticType
		width   int
		label   string
	}
	groups := []bucketGroup{
		{"DischargeCurrentBucket", 16, Uint, 2, "discharge-current histogram bucket"},
		{"StartVoltageBucket", 20, Uint, 2, "discharge start-voltage histogram bucket"},
		{"EndVoltageBucket", 20, Uint, 2, "discharge end-voltage histogram bucket"},
		{"StartTempBucket", 20, DecTemp, 2, "discharge start-temperature histogram bucket"},
		{"EndTempBucket", 20, DecTemp, 2, "discharge end-temperature histogram bucket"},
		{"ChargeDurationBucket", 20, Uint, 2, "charge-duration histogram bucket"},
	}
	for _, g := range groups {
		for i := 0; i < g.count; i++ {
			entries = append(entries, Entry{
				ID:    ID(sprintID(g.name, i)),
				Addr:  addr,
				Len:   g.width,
				Type:  g.typ,
				Label: g.label,
			})
			addr += uint16(g.width)
		}
	}

	entries = append(entries, Entry{CumulativeChargeDuration, addr, 4, HHMMSS, "lifetime total charge duration"})
	addr += 4

	// The sentinel lives at a fixed, spec-documented address rather than
	// wherever the generator above happens to land, so it is placed
	// explicitly instead of via addr.
	entries = append(entries, Entry{ReservedAlwaysEmpty, 0x9152, 2, Uint, "documented always-empty register"})

	// 0xA0xx: opaque trailing bytes, split into two uint registers since
	// the uint decoder caps at 4 octets.
	entries = append(entries,
		Entry{ID: "OpaqueTrailerHi", Addr: 0xA000, Len: 4, Type: Uint, Label: "opaque trailer, high word"},
		Entry{ID: "OpaqueTrailerLo", Addr: 0xA004, Len: 2, Type: Uint, Label: "opaque trailer, low word"},
	)

	return entries
}

func sprintID(prefix string, i int) string {
	return fmt.Sprintf("%s%d", prefix, i)
}
