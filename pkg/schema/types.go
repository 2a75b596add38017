// Package schema implements the Schema Decoder: a static table mapping
// byte windows of the pack's memory map to semantic values, and one
// decoder per semantic type (spec.md §3, §4.7). The decoder is pure given
// a payload — it performs no I/O.
package schema

import (
	"encoding/binary"
	"fmt"
	"time"
)

// SemanticType identifies how a register's raw payload should be
// interpreted.
type SemanticType int

const (
	// Uint is a big-endian unsigned integer of 1-4 octets.
	Uint SemanticType = iota
	// Date is a 4-octet big-endian POSIX-seconds timestamp, UTC.
	Date
	// HHMMSS is a 4-octet big-endian seconds count, rendered H:MM:SS.
	HHMMSS
	// ASCII is a fixed-length byte window, padded with '-'.
	ASCII
	// SN is a 2-octet battery type code plus a 3-octet serial number.
	SN
	// ADCTemp is a 2-octet thermistor ADC code converted to Celsius by
	// linear interpolation between two calibration points.
	ADCTemp
	// DecTemp is two octets: a signed integer Celsius part and a
	// 1/256-of-a-degree fractional part.
	DecTemp
	// CellV is five 2-octet big-endian millivolt values, one per series
	// cell.
	CellV
)

// SerialNumber is the decoded form of an SN register.
type SerialNumber struct {
	BatteryType uint16
	Serial      uint32 // 24-bit value, stored widened
}

// Value is the decoded result of a single register. When Valid is false,
// payload was too short or otherwise unusable for the register's declared
// type — the sentinel "no value" of spec.md §4.7 — and the typed fields
// are zero.
type Value struct {
	ID    ID
	Type  SemanticType
	Valid bool

	Uint     uint64
	Time     time.Time
	Duration time.Duration
	Text     string
	Serial   SerialNumber
	Celsius  float64
	Cells    [5]uint16
}

// String renders Value the way a diagnostic dump would: HHMMSS as H:MM:SS,
// dates as RFC 3339 in UTC, ASCII as the text with its '-' padding already
// trimmed by decodeASCII, temperatures to two decimals.
func (v Value) String() string {
	if !v.Valid {
		return "<no value>"
	}
	switch v.Type {
	case Uint:
		return fmt.Sprintf("%d", v.Uint)
	case Date:
		return v.Time.UTC().Format(time.RFC3339)
	case HHMMSS:
		return formatHHMMSS(v.Duration)
	case ASCII:
		return v.Text
	case SN:
		return fmt.Sprintf("Type=%d, Serial=%d", v.Serial.BatteryType, v.Serial.Serial)
	case ADCTemp, DecTemp:
		return fmt.Sprintf("%.2f°C", v.Celsius)
	case CellV:
		return fmt.Sprintf("%v mV", v.Cells)
	default:
		return "<unknown type>"
	}
}

func formatHHMMSS(d time.Duration) string {
	total := int(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// decodeUint decodes a big-endian unsigned integer of 1-4 octets.
func decodeUint(payload []byte) (uint64, bool) {
	if len(payload) < 1 || len(payload) > 4 {
		return 0, false
	}
	var v uint64
	for _, b := range payload {
		v = v<<8 | uint64(b)
	}
	return v, true
}

// decodeDate decodes a 4-octet big-endian POSIX-seconds timestamp.
func decodeDate(payload []byte) (time.Time, bool) {
	if len(payload) != 4 {
		return time.Time{}, false
	}
	secs := binary.BigEndian.Uint32(payload)
	return time.Unix(int64(secs), 0).UTC(), true
}

// decodeHHMMSS decodes a 4-octet big-endian seconds count.
func decodeHHMMSS(payload []byte) (time.Duration, bool) {
	if len(payload) != 4 {
		return 0, false
	}
	secs := binary.BigEndian.Uint32(payload)
	return time.Duration(secs) * time.Second, true
}

// decodeASCII decodes a fixed-length byte window, trimming trailing '-'
// padding for display while still requiring the declared length to match.
func decodeASCII(payload []byte, length int) (string, bool) {
	if len(payload) != length {
		return "", false
	}
	text := string(payload)
	trimmed := text
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '-' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return trimmed, true
}

// padASCII pads text with '-' up to length, truncating if text is longer,
// the encoder side of decodeASCII used when writing the user-note field.
func padASCII(text string, length int) []byte {
	out := make([]byte, length)
	for i := range out {
		out[i] = '-'
	}
	copy(out, text)
	if len(text) > length {
		copy(out, text[:length])
	}
	return out
}

// decodeSN decodes a 2-octet battery type code plus a 3-octet serial.
func decodeSN(payload []byte) (SerialNumber, bool) {
	if len(payload) != 5 {
		return SerialNumber{}, false
	}
	batteryType := binary.BigEndian.Uint16(payload[0:2])
	serial := uint32(payload[2])<<16 | uint32(payload[3])<<8 | uint32(payload[4])
	return SerialNumber{BatteryType: batteryType, Serial: serial}, true
}

// ADC calibration points for the thermistor linear interpolation (spec.md
// §3): (0x0180 <-> 50°C via a 10k reference) and (0x022E <-> 35°C via a
// 20k reference). The interpolation is linear in ADC code, not logarithmic
// in resistance — an approximation preserved deliberately, not a mistake
// (spec.md §9).
const (
	adcCalLow  = 0x0180
	tempCalLow = 50.0
	adcCalHigh = 0x022E
	tempCalHigh = 35.0
)

// decodeADCTemp converts a 2-octet thermistor ADC code to Celsius.
func decodeADCTemp(payload []byte) (float64, bool) {
	if len(payload) != 2 {
		return 0, false
	}
	code := float64(binary.BigEndian.Uint16(payload))
	frac := (code - adcCalLow) / (adcCalHigh - adcCalLow)
	return tempCalLow + (tempCalHigh-tempCalLow)*frac, true
}

// decodeDecTemp converts two octets (signed integer °C, 1/256ths
// fractional) to Celsius.
func decodeDecTemp(payload []byte) (float64, bool) {
	if len(payload) != 2 {
		return 0, false
	}
	whole := int8(payload[0])
	frac := float64(payload[1]) / 256.0
	if whole < 0 {
		return float64(whole) - frac, true
	}
	return float64(whole) + frac, true
}

// decodeCellV decodes five 2-octet big-endian millivolt values.
func decodeCellV(payload []byte) ([5]uint16, bool) {
	var cells [5]uint16
	if len(payload) != 10 {
		return cells, false
	}
	for i := 0; i < 5; i++ {
		cells[i] = binary.BigEndian.Uint16(payload[i*2 : i*2+2])
	}
	return cells, true
}
