package schema

import "github.com/mnh-jansson/m18-protocol/pkg/protoerr"

// Lookup returns the table entry for id.
func Lookup(id ID) (Entry, bool) {
	e, ok := ByID[id]
	return e, ok
}

// Decode looks up id's table entry and decodes payload per its semantic
// type. An id absent from the table is a programmer error and returns
// protoerr.SchemaMiss. A payload that is too short or otherwise unusable
// for the entry's declared type is not an error: Decode returns a Value
// with Valid false, the "no value" sentinel of spec.md §4.7.
func Decode(id ID, payload []byte) (Value, error) {
	entry, ok := Lookup(id)
	if !ok {
		return Value{}, protoerr.New(protoerr.KindSchemaMiss, "register ID not in table: "+string(id))
	}

	v := Value{ID: id, Type: entry.Type}
	switch entry.Type {
	case Uint:
		if u, ok := decodeUint(payload); ok && len(payload) == entry.Len {
			v.Uint, v.Valid = u, true
		}
	case Date:
		if t, ok := decodeDate(payload); ok {
			v.Time, v.Valid = t, true
		}
	case HHMMSS:
		if d, ok := decodeHHMMSS(payload); ok {
			v.Duration, v.Valid = d, true
		}
	case ASCII:
		if s, ok := decodeASCII(payload, entry.Len); ok {
			v.Text, v.Valid = s, true
		}
	case SN:
		if sn, ok := decodeSN(payload); ok {
			v.Serial, v.Valid = sn, true
		}
	case ADCTemp:
		if c, ok := decodeADCTemp(payload); ok {
			v.Celsius, v.Valid = c, true
		}
	case DecTemp:
		if c, ok := decodeDecTemp(payload); ok {
			v.Celsius, v.Valid = c, true
		}
	case CellV:
		if cells, ok := decodeCellV(payload); ok {
			v.Cells, v.Valid = cells, true
		}
	}
	return v, nil
}

// EncodeUserNote encodes text as the fixed-width, '-'-padded payload the
// UserNote register expects for a write.
func EncodeUserNote(text string) []byte {
	return padASCII(text, UserNoteLen)
}
