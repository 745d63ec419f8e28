package capture

import (
	"encoding/hex"

	"github.com/strahe/pgreplay-sentinel/pgproto"
)

// unchangedToastSentinel is the JSON rendering of a TOAST column that
// pgoutput reported as unchanged; it lets a consumer distinguish "we
// don't know this value" from "this value is null".
var unchangedToastSentinel = map[string]bool{"__unchanged__": true}

// decodeColumn converts one wire-format column value into the Go
// value that will be marshaled into an event's old/new object. Text
// columns always render as strings: pgoutput's text format is already
// the canonical textual representation, and the column's PostgreSQL
// type OID must not change the JSON type a consumer sees.
func decodeColumn(cd pgproto.ColumnData) any {
	switch cd.Kind {
	case pgproto.ColumnNull:
		return nil
	case pgproto.ColumnUnchangedToast:
		return unchangedToastSentinel
	case pgproto.ColumnBinary:
		return "0x" + hex.EncodeToString(cd.Data)
	case pgproto.ColumnText:
		return string(cd.Data)
	default:
		return nil
	}
}

// decodeTuple renders every column of a tuple into a name-keyed map,
// in relation column order. cols and tuple must have matching length;
// callers get that guarantee from the relation cache being populated
// before any tuple message referencing it is processed.
func decodeTuple(cols []pgproto.ColumnInfo, tuple *pgproto.TupleData) map[string]any {
	if tuple == nil {
		return nil
	}
	out := make(map[string]any, len(tuple.Columns))
	for i, cd := range tuple.Columns {
		name := ""
		if i < len(cols) {
			name = cols[i].Name
		}
		out[name] = decodeColumn(cd)
	}
	return out
}
