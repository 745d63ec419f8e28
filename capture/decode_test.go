package capture

import (
	"testing"

	"github.com/strahe/pgreplay-sentinel/pgproto"
	"github.com/stretchr/testify/assert"
)

func TestDecodeColumnNull(t *testing.T) {
	got := decodeColumn(pgproto.ColumnData{Kind: pgproto.ColumnNull})
	assert.Nil(t, got)
}

func TestDecodeColumnUnchangedToast(t *testing.T) {
	got := decodeColumn(pgproto.ColumnData{Kind: pgproto.ColumnUnchangedToast})
	assert.Equal(t, unchangedToastSentinel, got)
}

func TestDecodeColumnBinaryIsHexEncoded(t *testing.T) {
	got := decodeColumn(pgproto.ColumnData{Kind: pgproto.ColumnBinary, Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}})
	assert.Equal(t, "0xdeadbeef", got)
}

func TestDecodeColumnTextAlwaysRendersAsString(t *testing.T) {
	// A registered numeric type OID must not change the JSON type: text
	// format is already the canonical textual representation pgoutput
	// sent, and it always decodes to a Go string.
	got := decodeColumn(pgproto.ColumnData{Kind: pgproto.ColumnText, Data: []byte("42")})
	assert.IsType(t, "", got)
	assert.Equal(t, "42", got)
}

func TestDecodeTupleUsesColumnNamesInOrder(t *testing.T) {
	cols := []pgproto.ColumnInfo{{Name: "id", DataType: 23}, {Name: "label", DataType: 25}}
	tuple := &pgproto.TupleData{Columns: []pgproto.ColumnData{
		{Kind: pgproto.ColumnText, Data: []byte("1")},
		{Kind: pgproto.ColumnText, Data: []byte("widget")},
	}}

	out := decodeTuple(cols, tuple)
	assert.Equal(t, "1", out["id"])
	assert.Equal(t, "widget", out["label"])
}

func TestDecodeTupleNilReturnsNil(t *testing.T) {
	assert.Nil(t, decodeTuple(nil, nil))
}
