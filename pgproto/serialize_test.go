package pgproto_test

import (
	"testing"

	"github.com/strahe/pgreplay-sentinel/pgproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripBegin(t *testing.T) {
	buf := []byte{'B'}
	buf = append(buf, be64(100)...)
	buf = append(buf, be64(1000)...)
	buf = append(buf, be32(42)...)

	msg, err := pgproto.Parse(buf, false)
	require.NoError(t, err)

	out, err := pgproto.Serialize(msg, false)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestRoundTripCommit(t *testing.T) {
	buf := []byte{'C', 0}
	buf = append(buf, be64(100)...)
	buf = append(buf, be64(200)...)
	buf = append(buf, be64(1000)...)

	msg, err := pgproto.Parse(buf, false)
	require.NoError(t, err)

	out, err := pgproto.Serialize(msg, false)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestRoundTripRelationAndInsert(t *testing.T) {
	buf := []byte{'R'}
	buf = append(buf, be32(7)...)
	buf = append(buf, cstr("public")...)
	buf = append(buf, cstr("widgets")...)
	buf = append(buf, 'd')
	buf = append(buf, be16(2)...)
	buf = append(buf, 1)
	buf = append(buf, cstr("id")...)
	buf = append(buf, be32(23)...)
	buf = append(buf, be32(asUint32(-1))...)
	buf = append(buf, 0)
	buf = append(buf, cstr("name")...)
	buf = append(buf, be32(25)...)
	buf = append(buf, be32(asUint32(-1))...)

	msg, err := pgproto.Parse(buf, false)
	require.NoError(t, err)
	out, err := pgproto.Serialize(msg, false)
	require.NoError(t, err)
	assert.Equal(t, buf, out)

	insertBuf := []byte{'I'}
	insertBuf = append(insertBuf, be32(7)...)
	insertBuf = append(insertBuf, 'N')
	insertBuf = append(insertBuf, be16(2)...)
	insertBuf = append(insertBuf, 't')
	insertBuf = append(insertBuf, be32(1)...)
	insertBuf = append(insertBuf, '1')
	insertBuf = append(insertBuf, 'n')

	imsg, err := pgproto.Parse(insertBuf, false)
	require.NoError(t, err)
	iout, err := pgproto.Serialize(imsg, false)
	require.NoError(t, err)
	assert.Equal(t, insertBuf, iout)
}

func TestRoundTripUpdateWithOldTuple(t *testing.T) {
	buf := []byte{'U'}
	buf = append(buf, be32(7)...)
	buf = append(buf, 'O')
	buf = append(buf, be16(1)...)
	buf = append(buf, 'b')
	buf = append(buf, be32(2)...)
	buf = append(buf, 0xDE, 0xAD)
	buf = append(buf, 'N')
	buf = append(buf, be16(1)...)
	buf = append(buf, 'u')

	msg, err := pgproto.Parse(buf, false)
	require.NoError(t, err)
	out, err := pgproto.Serialize(msg, false)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestRoundTripDelete(t *testing.T) {
	buf := []byte{'D'}
	buf = append(buf, be32(7)...)
	buf = append(buf, 'K')
	buf = append(buf, be16(1)...)
	buf = append(buf, 't')
	buf = append(buf, be32(1)...)
	buf = append(buf, '5')

	msg, err := pgproto.Parse(buf, false)
	require.NoError(t, err)
	out, err := pgproto.Serialize(msg, false)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestRoundTripTruncate(t *testing.T) {
	buf := []byte{'T'}
	buf = append(buf, be32(2)...)
	buf = append(buf, 3)
	buf = append(buf, be32(7)...)
	buf = append(buf, be32(8)...)

	msg, err := pgproto.Parse(buf, false)
	require.NoError(t, err)
	out, err := pgproto.Serialize(msg, false)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestRoundTripStreamStartCommitAbort(t *testing.T) {
	start := []byte{'S'}
	start = append(start, be32(55)...)
	start = append(start, 1)
	msg, err := pgproto.Parse(start, false)
	require.NoError(t, err)
	out, err := pgproto.Serialize(msg, false)
	require.NoError(t, err)
	assert.Equal(t, start, out)

	stop := []byte{'E'}
	msg, err = pgproto.Parse(stop, false)
	require.NoError(t, err)
	out, err = pgproto.Serialize(msg, false)
	require.NoError(t, err)
	assert.Equal(t, stop, out)

	commit := []byte{'c'}
	commit = append(commit, be32(55)...)
	commit = append(commit, 7) // flags
	commit = append(commit, be64(10)...)
	commit = append(commit, be64(20)...)
	commit = append(commit, be64(30)...)
	msg, err = pgproto.Parse(commit, false)
	require.NoError(t, err)
	out, err = pgproto.Serialize(msg, false)
	require.NoError(t, err)
	assert.Equal(t, commit, out)
	assert.Equal(t, uint8(7), msg.StreamCommit.Flags)

	abort := []byte{'A'}
	abort = append(abort, be32(55)...)
	abort = append(abort, be32(3)...)
	msg, err = pgproto.Parse(abort, false)
	require.NoError(t, err)
	out, err = pgproto.Serialize(msg, false)
	require.NoError(t, err)
	assert.Equal(t, abort, out)
}

func TestRoundTripOriginTypeMessage(t *testing.T) {
	origin := []byte{'O'}
	origin = append(origin, be64(100)...)
	origin = append(origin, cstr("upstream")...)
	msg, err := pgproto.Parse(origin, false)
	require.NoError(t, err)
	out, err := pgproto.Serialize(msg, false)
	require.NoError(t, err)
	assert.Equal(t, origin, out)

	typ := []byte{'Y'}
	typ = append(typ, be32(16400)...)
	typ = append(typ, cstr("public")...)
	typ = append(typ, cstr("status")...)
	msg, err = pgproto.Parse(typ, false)
	require.NoError(t, err)
	out, err = pgproto.Serialize(msg, false)
	require.NoError(t, err)
	assert.Equal(t, typ, out)

	logical := []byte{'M'}
	logical = append(logical, 1)
	logical = append(logical, be64(500)...)
	logical = append(logical, cstr("app")...)
	logical = append(logical, be32(3)...)
	logical = append(logical, 'f', 'o', 'o')
	msg, err = pgproto.Parse(logical, false)
	require.NoError(t, err)
	out, err = pgproto.Serialize(msg, false)
	require.NoError(t, err)
	assert.Equal(t, logical, out)
}

func TestRoundTripInsideStreamPreservesLeadingXid(t *testing.T) {
	insertBuf := []byte{'I'}
	insertBuf = append(insertBuf, be32(99)...)
	insertBuf = append(insertBuf, be32(7)...)
	insertBuf = append(insertBuf, 'N')
	insertBuf = append(insertBuf, be16(1)...)
	insertBuf = append(insertBuf, 't')
	insertBuf = append(insertBuf, be32(1)...)
	insertBuf = append(insertBuf, '1')

	msg, err := pgproto.Parse(insertBuf, true)
	require.NoError(t, err)
	out, err := pgproto.Serialize(msg, true)
	require.NoError(t, err)
	assert.Equal(t, insertBuf, out)

	deleteBuf := []byte{'D'}
	deleteBuf = append(deleteBuf, be32(99)...)
	deleteBuf = append(deleteBuf, be32(7)...)
	deleteBuf = append(deleteBuf, 'K')
	deleteBuf = append(deleteBuf, be16(1)...)
	deleteBuf = append(deleteBuf, 'n')

	dmsg, err := pgproto.Parse(deleteBuf, true)
	require.NoError(t, err)
	dout, err := pgproto.Serialize(dmsg, true)
	require.NoError(t, err)
	assert.Equal(t, deleteBuf, dout)

	truncateBuf := []byte{'T'}
	truncateBuf = append(truncateBuf, be32(99)...)
	truncateBuf = append(truncateBuf, be32(1)...)
	truncateBuf = append(truncateBuf, 0)
	truncateBuf = append(truncateBuf, be32(7)...)

	tmsg, err := pgproto.Parse(truncateBuf, true)
	require.NoError(t, err)
	tout, err := pgproto.Serialize(tmsg, true)
	require.NoError(t, err)
	assert.Equal(t, truncateBuf, tout)
}

func TestSerializeUnknownKindErrors(t *testing.T) {
	_, err := pgproto.Serialize(&pgproto.ReplicationMessage{Kind: 'Z'}, false)
	assert.Error(t, err)
}
