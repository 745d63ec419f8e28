// Package pgproto implements the pgoutput logical replication wire
// format: byte-level message parsing, LSN handling, and relation
// metadata caching.
package pgproto

import (
	"encoding/binary"
	"fmt"

	"github.com/jackc/pgio"
)

// Reader walks a byte slice left to right, decoding the fixed-width
// and length-prefixed fields pgoutput messages are built from.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) Position() int  { return r.pos }
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) hasBytes(n int) bool {
	return r.Remaining() >= n
}

func (r *Reader) need(n int, what string) error {
	if !r.hasBytes(n) {
		return fmt.Errorf("pgproto: not enough bytes for %s at offset %d: need %d, have %d", what, r.pos, n, r.Remaining())
	}
	return nil
}

func (r *Reader) ReadByte() (byte, error) {
	if err := r.need(1, "byte"); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.need(2, "uint16"); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.need(4, "uint32"); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.need(8, "uint64"); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadCString reads bytes up to and including a NUL terminator,
// returning the string without the terminator.
func (r *Reader) ReadCString() (string, error) {
	start := r.pos
	for r.pos < len(r.buf) && r.buf[r.pos] != 0 {
		r.pos++
	}
	if r.pos >= len(r.buf) {
		return "", fmt.Errorf("pgproto: unterminated string starting at offset %d", start)
	}
	s := string(r.buf[start:r.pos])
	r.pos++
	return s, nil
}

// ReadBytes returns the next n bytes and advances past them.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("pgproto: negative length %d at offset %d", n, r.pos)
	}
	if err := r.need(n, "bytes"); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Rest returns every byte not yet consumed.
func (r *Reader) Rest() []byte {
	b := r.buf[r.pos:]
	r.pos = len(r.buf)
	return b
}

// Writer builds a wire-format message into a growable byte slice.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) WriteByte(b byte) { w.buf = append(w.buf, b) }

func (w *Writer) WriteUint16(v uint16) {
	w.buf = pgio.AppendUint16(w.buf, v)
}

func (w *Writer) WriteInt16(v int16) {
	w.WriteUint16(uint16(v))
}

func (w *Writer) WriteInt32(v int32) {
	w.buf = pgio.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) WriteInt64(v int64) {
	w.buf = pgio.AppendUint64(w.buf, uint64(v))
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf = pgio.AppendUint32(w.buf, v)
}

func (w *Writer) WriteUint64(v uint64) {
	w.buf = pgio.AppendUint64(w.buf, v)
}

func (w *Writer) WriteCString(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}
