package proto

import "encoding/binary"

// Writer accumulates a canonical serialization. The zero value is ready
// to use; callers typically start with NewWriter(sizeHint).
type Writer struct {
	buf []byte
}

// NewWriter allocates a Writer with a starting capacity hint.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the accumulated serialization.
func (w *Writer) Bytes() []byte { return w.buf }

// PutRaw appends raw bytes with no framing, for fields that are already
// fixed-size and need no length prefix (e.g. a 32-byte hash).
func (w *Writer) PutRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// PutBool writes MessagePack true/false.
func (w *Writer) PutBool(v bool) {
	if v {
		w.buf = append(w.buf, tagTrue)
	} else {
		w.buf = append(w.buf, tagFalse)
	}
}

// PutUint8 writes an unsigned byte using fixint when it fits in 7 bits,
// else the uint8 tag.
func (w *Writer) PutUint8(v uint8) {
	if v <= tagFixIntMax {
		w.buf = append(w.buf, v)
		return
	}
	w.buf = append(w.buf, tagUint8, v)
}

// PutUint16 writes a uint16 with the uint16 tag.
func (w *Writer) PutUint16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tagUint16)
	w.buf = append(w.buf, tmp[:]...)
}

// PutUint32 writes a uint32 with the uint32 tag.
func (w *Writer) PutUint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tagUint32)
	w.buf = append(w.buf, tmp[:]...)
}

// PutUint64 writes a uint64 with the uint64 tag.
func (w *Writer) PutUint64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tagUint64)
	w.buf = append(w.buf, tmp[:]...)
}

// PutInt64 writes a signed 64-bit integer with the int64 tag. Used for
// network_timestamp, which may be negative relative to an epoch.
func (w *Writer) PutInt64(v int64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	w.buf = append(w.buf, tagInt64)
	w.buf = append(w.buf, tmp[:]...)
}

// PutBytes writes a bin8/16/32-framed byte slice, choosing the smallest
// tag that fits the length.
func (w *Writer) PutBytes(b []byte) {
	n := len(b)
	switch {
	case n < 1<<8:
		w.buf = append(w.buf, tagBin8, byte(n))
	case n < 1<<16:
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], uint16(n))
		w.buf = append(w.buf, tagBin16)
		w.buf = append(w.buf, tmp[:]...)
	default:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(n))
		w.buf = append(w.buf, tagBin32)
		w.buf = append(w.buf, tmp[:]...)
	}
	w.buf = append(w.buf, b...)
}

// PutString writes a str8/16/32-framed UTF-8 string, using the fixstr
// range when it fits.
func (w *Writer) PutString(s string) {
	n := len(s)
	switch {
	case n <= fixStrLimit:
		w.buf = append(w.buf, tagFixStrMin+byte(n))
	case n < 1<<8:
		w.buf = append(w.buf, tagStr8, byte(n))
	case n < 1<<16:
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], uint16(n))
		w.buf = append(w.buf, tagStr16)
		w.buf = append(w.buf, tmp[:]...)
	default:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(n))
		w.buf = append(w.buf, tagStr32)
		w.buf = append(w.buf, tmp[:]...)
	}
	w.buf = append(w.buf, s...)
}

// PutArrayHeader writes a fixarray/array16/array32 header for a
// container of n elements; the elements themselves are written by the
// caller immediately after.
func (w *Writer) PutArrayHeader(n int) {
	switch {
	case n <= fixArrayLimit:
		w.buf = append(w.buf, tagFixArrayMin+byte(n))
	case n < 1<<16:
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], uint16(n))
		w.buf = append(w.buf, tagArray16)
		w.buf = append(w.buf, tmp[:]...)
	default:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(n))
		w.buf = append(w.buf, tagArray32)
		w.buf = append(w.buf, tmp[:]...)
	}
}

// PutVariant writes an enum discriminant followed by its payload bytes,
// the [tag_u8, payload] convention spec.md §4.1 specifies for Rust-style
// tagged unions. A unit variant (len(payload)==0) collapses to the bare
// tag byte.
func (w *Writer) PutVariant(tag uint8, payload []byte) {
	if len(payload) == 0 {
		w.PutUint8(tag)
		return
	}
	w.PutUint8(tag)
	w.PutRaw(payload)
}
