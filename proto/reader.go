package proto

import (
	"encoding/binary"
	"unicode/utf8"
)

// Reader consumes a canonical serialization produced by Writer. All
// Get* methods are strictly bounds-checked against the remaining buffer;
// none ever reads past the declared length of its container.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding starting at offset 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining returns the number of unconsumed bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Done reports whether the entire buffer has been consumed.
func (r *Reader) Done() bool { return r.pos >= len(r.buf) }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return ErrTruncated
	}
	return nil
}

// GetRaw reads exactly n unframed bytes.
func (r *Reader) GetRaw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *Reader) byte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// GetBool reads a MessagePack true/false.
func (r *Reader) GetBool() (bool, error) {
	b, err := r.byte()
	if err != nil {
		return false, err
	}
	switch b {
	case tagTrue:
		return true, nil
	case tagFalse:
		return false, nil
	default:
		return false, ErrInvalidTag
	}
}

// GetUint8 reads a fixint or uint8-tagged byte.
func (r *Reader) GetUint8() (uint8, error) {
	b, err := r.byte()
	if err != nil {
		return 0, err
	}
	if b <= tagFixIntMax {
		return b, nil
	}
	if b != tagUint8 {
		return 0, ErrInvalidTag
	}
	return r.byte()
}

// GetUint16 reads a uint16-tagged value.
func (r *Reader) GetUint16() (uint16, error) {
	tag, err := r.byte()
	if err != nil {
		return 0, err
	}
	if tag != tagUint16 {
		return 0, ErrInvalidTag
	}
	raw, err := r.GetRaw(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(raw), nil
}

// GetUint32 reads a uint32-tagged value.
func (r *Reader) GetUint32() (uint32, error) {
	tag, err := r.byte()
	if err != nil {
		return 0, err
	}
	if tag != tagUint32 {
		return 0, ErrInvalidTag
	}
	raw, err := r.GetRaw(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(raw), nil
}

// GetUint64 reads a uint64-tagged value.
func (r *Reader) GetUint64() (uint64, error) {
	tag, err := r.byte()
	if err != nil {
		return 0, err
	}
	if tag != tagUint64 {
		return 0, ErrInvalidTag
	}
	raw, err := r.GetRaw(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

// GetInt64 reads an int64-tagged value.
func (r *Reader) GetInt64() (int64, error) {
	tag, err := r.byte()
	if err != nil {
		return 0, err
	}
	if tag != tagInt64 {
		return 0, ErrInvalidTag
	}
	raw, err := r.GetRaw(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(raw)), nil
}

// GetBytes reads a bin8/16/32-framed blob.
func (r *Reader) GetBytes() ([]byte, error) {
	tag, err := r.byte()
	if err != nil {
		return nil, err
	}

	var n int
	switch tag {
	case tagBin8:
		b, err := r.byte()
		if err != nil {
			return nil, err
		}
		n = int(b)
	case tagBin16:
		raw, err := r.GetRaw(2)
		if err != nil {
			return nil, err
		}
		n = int(binary.BigEndian.Uint16(raw))
	case tagBin32:
		raw, err := r.GetRaw(4)
		if err != nil {
			return nil, err
		}
		n = int(binary.BigEndian.Uint32(raw))
	default:
		return nil, ErrInvalidTag
	}

	return r.GetRaw(n)
}

// GetString reads a fixstr/str8/16/32-framed UTF-8 string.
func (r *Reader) GetString() (string, error) {
	tag, err := r.byte()
	if err != nil {
		return "", err
	}

	var n int
	switch {
	case tag >= tagFixStrMin && tag <= tagFixStrMax:
		n = int(tag - tagFixStrMin)
	case tag == tagStr8:
		b, err := r.byte()
		if err != nil {
			return "", err
		}
		n = int(b)
	case tag == tagStr16:
		raw, err := r.GetRaw(2)
		if err != nil {
			return "", err
		}
		n = int(binary.BigEndian.Uint16(raw))
	case tag == tagStr32:
		raw, err := r.GetRaw(4)
		if err != nil {
			return "", err
		}
		n = int(binary.BigEndian.Uint32(raw))
	default:
		return "", ErrInvalidTag
	}

	raw, err := r.GetRaw(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", ErrBadUTF8
	}
	return string(raw), nil
}

// GetArrayHeader reads a fixarray/array16/array32 header and returns the
// declared element count.
func (r *Reader) GetArrayHeader() (int, error) {
	tag, err := r.byte()
	if err != nil {
		return 0, err
	}

	switch {
	case tag >= tagFixArrayMin && tag <= tagFixArrayMax:
		return int(tag - tagFixArrayMin), nil
	case tag == tagArray16:
		raw, err := r.GetRaw(2)
		if err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint16(raw)), nil
	case tag == tagArray32:
		raw, err := r.GetRaw(4)
		if err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint32(raw)), nil
	default:
		return 0, ErrInvalidTag
	}
}

// GetVariantTag reads an enum discriminant byte without consuming any
// payload; the caller dispatches on the returned tag to decode the rest.
func (r *Reader) GetVariantTag() (uint8, error) {
	return r.GetUint8()
}
