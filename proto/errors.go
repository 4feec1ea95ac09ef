package proto

import "errors"

// ErrTruncated is returned when the input buffer ends before a value's
// declared length has been fully consumed.
var ErrTruncated = errors.New("proto: truncated input")

// ErrInvalidTag is returned when a byte does not match any tag this
// decoder understands, or a length/tag combination is out of range.
var ErrInvalidTag = errors.New("proto: invalid tag")

// ErrBadUTF8 is returned when a str8/16/32 payload is not valid UTF-8.
var ErrBadUTF8 = errors.New("proto: invalid utf-8")
