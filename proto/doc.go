// Package proto implements the canonical, length-prefixed binary codec
// used to serialize every on-the-wire and content-addressed type in the
// merkle-tox conversation engine.
//
// The wire family is MessagePack-compatible: fixarray/array16/array32 for
// sequences, bin8/16/32 for binary blobs, str8/16/32 for UTF-8 text,
// fixint plus the 0xcc/0xcd/0xce/0xcf (and signed 0xd0-0xd3) integer tags
// for numbers. Enum values serialize as a [tag byte, payload] pair, where
// unit variants collapse to the bare tag byte.
//
// Three encoding shapes recur across the higher-level packages built on
// this codec (spec.md's "array/flat/bits modes", expressed here as plain
// Go functions rather than a reflection-driven derive system, since none
// of the reference implementations in this codebase generate codecs by
// reflection — they hand-write Serialize/Parse pairs per type):
//
//   - Array mode: Writer.PutArrayHeader(n) followed by n encoded fields in
//     declaration order. Used for every struct with a field that isn't
//     fixed-size bytes (e.g. a nested struct, a slice of structs).
//   - Flat mode: for structs where every field is a fixed-size byte array
//     (or a single trailing dynamic bytes/string), the fields are
//     concatenated and written as one length-prefixed blob via
//     Writer.PutBytes/Reader.GetBytes — no per-field framing overhead.
//     Callers opt into this by concatenating their own byte-like fields
//     before calling PutBytes.
//   - Bits mode: a small integer masquerading as its own type (e.g. a
//     permission bitmask, a tier enum) is written with Writer.PutUint8 et al.
//
// Decoding never reads past the end of its input: a Reader tracks its
// position in the buffer, and every length it reads is checked against
// the remaining buffer length before any slicing occurs.
package proto
