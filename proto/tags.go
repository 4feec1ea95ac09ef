package proto

// Tag bytes for the MessagePack-compatible wire family (spec §4.1).
const (
	tagFixArrayMin byte = 0x90
	tagFixArrayMax byte = 0x9f
	tagArray16     byte = 0xdc
	tagArray32     byte = 0xdd

	tagFixStrMin byte = 0xa0
	tagFixStrMax byte = 0xbf
	tagStr8      byte = 0xd9
	tagStr16     byte = 0xda
	tagStr32     byte = 0xdb

	tagBin8  byte = 0xc4
	tagBin16 byte = 0xc5
	tagBin32 byte = 0xc6

	tagUint8  byte = 0xcc
	tagUint16 byte = 0xcd
	tagUint32 byte = 0xce
	tagUint64 byte = 0xcf

	tagInt8  byte = 0xd0
	tagInt16 byte = 0xd1
	tagInt32 byte = 0xd2
	tagInt64 byte = 0xd3

	tagFixIntMax byte = 0x7f // 0x00-0x7f: positive fixint
	tagNil       byte = 0xc0
	tagFalse     byte = 0xc2
	tagTrue      byte = 0xc3
)

const (
	fixArrayLimit = int(tagFixArrayMax - tagFixArrayMin) // 15
	fixStrLimit   = int(tagFixStrMax - tagFixStrMin)      // 31
)
