// Package protocolmsg implements ProtocolMessage, the tagged union of
// wire-level messages exchanged between sessions (spec §6). Every
// variant is serialized with the proto codec, tagged by a MessageType
// discriminant, and handed to the transport layer for fragmentation.
//
// MessageType is never derived from reflection: each variant knows its
// own tag via MessageType(). Unlike the dag package's in-band variant
// tags, the tag is not written into the body; it travels beside the
// body and is passed to Unmarshal.
package protocolmsg
