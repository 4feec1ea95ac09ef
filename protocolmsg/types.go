package protocolmsg

import (
	"errors"

	"github.com/opd-ai/merkle-tox/dag"
	"github.com/opd-ai/merkle-tox/proto"
)

// MessageType discriminants, bit-exact per spec §6 so independent
// implementations interoperate on the wire.
const (
	MessageTypeCapsAnnounce       uint8 = 0x01
	MessageTypeCapsAck            uint8 = 0x02
	MessageTypeSyncHeads          uint8 = 0x03
	MessageTypeFetchBatchReq      uint8 = 0x04
	MessageTypeMerkleNode         uint8 = 0x05
	MessageTypeBlobQuery          uint8 = 0x06
	MessageTypeBlobAvail          uint8 = 0x07
	MessageTypeBlobReq            uint8 = 0x08
	MessageTypeBlobData           uint8 = 0x09
	MessageTypeSyncSketch         uint8 = 0x0A
	MessageTypeSyncReconFail      uint8 = 0x0B
	MessageTypeSyncShardChecksums uint8 = 0x0C
	MessageTypeHandshakeError     uint8 = 0x0D
	MessageTypeReconPowChallenge  uint8 = 0x0E
	MessageTypeReconPowSolution   uint8 = 0x0F
)

// ErrUnknownMessageType is returned by Unmarshal when its messageType
// argument doesn't match any known variant.
var ErrUnknownMessageType = errors.New("protocolmsg: unknown message type")

// ProtocolMessage is a wire-level message body, one per MessageType.
type ProtocolMessage interface {
	MessageType() uint8
	marshalBody(w *proto.Writer)
}

// ConversationID names which conversation a message applies to; most
// variants carry one explicitly since a session may multiplex several
// conversations with one peer.
type ConversationID [32]byte

// CapsAnnounce advertises protocol version and feature bits during
// handshake.
type CapsAnnounce struct {
	Version  uint32
	Features uint64
}

func (CapsAnnounce) MessageType() uint8 { return MessageTypeCapsAnnounce }

// CapsAck acknowledges a peer's CapsAnnounce with this endpoint's own
// version and features.
type CapsAck struct {
	Version  uint32
	Features uint64
}

func (CapsAck) MessageType() uint8 { return MessageTypeCapsAck }

// SyncHeads announces this endpoint's current heads for a
// conversation, truncated to MAX_HEADS_SYNC by the session layer
// before this message is built.
type SyncHeads struct {
	Conv       ConversationID
	Heads      []dag.NodeHash
	AdminHeads []dag.NodeHash
	Flags      uint8
}

func (SyncHeads) MessageType() uint8 { return MessageTypeSyncHeads }

// FetchBatchReq requests the full nodes behind a set of hashes.
type FetchBatchReq struct {
	Conv   ConversationID
	Hashes []dag.NodeHash
}

func (FetchBatchReq) MessageType() uint8 { return MessageTypeFetchBatchReq }

// MerkleNodeMsg carries one wire-form node for a conversation.
type MerkleNodeMsg struct {
	Conv ConversationID
	Hash dag.NodeHash
	Node *dag.WireNode
}

func (MerkleNodeMsg) MessageType() uint8 { return MessageTypeMerkleNode }

// BlobQuery asks whether a peer has a blob available.
type BlobQuery struct {
	Conv ConversationID
	Hash dag.NodeHash
}

func (BlobQuery) MessageType() uint8 { return MessageTypeBlobQuery }

// BlobAvail answers BlobQuery, reporting availability and size.
type BlobAvail struct {
	Conv      ConversationID
	Hash      dag.NodeHash
	Available bool
	Size      uint64
}

func (BlobAvail) MessageType() uint8 { return MessageTypeBlobAvail }

// BlobReq requests one chunk of a blob by offset.
type BlobReq struct {
	Conv   ConversationID
	Hash   dag.NodeHash
	Offset uint64
	Length uint64
}

func (BlobReq) MessageType() uint8 { return MessageTypeBlobReq }

// BlobData answers BlobReq with chunk bytes and a Bao slice proof
// against the blob's bao_root.
type BlobData struct {
	Conv   ConversationID
	Hash   dag.NodeHash
	Offset uint64
	Data   []byte
	Proof  []byte
}

func (BlobData) MessageType() uint8 { return MessageTypeBlobData }

// SyncSketch carries an IBLT sketch for a sync range, at a given tier.
type SyncSketch struct {
	Conv   ConversationID
	LoRank uint64
	HiRank uint64
	Tier   uint32
	Sketch []byte
}

func (SyncSketch) MessageType() uint8 { return MessageTypeSyncSketch }

// SyncReconFail notifies a peer that decoding the reconciled sketch
// failed, so both sides should grow tier and/or subdivide the range.
type SyncReconFail struct {
	Conv   ConversationID
	LoRank uint64
	HiRank uint64
}

func (SyncReconFail) MessageType() uint8 { return MessageTypeSyncReconFail }

// SyncShardChecksums carries per-shard checksums used to narrow a
// divergent range before the next sketch round.
type SyncShardChecksums struct {
	Conv      ConversationID
	LoRank    uint64
	HiRank    uint64
	Checksums []uint64
}

func (SyncShardChecksums) MessageType() uint8 { return MessageTypeSyncShardChecksums }

// HandshakeError reports a fatal handshake-time failure (version
// mismatch, unknown conversation, rejected PoW difficulty).
type HandshakeError struct {
	Code   uint32
	Detail string
}

func (HandshakeError) MessageType() uint8 { return MessageTypeHandshakeError }

// ReconPowChallenge issues a proof-of-work challenge before accepting a
// reconciliation round (spec §4.5).
type ReconPowChallenge struct {
	Conv       ConversationID
	PowNonce   [16]byte
	Difficulty uint8
	RangeLo    uint64
	RangeHi    uint64
}

func (ReconPowChallenge) MessageType() uint8 { return MessageTypeReconPowChallenge }

// ReconPowSolution answers a ReconPowChallenge with the found solution.
type ReconPowSolution struct {
	Conv     ConversationID
	PowNonce [16]byte
	Solution uint64
}

func (ReconPowSolution) MessageType() uint8 { return MessageTypeReconPowSolution }
