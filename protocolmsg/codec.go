package protocolmsg

import (
	"github.com/opd-ai/merkle-tox/dag"
	"github.com/opd-ai/merkle-tox/proto"
)

// Marshal serializes m's body only, ready for the transport layer's
// OutboundEnvelope; the MessageType byte is not written (callers pass
// m.MessageType() alongside it).
func Marshal(m ProtocolMessage) []byte {
	w := proto.NewWriter(256)
	m.marshalBody(w)
	return w.Bytes()
}

// Unmarshal decodes a ProtocolMessage body given its MessageType,
// which the transport's OutboundEnvelope carries alongside the payload
// (the type byte itself is not repeated inside the body).
func Unmarshal(messageType uint8, body []byte) (ProtocolMessage, error) {
	r := proto.NewReader(body)
	switch messageType {
	case MessageTypeCapsAnnounce:
		return unmarshalCapsAnnounce(r)
	case MessageTypeCapsAck:
		return unmarshalCapsAck(r)
	case MessageTypeSyncHeads:
		return unmarshalSyncHeads(r)
	case MessageTypeFetchBatchReq:
		return unmarshalFetchBatchReq(r)
	case MessageTypeMerkleNode:
		return unmarshalMerkleNodeMsg(r)
	case MessageTypeBlobQuery:
		return unmarshalBlobQuery(r)
	case MessageTypeBlobAvail:
		return unmarshalBlobAvail(r)
	case MessageTypeBlobReq:
		return unmarshalBlobReq(r)
	case MessageTypeBlobData:
		return unmarshalBlobData(r)
	case MessageTypeSyncSketch:
		return unmarshalSyncSketch(r)
	case MessageTypeSyncReconFail:
		return unmarshalSyncReconFail(r)
	case MessageTypeSyncShardChecksums:
		return unmarshalSyncShardChecksums(r)
	case MessageTypeHandshakeError:
		return unmarshalHandshakeError(r)
	case MessageTypeReconPowChallenge:
		return unmarshalReconPowChallenge(r)
	case MessageTypeReconPowSolution:
		return unmarshalReconPowSolution(r)
	default:
		return nil, ErrUnknownMessageType
	}
}

func putConv(w *proto.Writer, c ConversationID) { w.PutRaw(c[:]) }

func getConv(r *proto.Reader) (ConversationID, error) {
	var c ConversationID
	raw, err := r.GetRaw(32)
	if err != nil {
		return c, err
	}
	copy(c[:], raw)
	return c, nil
}

func putHash(w *proto.Writer, h dag.NodeHash) { w.PutRaw(h[:]) }

func getHash(r *proto.Reader) (dag.NodeHash, error) {
	var h dag.NodeHash
	raw, err := r.GetRaw(32)
	if err != nil {
		return h, err
	}
	copy(h[:], raw)
	return h, nil
}

func putHashes(w *proto.Writer, hs []dag.NodeHash) {
	w.PutArrayHeader(len(hs))
	for _, h := range hs {
		putHash(w, h)
	}
}

func getHashes(r *proto.Reader) ([]dag.NodeHash, error) {
	n, err := r.GetArrayHeader()
	if err != nil {
		return nil, err
	}
	out := make([]dag.NodeHash, 0, n)
	for i := 0; i < n; i++ {
		h, err := getHash(r)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// --- CapsAnnounce ---

func (m CapsAnnounce) marshalBody(w *proto.Writer) {
	w.PutUint32(m.Version)
	w.PutUint64(m.Features)
}

func unmarshalCapsAnnounce(r *proto.Reader) (ProtocolMessage, error) {
	var m CapsAnnounce
	var err error
	if m.Version, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if m.Features, err = r.GetUint64(); err != nil {
		return nil, err
	}
	return m, nil
}

// --- CapsAck ---

func (m CapsAck) marshalBody(w *proto.Writer) {
	w.PutUint32(m.Version)
	w.PutUint64(m.Features)
}

func unmarshalCapsAck(r *proto.Reader) (ProtocolMessage, error) {
	var m CapsAck
	var err error
	if m.Version, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if m.Features, err = r.GetUint64(); err != nil {
		return nil, err
	}
	return m, nil
}

// --- SyncHeads ---

func (m SyncHeads) marshalBody(w *proto.Writer) {
	putConv(w, m.Conv)
	putHashes(w, m.Heads)
	putHashes(w, m.AdminHeads)
	w.PutUint8(m.Flags)
}

func unmarshalSyncHeads(r *proto.Reader) (ProtocolMessage, error) {
	var m SyncHeads
	var err error
	if m.Conv, err = getConv(r); err != nil {
		return nil, err
	}
	if m.Heads, err = getHashes(r); err != nil {
		return nil, err
	}
	if m.AdminHeads, err = getHashes(r); err != nil {
		return nil, err
	}
	if m.Flags, err = r.GetUint8(); err != nil {
		return nil, err
	}
	return m, nil
}

// --- FetchBatchReq ---

func (m FetchBatchReq) marshalBody(w *proto.Writer) {
	putConv(w, m.Conv)
	putHashes(w, m.Hashes)
}

func unmarshalFetchBatchReq(r *proto.Reader) (ProtocolMessage, error) {
	var m FetchBatchReq
	var err error
	if m.Conv, err = getConv(r); err != nil {
		return nil, err
	}
	if m.Hashes, err = getHashes(r); err != nil {
		return nil, err
	}
	return m, nil
}

// --- MerkleNodeMsg ---
//
// Note what is deliberately absent here: no sender_pk field. The wire
// node's sender_pk lives only inside its EncryptedPayload (spec
// property 8, "no cleartext sender"); this message never carries it
// outside that encryption.

func (m MerkleNodeMsg) marshalBody(w *proto.Writer) {
	putConv(w, m.Conv)
	putHash(w, m.Hash)
	w.PutBytes(m.Node.Marshal())
}

func unmarshalMerkleNodeMsg(r *proto.Reader) (ProtocolMessage, error) {
	var m MerkleNodeMsg
	var err error
	if m.Conv, err = getConv(r); err != nil {
		return nil, err
	}
	if m.Hash, err = getHash(r); err != nil {
		return nil, err
	}
	raw, err := r.GetBytes()
	if err != nil {
		return nil, err
	}
	node, err := dag.UnmarshalWireNode(raw)
	if err != nil {
		return nil, err
	}
	m.Node = node
	return m, nil
}

// --- BlobQuery ---

func (m BlobQuery) marshalBody(w *proto.Writer) {
	putConv(w, m.Conv)
	putHash(w, m.Hash)
}

func unmarshalBlobQuery(r *proto.Reader) (ProtocolMessage, error) {
	var m BlobQuery
	var err error
	if m.Conv, err = getConv(r); err != nil {
		return nil, err
	}
	if m.Hash, err = getHash(r); err != nil {
		return nil, err
	}
	return m, nil
}

// --- BlobAvail ---

func (m BlobAvail) marshalBody(w *proto.Writer) {
	putConv(w, m.Conv)
	putHash(w, m.Hash)
	w.PutBool(m.Available)
	w.PutUint64(m.Size)
}

func unmarshalBlobAvail(r *proto.Reader) (ProtocolMessage, error) {
	var m BlobAvail
	var err error
	if m.Conv, err = getConv(r); err != nil {
		return nil, err
	}
	if m.Hash, err = getHash(r); err != nil {
		return nil, err
	}
	if m.Available, err = r.GetBool(); err != nil {
		return nil, err
	}
	if m.Size, err = r.GetUint64(); err != nil {
		return nil, err
	}
	return m, nil
}

// --- BlobReq ---

func (m BlobReq) marshalBody(w *proto.Writer) {
	putConv(w, m.Conv)
	putHash(w, m.Hash)
	w.PutUint64(m.Offset)
	w.PutUint64(m.Length)
}

func unmarshalBlobReq(r *proto.Reader) (ProtocolMessage, error) {
	var m BlobReq
	var err error
	if m.Conv, err = getConv(r); err != nil {
		return nil, err
	}
	if m.Hash, err = getHash(r); err != nil {
		return nil, err
	}
	if m.Offset, err = r.GetUint64(); err != nil {
		return nil, err
	}
	if m.Length, err = r.GetUint64(); err != nil {
		return nil, err
	}
	return m, nil
}

// --- BlobData ---

func (m BlobData) marshalBody(w *proto.Writer) {
	putConv(w, m.Conv)
	putHash(w, m.Hash)
	w.PutUint64(m.Offset)
	w.PutBytes(m.Data)
	w.PutBytes(m.Proof)
}

func unmarshalBlobData(r *proto.Reader) (ProtocolMessage, error) {
	var m BlobData
	var err error
	if m.Conv, err = getConv(r); err != nil {
		return nil, err
	}
	if m.Hash, err = getHash(r); err != nil {
		return nil, err
	}
	if m.Offset, err = r.GetUint64(); err != nil {
		return nil, err
	}
	if m.Data, err = r.GetBytes(); err != nil {
		return nil, err
	}
	if m.Proof, err = r.GetBytes(); err != nil {
		return nil, err
	}
	return m, nil
}

// --- SyncSketch ---

func (m SyncSketch) marshalBody(w *proto.Writer) {
	putConv(w, m.Conv)
	w.PutUint64(m.LoRank)
	w.PutUint64(m.HiRank)
	w.PutUint32(m.Tier)
	w.PutBytes(m.Sketch)
}

func unmarshalSyncSketch(r *proto.Reader) (ProtocolMessage, error) {
	var m SyncSketch
	var err error
	if m.Conv, err = getConv(r); err != nil {
		return nil, err
	}
	if m.LoRank, err = r.GetUint64(); err != nil {
		return nil, err
	}
	if m.HiRank, err = r.GetUint64(); err != nil {
		return nil, err
	}
	if m.Tier, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if m.Sketch, err = r.GetBytes(); err != nil {
		return nil, err
	}
	return m, nil
}

// --- SyncReconFail ---

func (m SyncReconFail) marshalBody(w *proto.Writer) {
	putConv(w, m.Conv)
	w.PutUint64(m.LoRank)
	w.PutUint64(m.HiRank)
}

func unmarshalSyncReconFail(r *proto.Reader) (ProtocolMessage, error) {
	var m SyncReconFail
	var err error
	if m.Conv, err = getConv(r); err != nil {
		return nil, err
	}
	if m.LoRank, err = r.GetUint64(); err != nil {
		return nil, err
	}
	if m.HiRank, err = r.GetUint64(); err != nil {
		return nil, err
	}
	return m, nil
}

// --- SyncShardChecksums ---

func (m SyncShardChecksums) marshalBody(w *proto.Writer) {
	putConv(w, m.Conv)
	w.PutUint64(m.LoRank)
	w.PutUint64(m.HiRank)
	w.PutArrayHeader(len(m.Checksums))
	for _, c := range m.Checksums {
		w.PutUint64(c)
	}
}

func unmarshalSyncShardChecksums(r *proto.Reader) (ProtocolMessage, error) {
	var m SyncShardChecksums
	var err error
	if m.Conv, err = getConv(r); err != nil {
		return nil, err
	}
	if m.LoRank, err = r.GetUint64(); err != nil {
		return nil, err
	}
	if m.HiRank, err = r.GetUint64(); err != nil {
		return nil, err
	}
	n, err := r.GetArrayHeader()
	if err != nil {
		return nil, err
	}
	m.Checksums = make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		c, err := r.GetUint64()
		if err != nil {
			return nil, err
		}
		m.Checksums = append(m.Checksums, c)
	}
	return m, nil
}

// --- HandshakeError ---

func (m HandshakeError) marshalBody(w *proto.Writer) {
	w.PutUint32(m.Code)
	w.PutString(m.Detail)
}

func unmarshalHandshakeError(r *proto.Reader) (ProtocolMessage, error) {
	var m HandshakeError
	var err error
	if m.Code, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if m.Detail, err = r.GetString(); err != nil {
		return nil, err
	}
	return m, nil
}

// --- ReconPowChallenge ---

func (m ReconPowChallenge) marshalBody(w *proto.Writer) {
	putConv(w, m.Conv)
	w.PutRaw(m.PowNonce[:])
	w.PutUint8(m.Difficulty)
	w.PutUint64(m.RangeLo)
	w.PutUint64(m.RangeHi)
}

func unmarshalReconPowChallenge(r *proto.Reader) (ProtocolMessage, error) {
	var m ReconPowChallenge
	var err error
	if m.Conv, err = getConv(r); err != nil {
		return nil, err
	}
	raw, err := r.GetRaw(16)
	if err != nil {
		return nil, err
	}
	copy(m.PowNonce[:], raw)
	if m.Difficulty, err = r.GetUint8(); err != nil {
		return nil, err
	}
	if m.RangeLo, err = r.GetUint64(); err != nil {
		return nil, err
	}
	if m.RangeHi, err = r.GetUint64(); err != nil {
		return nil, err
	}
	return m, nil
}

// --- ReconPowSolution ---

func (m ReconPowSolution) marshalBody(w *proto.Writer) {
	putConv(w, m.Conv)
	w.PutRaw(m.PowNonce[:])
	w.PutUint64(m.Solution)
}

func unmarshalReconPowSolution(r *proto.Reader) (ProtocolMessage, error) {
	var m ReconPowSolution
	var err error
	if m.Conv, err = getConv(r); err != nil {
		return nil, err
	}
	raw, err := r.GetRaw(16)
	if err != nil {
		return nil, err
	}
	copy(m.PowNonce[:], raw)
	if m.Solution, err = r.GetUint64(); err != nil {
		return nil, err
	}
	return m, nil
}
