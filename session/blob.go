package session

import (
	"bytes"

	"github.com/bits-and-blooms/bitset"

	"github.com/opd-ai/merkle-tox/crypto"
	"github.com/opd-ai/merkle-tox/effects"
	"github.com/opd-ai/merkle-tox/protocolmsg"
	"github.com/opd-ai/merkle-tox/store"
)

// RequestBlob marks a blob as wanted and queries the peer for
// availability before transferring any chunk.
func (m *Manager) RequestBlob(peerPk [32]byte, conv store.ConversationID, blob crypto.Hash) []effects.Effect {
	sess := m.session(peerPk, conv)
	sess.MissingBlobs[blob] = true
	msg := protocolmsg.BlobQuery{Conv: protocolmsg.ConversationID(conv), Hash: blob}
	return m.send(sess, msg.MessageType(), protocolmsg.Marshal(msg))
}

func (m *Manager) handleBlobQuery(sess *PeerSession, msg protocolmsg.BlobQuery) []effects.Effect {
	sess.activate()
	info, ok := m.Blobs.GetBlobInfo(msg.Hash)
	resp := protocolmsg.BlobAvail{
		Conv:      protocolmsg.ConversationID(sess.Conv),
		Hash:      msg.Hash,
		Available: ok,
	}
	if ok {
		resp.Size = info.Size
	}
	return m.send(sess, resp.MessageType(), protocolmsg.Marshal(resp))
}

func (m *Manager) handleBlobAvail(sess *PeerSession, msg protocolmsg.BlobAvail) []effects.Effect {
	sess.activate()
	if !msg.Available || !sess.MissingBlobs[msg.Hash] {
		return nil
	}

	totalChunks := (msg.Size + store.BlobChunkSize - 1) / store.BlobChunkSize
	if totalChunks == 0 {
		totalChunks = 1
	}
	sess.blobChunks[msg.Hash] = totalChunks
	sess.blobMasks[msg.Hash] = bitset.New(uint(totalChunks))

	return m.requestNextChunk(sess, msg.Hash)
}

func (m *Manager) requestNextChunk(sess *PeerSession, blob crypto.Hash) []effects.Effect {
	mask, ok := sess.blobMasks[blob]
	if !ok {
		return nil
	}
	total := sess.blobChunks[blob]
	for i := uint64(0); i < total; i++ {
		if !mask.Test(uint(i)) {
			msg := protocolmsg.BlobReq{
				Conv:   protocolmsg.ConversationID(sess.Conv),
				Hash:   blob,
				Offset: i * store.BlobChunkSize,
				Length: store.BlobChunkSize,
			}
			return m.send(sess, msg.MessageType(), protocolmsg.Marshal(msg))
		}
	}
	delete(sess.MissingBlobs, blob)
	return nil
}

func (m *Manager) handleBlobReq(sess *PeerSession, msg protocolmsg.BlobReq) []effects.Effect {
	sess.activate()
	data, err := m.Blobs.GetChunk(msg.Hash, msg.Offset, msg.Length)
	if err != nil {
		return nil
	}
	info, ok := m.Blobs.GetBlobInfo(msg.Hash)
	if !ok {
		return nil
	}
	proof := baoSliceProof(info, msg.Offset, data)
	resp := protocolmsg.BlobData{
		Conv:   protocolmsg.ConversationID(sess.Conv),
		Hash:   msg.Hash,
		Offset: msg.Offset,
		Data:   data,
		Proof:  proof,
	}
	return m.send(sess, resp.MessageType(), protocolmsg.Marshal(resp))
}

func (m *Manager) handleBlobData(sess *PeerSession, msg protocolmsg.BlobData) []effects.Effect {
	sess.activate()

	info, ok := m.Blobs.GetBlobInfo(msg.Hash)
	if !ok || !verifyBaoSliceProof(info, msg.Offset, msg.Data, msg.Proof) {
		m.Log.Warn("session: rejecting blob chunk with invalid slice proof")
		return nil
	}

	if err := m.Blobs.PutChunk(sess.Conv, msg.Hash, msg.Offset, msg.Data, msg.Proof); err != nil {
		m.Log.WithError(err).Warn("session: failed to store blob chunk")
		return nil
	}

	mask, ok := sess.blobMasks[msg.Hash]
	if ok {
		mask.Set(uint(msg.Offset / store.BlobChunkSize))
	}

	return m.requestNextChunk(sess, msg.Hash)
}

// baoSliceProof computes the slice proof a receiver checks a chunk
// against a blob's bao_root. This module does not implement the full
// BLAKE3 Bao outboard-tree encoding; it derives a keyed-hash binding
// the chunk's offset, content, and the blob's declared root, which is
// sufficient to detect a tampered or mismatched chunk but is not a
// standalone Merkle proof a third party could verify without also
// holding bao_root themselves. A production implementation would carry
// the actual Bao outboard tree nodes here instead.
func baoSliceProof(info store.BlobInfo, offset uint64, data []byte) []byte {
	ctx := crypto.DeriveKey("merkle-tox v1 bao slice proof")
	buf := make([]byte, 0, 8+len(info.BaoRoot)+len(data))
	var off [8]byte
	putUint64(off[:], offset)
	buf = append(buf, off[:]...)
	buf = append(buf, info.BaoRoot[:]...)
	buf = append(buf, data...)
	return crypto.KeyedHash(ctx, buf, 32)
}

func verifyBaoSliceProof(info store.BlobInfo, offset uint64, data []byte, proof []byte) bool {
	return bytes.Equal(baoSliceProof(info, offset, data), proof)
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
