package dag

import (
	"errors"

	"github.com/opd-ai/merkle-tox/crypto"
	"github.com/opd-ai/merkle-tox/proto"
)

// paddingBins are the fixed encrypted-payload sizes pack_wire rounds up
// to, hiding the true content length from network observers.
var paddingBins = []int{128, 512, 2048, 8192, 32768, 131072}

// ErrPayloadTooLarge is returned when a payload exceeds the largest
// padding bin.
var ErrPayloadTooLarge = errors.New("dag: encrypted payload exceeds largest padding bin")

// ErrInvalidPadding is returned when unpad finds a padding sequence
// whose last non-zero byte isn't 0x80, or whose zero suffix contains a
// non-zero byte.
var ErrInvalidPadding = errors.New("dag: invalid padding")

const (
	wireFlagCompressed uint8 = 1 << 0
)

// WireNode is the wire form of a MerkleNode: sender_pk and
// sequence_number move inside the encrypted payload for metadata
// privacy, leaving only parents/author/rank/timestamp/flags in the
// clear.
type WireNode struct {
	Parents          []NodeHash
	AuthorPk         LogicalIdentityPk
	TopologicalRank  uint64
	NetworkTimestamp int64
	Flags            uint8
	EncryptedPayload []byte
	Authentication   NodeAuth
}

func padTo(payload []byte) ([]byte, error) {
	need := len(payload) + 1
	for _, bin := range paddingBins {
		if need <= bin {
			out := make([]byte, bin)
			copy(out, payload)
			out[len(payload)] = 0x80
			return out, nil
		}
	}
	return nil, ErrPayloadTooLarge
}

func unpad(padded []byte) ([]byte, error) {
	i := len(padded) - 1
	for i >= 0 && padded[i] == 0x00 {
		i--
	}
	if i < 0 || padded[i] != 0x80 {
		return nil, ErrInvalidPadding
	}
	return padded[:i], nil
}

// Marshal serializes a WireNode for transmission over the wire.
func (w *WireNode) Marshal() []byte {
	out := proto.NewWriter(256 + len(w.EncryptedPayload))
	out.PutArrayHeader(len(w.Parents))
	for _, p := range w.Parents {
		out.PutRaw(p[:])
	}
	out.PutRaw(w.AuthorPk[:])
	out.PutUint64(w.TopologicalRank)
	out.PutInt64(w.NetworkTimestamp)
	out.PutUint8(w.Flags)
	out.PutBytes(w.EncryptedPayload)
	marshalNodeAuth(out, w.Authentication)
	return out.Bytes()
}

// UnmarshalWireNode decodes a WireNode previously produced by Marshal.
func UnmarshalWireNode(buf []byte) (*WireNode, error) {
	r := proto.NewReader(buf)
	w := &WireNode{}

	pcount, err := r.GetArrayHeader()
	if err != nil {
		return nil, err
	}
	w.Parents = make([]NodeHash, 0, pcount)
	for i := 0; i < pcount; i++ {
		raw, err := r.GetRaw(crypto.HashSize)
		if err != nil {
			return nil, err
		}
		var h NodeHash
		copy(h[:], raw)
		w.Parents = append(w.Parents, h)
	}

	raw, err := r.GetRaw(32)
	if err != nil {
		return nil, err
	}
	copy(w.AuthorPk[:], raw)

	if w.TopologicalRank, err = r.GetUint64(); err != nil {
		return nil, err
	}
	if w.NetworkTimestamp, err = r.GetInt64(); err != nil {
		return nil, err
	}
	if w.Flags, err = r.GetUint8(); err != nil {
		return nil, err
	}
	if w.EncryptedPayload, err = r.GetBytes(); err != nil {
		return nil, err
	}
	auth, err := unmarshalNodeAuth(r)
	if err != nil {
		return nil, err
	}
	w.Authentication = auth
	return w, nil
}

// PackWire encrypts n into its wire form under the conversation's
// payload key, at the given key-rotation epoch. PackWire takes no
// compression option and never compresses: the compressed flag of the
// resulting WireNode is never set.
func PackWire(n *MerkleNode, conversationID [32]byte, keys crypto.ConversationKeys, epoch uint64) (*WireNode, error) {
	body := proto.NewWriter(256)
	body.PutRaw(n.SenderPk[:])
	body.PutUint64(n.SequenceNumber)
	marshalContent(body, n.Content)
	body.PutBytes(n.Metadata)

	padded, err := padTo(body.Bytes())
	if err != nil {
		return nil, err
	}

	nodeHash := n.Hash()
	nonce := crypto.Nonce(crypto.DeriveWireNonce(conversationID, nodeHash, epoch))
	ciphertext, err := crypto.EncryptSymmetric(padded, nonce, keys.PayloadKey)
	if err != nil {
		return nil, err
	}

	return &WireNode{
		Parents:          n.Parents,
		AuthorPk:         n.AuthorPk,
		TopologicalRank:  n.TopologicalRank,
		NetworkTimestamp: n.NetworkTimestamp,
		Flags:            0,
		EncryptedPayload: ciphertext,
		Authentication:   n.Authentication,
	}, nil
}

// UnpackWire decrypts a WireNode back into a MerkleNode, verifying that
// the reconstructed node's hash matches wireHash.
func UnpackWire(w *WireNode, wireHash NodeHash, conversationID [32]byte, keys crypto.ConversationKeys, epoch uint64) (*MerkleNode, error) {
	n := &MerkleNode{
		Parents:          w.Parents,
		TopologicalRank:  w.TopologicalRank,
		NetworkTimestamp: w.NetworkTimestamp,
		Authentication:   w.Authentication,
	}

	nonce := crypto.Nonce(crypto.DeriveWireNonce(conversationID, wireHash, epoch))
	padded, err := crypto.DecryptSymmetric(w.EncryptedPayload, nonce, keys.PayloadKey)
	if err != nil {
		return nil, err
	}

	if w.Flags&wireFlagCompressed != 0 {
		return nil, errors.New("dag: compressed payloads unsupported")
	}

	plain, err := unpad(padded)
	if err != nil {
		return nil, err
	}

	r := proto.NewReader(plain)
	raw, err := r.GetRaw(32)
	if err != nil {
		return nil, err
	}
	copy(n.SenderPk[:], raw)
	if n.SequenceNumber, err = r.GetUint64(); err != nil {
		return nil, err
	}
	if n.Content, err = unmarshalContent(r); err != nil {
		return nil, err
	}
	if n.Metadata, err = r.GetBytes(); err != nil {
		return nil, err
	}
	n.AuthorPk = w.AuthorPk

	if got := n.Hash(); got != wireHash {
		return nil, errors.New("dag: reconstructed hash does not match wire hash")
	}
	return n, nil
}
