package dag

import (
	"github.com/opd-ai/merkle-tox/crypto"
	"github.com/opd-ai/merkle-tox/proto"
)

func (n *MerkleNode) marshalPrefix(w *proto.Writer) {
	w.PutArrayHeader(len(n.Parents))
	for _, p := range n.Parents {
		w.PutRaw(p[:])
	}
	w.PutRaw(n.AuthorPk[:])
	w.PutRaw(n.SenderPk[:])
	w.PutUint64(n.SequenceNumber)
	w.PutUint64(n.TopologicalRank)
	w.PutInt64(n.NetworkTimestamp)
	marshalContent(w, n.Content)
	w.PutBytes(n.Metadata)
}

// unauthenticatedPrefix returns the canonical serialization of every
// field except Authentication. Any party that can see the node,
// authenticated or not, can compute this.
func (n *MerkleNode) unauthenticatedPrefix() []byte {
	w := proto.NewWriter(256)
	n.marshalPrefix(w)
	return w.Bytes()
}

// Hash returns the BLAKE3 hash of the node's unauthenticated prefix.
func (n *MerkleNode) Hash() NodeHash {
	return crypto.HashNode(n.unauthenticatedPrefix())
}

// Prefix returns the canonical serialization of every field except
// Authentication, the preimage a content node's MAC is computed over.
// Unlike SignPreimage, it does not mix in the conversation id: a MAC
// is scoped to a conversation implicitly through its keying (the MAC
// key is itself derived from that conversation's KConv), so binding
// the id into the preimage too would be redundant.
func (n *MerkleNode) Prefix() []byte {
	return n.unauthenticatedPrefix()
}

// Marshal serializes the full authenticated node, including the
// Authentication field, for local storage.
func (n *MerkleNode) Marshal() []byte {
	w := proto.NewWriter(320)
	n.marshalPrefix(w)
	marshalNodeAuth(w, n.Authentication)
	return w.Bytes()
}

// UnmarshalNode decodes a MerkleNode previously produced by Marshal.
func UnmarshalNode(buf []byte) (*MerkleNode, error) {
	r := proto.NewReader(buf)
	n, err := unmarshalPrefix(r)
	if err != nil {
		return nil, err
	}
	auth, err := unmarshalNodeAuth(r)
	if err != nil {
		return nil, err
	}
	n.Authentication = auth
	return n, nil
}

func unmarshalPrefix(r *proto.Reader) (*MerkleNode, error) {
	n := &MerkleNode{}

	pcount, err := r.GetArrayHeader()
	if err != nil {
		return nil, err
	}
	n.Parents = make([]NodeHash, 0, pcount)
	for i := 0; i < pcount; i++ {
		raw, err := r.GetRaw(crypto.HashSize)
		if err != nil {
			return nil, err
		}
		var h NodeHash
		copy(h[:], raw)
		n.Parents = append(n.Parents, h)
	}

	raw, err := r.GetRaw(32)
	if err != nil {
		return nil, err
	}
	copy(n.AuthorPk[:], raw)

	raw, err = r.GetRaw(32)
	if err != nil {
		return nil, err
	}
	copy(n.SenderPk[:], raw)

	if n.SequenceNumber, err = r.GetUint64(); err != nil {
		return nil, err
	}
	if n.TopologicalRank, err = r.GetUint64(); err != nil {
		return nil, err
	}
	if n.NetworkTimestamp, err = r.GetInt64(); err != nil {
		return nil, err
	}
	if n.Content, err = unmarshalContent(r); err != nil {
		return nil, err
	}
	if n.Metadata, err = r.GetBytes(); err != nil {
		return nil, err
	}
	return n, nil
}

// SignPreimage builds the preimage an admin node's signature is
// computed over: the conversation id mixed with the unauthenticated
// prefix, so a signature cannot be replayed into a different
// conversation (spec property 9).
func (n *MerkleNode) SignPreimage(conversationID [32]byte) []byte {
	prefix := n.unauthenticatedPrefix()
	out := make([]byte, 0, 32+len(prefix))
	out = append(out, conversationID[:]...)
	out = append(out, prefix...)
	return out
}
