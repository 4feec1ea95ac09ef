package dag

import (
	"github.com/opd-ai/merkle-tox/crypto"
	"github.com/opd-ai/merkle-tox/proto"
)

const (
	authTagMac       uint8 = 1
	authTagSignature uint8 = 2
)

// NodeMac is the 32-byte authenticator content nodes carry, computed
// over the node's unauthenticated prefix keyed by the conversation MAC
// key.
type NodeMac [32]byte

// NodeAuth is the tagged union of authentication a node carries: a MAC
// for content nodes, or an Ed25519 signature for admin nodes.
type NodeAuth struct {
	Mac       *NodeMac
	Signature *crypto.Signature
}

// IsMac reports whether this is MAC authentication.
func (a NodeAuth) IsMac() bool { return a.Mac != nil }

// IsSignature reports whether this is signature authentication.
func (a NodeAuth) IsSignature() bool { return a.Signature != nil }

func marshalNodeAuth(w *proto.Writer, a NodeAuth) {
	switch {
	case a.Mac != nil:
		w.PutVariant(authTagMac, a.Mac[:])
	case a.Signature != nil:
		w.PutVariant(authTagSignature, a.Signature[:])
	default:
		w.PutUint8(0)
	}
}

func unmarshalNodeAuth(r *proto.Reader) (NodeAuth, error) {
	tag, err := r.GetVariantTag()
	if err != nil {
		return NodeAuth{}, err
	}
	switch tag {
	case authTagMac:
		raw, err := r.GetRaw(32)
		if err != nil {
			return NodeAuth{}, err
		}
		var m NodeMac
		copy(m[:], raw)
		return NodeAuth{Mac: &m}, nil
	case authTagSignature:
		raw, err := r.GetRaw(crypto.SignatureSize)
		if err != nil {
			return NodeAuth{}, err
		}
		var s crypto.Signature
		copy(s[:], raw)
		return NodeAuth{Signature: &s}, nil
	default:
		return NodeAuth{}, nil
	}
}
