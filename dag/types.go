package dag

import "github.com/opd-ai/merkle-tox/crypto"

// NodeHash identifies a MerkleNode by the BLAKE3 hash of its
// unauthenticated prefix.
type NodeHash = crypto.Hash

// LogicalIdentityPk is a member's long-term, portable public key.
type LogicalIdentityPk [32]byte

// PhysicalDevicePk is a device's signing public key, scoped to one
// physical device rather than one logical member.
type PhysicalDevicePk [32]byte

// MaxContentParents and MaxAdminParents bound the parents list depending
// on whether the node carries content or an admin ControlAction.
const (
	MaxContentParents = 8
	MaxAdminParents   = 16
)

// MerkleNode is the authored form of a DAG node: every field a sender
// fills in before hashing, authenticating, and (optionally) encrypting
// it into a WireNode.
type MerkleNode struct {
	Parents          []NodeHash
	AuthorPk         LogicalIdentityPk
	SenderPk         PhysicalDevicePk
	SequenceNumber   uint64
	TopologicalRank  uint64
	NetworkTimestamp int64
	Content          Content
	Metadata         []byte
	Authentication   NodeAuth
}

// IsAdmin reports whether this node carries a ControlAction, which uses
// signature authentication and conversation-id-bound preimages instead
// of a MAC.
func (n *MerkleNode) IsAdmin() bool {
	_, ok := n.Content.(Control)
	return ok
}

// MaxParents returns the parents-count ceiling applicable to this node.
func (n *MerkleNode) MaxParents() int {
	if n.IsAdmin() {
		return MaxAdminParents
	}
	return MaxContentParents
}
