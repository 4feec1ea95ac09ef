package store

import (
	"github.com/opd-ai/merkle-tox/crypto"
	"github.com/opd-ai/merkle-tox/dag"
)

// ConversationID identifies one conversation's DAG and session state.
type ConversationID [32]byte

// NodeType discriminates MerkleNode.Content for
// GetVerifiedNodesByType queries.
type NodeType int

const (
	NodeTypeText NodeType = iota
	NodeTypeBlob
	NodeTypeControl
	NodeTypeKeyWrap
)

func nodeType(c dag.Content) NodeType {
	switch c.(type) {
	case dag.Text:
		return NodeTypeText
	case dag.Blob:
		return NodeTypeBlob
	case dag.Control:
		return NodeTypeControl
	case dag.KeyWrap:
		return NodeTypeKeyWrap
	default:
		return NodeTypeText
	}
}

// SyncRange selects a contiguous band of topological ranks for
// reconciliation sketching.
type SyncRange struct {
	LoRank uint64
	HiRank uint64
}

func (r SyncRange) contains(rank uint64) bool {
	return rank >= r.LoRank && rank <= r.HiRank
}

// NodeCounts reports how many nodes a conversation holds in each
// verification state.
type NodeCounts struct {
	Verified    int
	Speculative int
}

// ConversationKeyEntry pairs an epoch with the KConv active at that
// epoch.
type ConversationKeyEntry struct {
	Epoch uint64
	KConv [32]byte
}

// NodeStore is the engine's persistence contract for DAG nodes, heads,
// and conversation/ratchet key material. Every write is idempotent.
type NodeStore interface {
	PutNode(conv ConversationID, node *dag.MerkleNode, verified bool) error
	PutWireNode(conv ConversationID, hash dag.NodeHash, wire *dag.WireNode) error

	GetNode(hash dag.NodeHash) (*dag.MerkleNode, bool)
	HasNode(hash dag.NodeHash) bool
	HasChildren(hash dag.NodeHash) bool

	GetHeads(conv ConversationID) []dag.NodeHash
	SetHeads(conv ConversationID, heads []dag.NodeHash)
	GetAdminHeads(conv ConversationID) []dag.NodeHash
	SetAdminHeads(conv ConversationID, heads []dag.NodeHash)

	IsVerified(hash dag.NodeHash) bool
	GetNodeCounts(conv ConversationID) NodeCounts

	GetVerifiedNodesByType(conv ConversationID, t NodeType) []*dag.MerkleNode
	GetNodeHashesInRange(conv ConversationID, r SyncRange) []dag.NodeHash

	PutConversationKey(conv ConversationID, epoch uint64, kConv [32]byte)
	GetConversationKeys(conv ConversationID) []ConversationKeyEntry

	GetRatchetKey(conv ConversationID, head dag.NodeHash) (crypto.ChainKey, bool)
	PutRatchetKey(conv ConversationID, head dag.NodeHash, chainKey crypto.ChainKey)
	DeleteRatchetKey(conv ConversationID, head dag.NodeHash) error
}
