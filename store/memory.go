package store

import (
	"sync"

	"github.com/opd-ai/merkle-tox/crypto"
	"github.com/opd-ai/merkle-tox/dag"
)

// MemoryNodeStore is an in-memory NodeStore, suitable for tests and
// small deployments. All methods are safe for concurrent use.
type MemoryNodeStore struct {
	mu sync.RWMutex

	nodes    map[dag.NodeHash]*dag.MerkleNode
	verified map[dag.NodeHash]bool
	children map[dag.NodeHash]int
	convOf   map[dag.NodeHash]ConversationID

	heads      map[ConversationID][]dag.NodeHash
	adminHeads map[ConversationID][]dag.NodeHash

	convKeys map[ConversationID][]ConversationKeyEntry
	ratchet  map[ConversationID]map[dag.NodeHash]crypto.ChainKey
}

// NewMemoryNodeStore creates an empty in-memory node store.
func NewMemoryNodeStore() *MemoryNodeStore {
	return &MemoryNodeStore{
		nodes:      make(map[dag.NodeHash]*dag.MerkleNode),
		verified:   make(map[dag.NodeHash]bool),
		children:   make(map[dag.NodeHash]int),
		convOf:     make(map[dag.NodeHash]ConversationID),
		heads:      make(map[ConversationID][]dag.NodeHash),
		adminHeads: make(map[ConversationID][]dag.NodeHash),
		convKeys:   make(map[ConversationID][]ConversationKeyEntry),
		ratchet:    make(map[ConversationID]map[dag.NodeHash]crypto.ChainKey),
	}
}

func (s *MemoryNodeStore) PutNode(conv ConversationID, node *dag.MerkleNode, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := node.Hash()
	if _, exists := s.nodes[hash]; exists {
		if verified {
			s.verified[hash] = true
		}
		return nil
	}
	s.nodes[hash] = node
	s.verified[hash] = verified
	s.convOf[hash] = conv
	for _, parent := range node.Parents {
		s.children[parent]++
	}
	return nil
}

func (s *MemoryNodeStore) PutWireNode(conv ConversationID, hash dag.NodeHash, wire *dag.WireNode) error {
	// Wire-form nodes are stored once unpacked into a MerkleNode by the
	// engine; this store keeps only the authenticated form, so this is
	// a deliberate no-op kept for NodeStore contract symmetry.
	return nil
}

func (s *MemoryNodeStore) GetNode(hash dag.NodeHash) (*dag.MerkleNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[hash]
	return n, ok
}

func (s *MemoryNodeStore) HasNode(hash dag.NodeHash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[hash]
	return ok
}

func (s *MemoryNodeStore) HasChildren(hash dag.NodeHash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.children[hash] > 0
}

func (s *MemoryNodeStore) GetHeads(conv ConversationID) []dag.NodeHash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]dag.NodeHash(nil), s.heads[conv]...)
}

func (s *MemoryNodeStore) SetHeads(conv ConversationID, heads []dag.NodeHash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heads[conv] = append([]dag.NodeHash(nil), heads...)
}

func (s *MemoryNodeStore) GetAdminHeads(conv ConversationID) []dag.NodeHash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]dag.NodeHash(nil), s.adminHeads[conv]...)
}

func (s *MemoryNodeStore) SetAdminHeads(conv ConversationID, heads []dag.NodeHash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminHeads[conv] = append([]dag.NodeHash(nil), heads...)
}

func (s *MemoryNodeStore) IsVerified(hash dag.NodeHash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verified[hash]
}

func (s *MemoryNodeStore) GetNodeCounts(conv ConversationID) NodeCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var counts NodeCounts
	for hash := range s.nodes {
		if s.convOf[hash] != conv {
			continue
		}
		if s.verified[hash] {
			counts.Verified++
		} else {
			counts.Speculative++
		}
	}
	return counts
}

func (s *MemoryNodeStore) GetVerifiedNodesByType(conv ConversationID, t NodeType) []*dag.MerkleNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*dag.MerkleNode
	for hash, n := range s.nodes {
		if s.convOf[hash] == conv && s.verified[hash] && nodeType(n.Content) == t {
			out = append(out, n)
		}
	}
	return out
}

func (s *MemoryNodeStore) GetNodeHashesInRange(conv ConversationID, r SyncRange) []dag.NodeHash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []dag.NodeHash
	for hash, n := range s.nodes {
		if s.convOf[hash] == conv && r.contains(n.TopologicalRank) {
			out = append(out, hash)
		}
	}
	return out
}

func (s *MemoryNodeStore) PutConversationKey(conv ConversationID, epoch uint64, kConv [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.convKeys[conv] {
		if e.Epoch == epoch && e.KConv == kConv {
			return
		}
	}
	s.convKeys[conv] = append(s.convKeys[conv], ConversationKeyEntry{Epoch: epoch, KConv: kConv})
}

func (s *MemoryNodeStore) GetConversationKeys(conv ConversationID) []ConversationKeyEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ConversationKeyEntry(nil), s.convKeys[conv]...)
}

func (s *MemoryNodeStore) GetRatchetKey(conv ConversationID, head dag.NodeHash) (crypto.ChainKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byHead, ok := s.ratchet[conv]
	if !ok {
		return crypto.ChainKey{}, false
	}
	ck, ok := byHead[head]
	return ck, ok
}

func (s *MemoryNodeStore) PutRatchetKey(conv ConversationID, head dag.NodeHash, chainKey crypto.ChainKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byHead, ok := s.ratchet[conv]
	if !ok {
		byHead = make(map[dag.NodeHash]crypto.ChainKey)
		s.ratchet[conv] = byHead
	}
	byHead[head] = chainKey
}

// DeleteRatchetKey removes a ratchet key, for forward secrecy: once a
// head has advanced, its predecessor's key must not be recoverable
// from the store.
func (s *MemoryNodeStore) DeleteRatchetKey(conv ConversationID, head dag.NodeHash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byHead, ok := s.ratchet[conv]
	if !ok {
		return nil
	}
	delete(byHead, head)
	return nil
}
