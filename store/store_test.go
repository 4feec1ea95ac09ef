package store

import (
	"testing"

	"github.com/opd-ai/merkle-tox/crypto"
	"github.com/opd-ai/merkle-tox/dag"
)

func sampleNode(seq uint64, rank uint64) *dag.MerkleNode {
	return &dag.MerkleNode{
		AuthorPk:         dag.LogicalIdentityPk{1},
		SenderPk:         dag.PhysicalDevicePk{2},
		SequenceNumber:   seq,
		TopologicalRank:  rank,
		NetworkTimestamp: int64(rank) * 1000,
		Content:          dag.Text("hello"),
	}
}

func TestPutNodeIdempotent(t *testing.T) {
	s := NewMemoryNodeStore()
	conv := ConversationID{1}
	n := sampleNode(1, 1)
	hash := n.Hash()

	if err := s.PutNode(conv, n, false); err != nil {
		t.Fatalf("PutNode: %v", err)
	}
	if err := s.PutNode(conv, n, true); err != nil {
		t.Fatalf("PutNode second call: %v", err)
	}
	if !s.IsVerified(hash) {
		t.Fatal("expected second PutNode with verified=true to mark the node verified")
	}
	got, ok := s.GetNode(hash)
	if !ok || got != n {
		t.Fatal("GetNode did not return the stored node")
	}
}

func TestHeadsRoundTrip(t *testing.T) {
	s := NewMemoryNodeStore()
	conv := ConversationID{1}
	heads := []dag.NodeHash{{1}, {2}}
	s.SetHeads(conv, heads)
	got := s.GetHeads(conv)
	if len(got) != 2 || got[0] != heads[0] || got[1] != heads[1] {
		t.Fatalf("GetHeads = %v, want %v", got, heads)
	}

	adminHeads := []dag.NodeHash{{3}}
	s.SetAdminHeads(conv, adminHeads)
	gotAdmin := s.GetAdminHeads(conv)
	if len(gotAdmin) != 1 || gotAdmin[0] != adminHeads[0] {
		t.Fatalf("GetAdminHeads = %v, want %v", gotAdmin, adminHeads)
	}
}

func TestNodeCountsScopedPerConversation(t *testing.T) {
	s := NewMemoryNodeStore()
	convA := ConversationID{0xA}
	convB := ConversationID{0xB}

	n1 := sampleNode(1, 1)
	n2 := sampleNode(2, 2)
	n3 := sampleNode(3, 3)

	if err := s.PutNode(convA, n1, true); err != nil {
		t.Fatal(err)
	}
	if err := s.PutNode(convA, n2, false); err != nil {
		t.Fatal(err)
	}
	if err := s.PutNode(convB, n3, true); err != nil {
		t.Fatal(err)
	}

	countsA := s.GetNodeCounts(convA)
	if countsA.Verified != 1 || countsA.Speculative != 1 {
		t.Fatalf("convA counts = %+v, want {1 1}", countsA)
	}
	countsB := s.GetNodeCounts(convB)
	if countsB.Verified != 1 || countsB.Speculative != 0 {
		t.Fatalf("convB counts = %+v, want {1 0}", countsB)
	}

	byType := s.GetVerifiedNodesByType(convA, NodeTypeText)
	if len(byType) != 1 || byType[0].Hash() != n1.Hash() {
		t.Fatalf("GetVerifiedNodesByType(convA) returned %d nodes, want the single verified convA node", len(byType))
	}

	inRange := s.GetNodeHashesInRange(convA, SyncRange{LoRank: 0, HiRank: 10})
	if len(inRange) != 2 {
		t.Fatalf("GetNodeHashesInRange(convA) = %d hashes, want 2 (convB node must not leak in)", len(inRange))
	}
}

func TestChildrenTracking(t *testing.T) {
	s := NewMemoryNodeStore()
	conv := ConversationID{1}
	parent := sampleNode(1, 1)
	parentHash := parent.Hash()
	if err := s.PutNode(conv, parent, true); err != nil {
		t.Fatal(err)
	}
	if s.HasChildren(parentHash) {
		t.Fatal("parent should have no children yet")
	}

	child := sampleNode(2, 2)
	child.Parents = []dag.NodeHash{parentHash}
	if err := s.PutNode(conv, child, true); err != nil {
		t.Fatal(err)
	}
	if !s.HasChildren(parentHash) {
		t.Fatal("expected parent to have a child after child was stored")
	}
}

func TestConversationKeysAccumulate(t *testing.T) {
	s := NewMemoryNodeStore()
	conv := ConversationID{1}
	s.PutConversationKey(conv, 0, [32]byte{1})
	s.PutConversationKey(conv, 1, [32]byte{2})

	got := s.GetConversationKeys(conv)
	if len(got) != 2 || got[0].Epoch != 0 || got[1].Epoch != 1 {
		t.Fatalf("GetConversationKeys = %+v, want two entries at epochs 0 and 1", got)
	}
}

func TestRatchetKeyDeletionForgetsKey(t *testing.T) {
	s := NewMemoryNodeStore()
	conv := ConversationID{1}
	head := dag.NodeHash{9}
	ck := crypto.ChainKey{1, 2, 3}

	s.PutRatchetKey(conv, head, ck)
	got, ok := s.GetRatchetKey(conv, head)
	if !ok || got != ck {
		t.Fatal("expected ratchet key to be retrievable after PutRatchetKey")
	}

	if err := s.DeleteRatchetKey(conv, head); err != nil {
		t.Fatalf("DeleteRatchetKey: %v", err)
	}
	if _, ok := s.GetRatchetKey(conv, head); ok {
		t.Fatal("ratchet key must be unrecoverable after deletion (forward secrecy)")
	}
}

func TestBlobStorePutGetChunk(t *testing.T) {
	s := NewMemoryBlobStore()
	conv := ConversationID{1}
	blobHash := crypto.Hash{0x11}

	info := BlobInfo{Hash: blobHash, Name: "a.bin", MimeType: "application/octet-stream", Size: 4}
	s.PutBlobInfo(conv, info)

	got, ok := s.GetBlobInfo(blobHash)
	if !ok || got.Name != "a.bin" {
		t.Fatalf("GetBlobInfo = %+v, ok=%v", got, ok)
	}

	data := []byte{1, 2, 3, 4}
	if err := s.PutChunk(conv, blobHash, 0, data, nil); err != nil {
		t.Fatalf("PutChunk: %v", err)
	}
	chunk, err := s.GetChunk(blobHash, 0, 4)
	if err != nil {
		t.Fatalf("GetChunk: %v", err)
	}
	if len(chunk) != 4 || chunk[0] != 1 || chunk[3] != 4 {
		t.Fatalf("GetChunk returned %v, want %v", chunk, data)
	}

	if _, err := s.GetChunk(blobHash, 64, 4); err != ErrNotFound {
		t.Fatalf("GetChunk at unknown offset: got %v, want ErrNotFound", err)
	}
}

func TestReconciliationStoreRoundTripAndInvalidate(t *testing.T) {
	s := NewMemoryReconciliationStore()
	conv := ConversationID{1}
	r := SyncRange{LoRank: 0, HiRank: 100}

	if _, ok := s.GetSketch(conv, r); ok {
		t.Fatal("expected no sketch before PutSketch")
	}

	sketch := []byte{1, 2, 3}
	s.PutSketch(conv, r, sketch)
	got, ok := s.GetSketch(conv, r)
	if !ok || len(got) != 3 {
		t.Fatalf("GetSketch = %v, ok=%v", got, ok)
	}

	s.InvalidateConversation(conv)
	if _, ok := s.GetSketch(conv, r); ok {
		t.Fatal("expected sketch to be gone after InvalidateConversation")
	}
}
