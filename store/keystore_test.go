package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opd-ai/merkle-tox/crypto"
	"github.com/opd-ai/merkle-tox/dag"
)

func newTestKeys(t *testing.T) (*crypto.EncryptedKeyStore, string) {
	t.Helper()
	dir := t.TempDir()
	ks, err := crypto.NewEncryptedKeyStore(dir, []byte("test-master-password"))
	if err != nil {
		t.Fatalf("NewEncryptedKeyStore: %v", err)
	}
	return ks, dir
}

func TestPersistentNodeStoreConversationKeySurvivesRestart(t *testing.T) {
	keys, dir := newTestKeys(t)
	conv := ConversationID{7}

	first := NewPersistentNodeStore(NewMemoryNodeStore(), keys)
	first.PutConversationKey(conv, 0, [32]byte{0xaa})
	first.PutConversationKey(conv, 1, [32]byte{0xbb})

	keys2, err := crypto.NewEncryptedKeyStore(dir, []byte("test-master-password"))
	if err != nil {
		t.Fatalf("reopening key store: %v", err)
	}
	restarted := NewPersistentNodeStore(NewMemoryNodeStore(), keys2)

	if got := restarted.GetConversationKeys(conv); len(got) != 0 {
		t.Fatalf("fresh backing store should start empty, got %d entries", len(got))
	}

	n, err := restarted.LoadConversationKeys(conv)
	if err != nil {
		t.Fatalf("LoadConversationKeys: %v", err)
	}
	if n != 2 {
		t.Fatalf("LoadConversationKeys loaded %d entries, want 2", n)
	}

	got := restarted.GetConversationKeys(conv)
	if len(got) != 2 {
		t.Fatalf("GetConversationKeys after load = %d entries, want 2", len(got))
	}
	if got[0].Epoch != 0 || got[0].KConv != ([32]byte{0xaa}) {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if got[1].Epoch != 1 || got[1].KConv != ([32]byte{0xbb}) {
		t.Errorf("entry 1 = %+v", got[1])
	}
}

func TestPersistentNodeStoreLoadConversationKeysNoRecord(t *testing.T) {
	keys, _ := newTestKeys(t)
	p := NewPersistentNodeStore(NewMemoryNodeStore(), keys)

	n, err := p.LoadConversationKeys(ConversationID{9})
	if err != nil {
		t.Fatalf("LoadConversationKeys on absent record: %v", err)
	}
	if n != 0 {
		t.Fatalf("loaded = %d, want 0", n)
	}
}

func TestPersistentNodeStoreRatchetKeySurvivesRestart(t *testing.T) {
	keys, dir := newTestKeys(t)
	conv := ConversationID{3}
	head := dag.NodeHash{4}
	chain := crypto.ChainKey{0x11, 0x22, 0x33}

	first := NewPersistentNodeStore(NewMemoryNodeStore(), keys)
	first.PutRatchetKey(conv, head, chain)

	keys2, err := crypto.NewEncryptedKeyStore(dir, []byte("test-master-password"))
	if err != nil {
		t.Fatalf("reopening key store: %v", err)
	}
	restarted := NewPersistentNodeStore(NewMemoryNodeStore(), keys2)

	got, ok := restarted.GetRatchetKey(conv, head)
	if !ok {
		t.Fatal("expected ratchet key to be recoverable from the encrypted record")
	}
	if got != chain {
		t.Errorf("GetRatchetKey = %x, want %x", got, chain)
	}

	// Having been loaded once, it should now also be cached in the
	// backing store directly.
	if _, ok := restarted.NodeStore.GetRatchetKey(conv, head); !ok {
		t.Error("GetRatchetKey should repopulate the backing store's cache on load")
	}
}

func TestPersistentNodeStoreDeleteRatchetKeyRemovesDiskRecord(t *testing.T) {
	keys, dir := newTestKeys(t)
	conv := ConversationID{5}
	head := dag.NodeHash{6}

	p := NewPersistentNodeStore(NewMemoryNodeStore(), keys)
	p.PutRatchetKey(conv, head, crypto.ChainKey{0x01})

	recordPath := filepath.Join(dir, ratchetKeyFile(conv, head))
	if _, err := os.Stat(recordPath); err != nil {
		t.Fatalf("expected encrypted ratchet record on disk: %v", err)
	}

	if err := p.DeleteRatchetKey(conv, head); err != nil {
		t.Fatalf("DeleteRatchetKey: %v", err)
	}

	if _, ok := p.GetRatchetKey(conv, head); ok {
		t.Error("ratchet key should be unrecoverable after DeleteRatchetKey")
	}
	if _, err := os.Stat(recordPath); !os.IsNotExist(err) {
		t.Error("encrypted ratchet record should be removed from disk")
	}
}
