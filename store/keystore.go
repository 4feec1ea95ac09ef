package store

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/opd-ai/merkle-tox/crypto"
	"github.com/opd-ai/merkle-tox/dag"
)

// PersistentNodeStore decorates a NodeStore, additionally persisting
// conversation epoch keys (KConv) and ratchet chain keys to an
// encrypted-at-rest backing store. DAG nodes, heads, and verification
// state remain the decorated store's responsibility; only the key
// material that forward secrecy and epoch rotation depend on is
// durable across a restart.
type PersistentNodeStore struct {
	NodeStore
	keys *crypto.EncryptedKeyStore
}

// NewPersistentNodeStore wraps backing with an encrypted key-persistence
// layer rooted at keys. Every NodeStore method not overridden here is
// served directly by backing.
func NewPersistentNodeStore(backing NodeStore, keys *crypto.EncryptedKeyStore) *PersistentNodeStore {
	return &PersistentNodeStore{NodeStore: backing, keys: keys}
}

func convKeyFile(conv ConversationID) string {
	return "convkeys-" + hex.EncodeToString(conv[:])
}

func ratchetKeyFile(conv ConversationID, head dag.NodeHash) string {
	return "ratchet-" + hex.EncodeToString(conv[:]) + "-" + hex.EncodeToString(head[:])
}

const conversationKeyEntrySize = 8 + 32 // epoch + KConv

func encodeConversationKeys(entries []ConversationKeyEntry) []byte {
	out := make([]byte, 0, len(entries)*conversationKeyEntrySize)
	for _, e := range entries {
		var buf [conversationKeyEntrySize]byte
		binary.BigEndian.PutUint64(buf[0:8], e.Epoch)
		copy(buf[8:], e.KConv[:])
		out = append(out, buf[:]...)
	}
	return out
}

func decodeConversationKeys(data []byte) ([]ConversationKeyEntry, error) {
	if len(data)%conversationKeyEntrySize != 0 {
		return nil, fmt.Errorf("store: corrupt conversation key record (%d bytes)", len(data))
	}
	out := make([]ConversationKeyEntry, 0, len(data)/conversationKeyEntrySize)
	for off := 0; off < len(data); off += conversationKeyEntrySize {
		var e ConversationKeyEntry
		e.Epoch = binary.BigEndian.Uint64(data[off : off+8])
		copy(e.KConv[:], data[off+8:off+conversationKeyEntrySize])
		out = append(out, e)
	}
	return out, nil
}

// PutConversationKey records kConv in the backing store and appends it
// to the encrypted on-disk record for conv, so a restarted process can
// recover every epoch's KConv without having re-derived it from the
// KeyWrap DAG.
func (p *PersistentNodeStore) PutConversationKey(conv ConversationID, epoch uint64, kConv [32]byte) {
	p.NodeStore.PutConversationKey(conv, epoch, kConv)
	if p.keys == nil {
		return
	}

	entries := p.NodeStore.GetConversationKeys(conv)
	// Best effort: PutConversationKey has no error return (it is the
	// NodeStore contract), so a write failure here only costs durability
	// across a restart, not correctness of the running process.
	_ = p.keys.WriteEncrypted(convKeyFile(conv), encodeConversationKeys(entries))
}

// LoadConversationKeys restores any encrypted on-disk conversation keys
// for conv into the backing store, returning the number of entries
// loaded. Call once per conversation at startup, before the engine
// authors or verifies any node.
func (p *PersistentNodeStore) LoadConversationKeys(conv ConversationID) (int, error) {
	if p.keys == nil {
		return 0, nil
	}
	data, err := p.keys.ReadEncrypted(convKeyFile(conv))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	entries, err := decodeConversationKeys(data)
	if err != nil {
		return 0, err
	}
	existing := make(map[uint64]bool)
	for _, e := range p.NodeStore.GetConversationKeys(conv) {
		existing[e.Epoch] = true
	}
	loaded := 0
	for _, e := range entries {
		if existing[e.Epoch] {
			continue
		}
		p.NodeStore.PutConversationKey(conv, e.Epoch, e.KConv)
		loaded++
	}
	return loaded, nil
}

// PutRatchetKey records chainKey in the backing store and persists it
// encrypted at rest, keyed by the DAG head that produced it.
func (p *PersistentNodeStore) PutRatchetKey(conv ConversationID, head dag.NodeHash, chainKey crypto.ChainKey) {
	p.NodeStore.PutRatchetKey(conv, head, chainKey)
	if p.keys == nil {
		return
	}
	_ = p.keys.WriteEncrypted(ratchetKeyFile(conv, head), chainKey[:])
}

// GetRatchetKey serves from the backing store's in-memory cache first;
// on a miss (e.g. immediately after a restart) it falls back to the
// encrypted on-disk record and repopulates the cache.
func (p *PersistentNodeStore) GetRatchetKey(conv ConversationID, head dag.NodeHash) (crypto.ChainKey, bool) {
	if ck, ok := p.NodeStore.GetRatchetKey(conv, head); ok {
		return ck, true
	}
	if p.keys == nil {
		return crypto.ChainKey{}, false
	}
	data, err := p.keys.ReadEncrypted(ratchetKeyFile(conv, head))
	if err != nil || len(data) != len(crypto.ChainKey{}) {
		return crypto.ChainKey{}, false
	}
	var ck crypto.ChainKey
	copy(ck[:], data)
	p.NodeStore.PutRatchetKey(conv, head, ck)
	return ck, true
}

// DeleteRatchetKey removes chainKey from the backing store and
// overwrites/removes its encrypted on-disk record: forward secrecy
// requires that a forgotten ratchet key not merely vanish from memory
// but be unrecoverable from disk too.
func (p *PersistentNodeStore) DeleteRatchetKey(conv ConversationID, head dag.NodeHash) error {
	if err := p.NodeStore.DeleteRatchetKey(conv, head); err != nil {
		return err
	}
	if p.keys == nil {
		return nil
	}
	if err := p.keys.DeleteEncrypted(ratchetKeyFile(conv, head)); err != nil {
		return fmt.Errorf("store: deleting persisted ratchet key: %w", err)
	}
	return nil
}
