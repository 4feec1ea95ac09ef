package store

import (
	"sync"

	"github.com/opd-ai/merkle-tox/crypto"
)

// SmallBlobThreshold is the size above which a production BlobStore
// implementation would spill chunks to the filesystem rather than
// keeping them resident; the in-memory reference store ignores this
// and always keeps chunks resident, but exposes the constant so
// callers size test fixtures consistently with production behavior.
const SmallBlobThreshold = 256 * 1024

// BlobInfo describes a blob's out-of-band metadata, independent of any
// single conversation's DAG node referencing it.
type BlobInfo struct {
	Hash     crypto.Hash
	Name     string
	MimeType string
	Size     uint64
	BaoRoot  crypto.Hash
}

// ChunkProof is a Bao-style slice proof validating one chunk against
// BlobInfo.BaoRoot.
type ChunkProof []byte

const BlobChunkSize = 64 * 1024

// BlobStore is the engine's persistence contract for blob content
// referenced by dag.Blob nodes.
type BlobStore interface {
	PutBlobInfo(conv ConversationID, info BlobInfo)
	GetBlobInfo(hash crypto.Hash) (BlobInfo, bool)
	PutChunk(conv ConversationID, blob crypto.Hash, offset uint64, data []byte, proof ChunkProof) error
	GetChunk(blob crypto.Hash, offset uint64, length uint64) ([]byte, error)
}

// MemoryBlobStore is an in-memory BlobStore reference implementation.
type MemoryBlobStore struct {
	mu     sync.RWMutex
	infos  map[crypto.Hash]BlobInfo
	chunks map[crypto.Hash]map[uint64][]byte
}

// NewMemoryBlobStore creates an empty in-memory blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{
		infos:  make(map[crypto.Hash]BlobInfo),
		chunks: make(map[crypto.Hash]map[uint64][]byte),
	}
}

func (s *MemoryBlobStore) PutBlobInfo(conv ConversationID, info BlobInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos[info.Hash] = info
}

func (s *MemoryBlobStore) GetBlobInfo(hash crypto.Hash) (BlobInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.infos[hash]
	return info, ok
}

// PutChunk stores one chunk's bytes. Bao slice-proof verification
// against BlobInfo.BaoRoot is performed by the session package before
// a chunk reaches the store; by the time PutChunk is called the chunk
// is already trusted, so proof is not stored.
func (s *MemoryBlobStore) PutChunk(conv ConversationID, blob crypto.Hash, offset uint64, data []byte, proof ChunkProof) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byOffset, ok := s.chunks[blob]
	if !ok {
		byOffset = make(map[uint64][]byte)
		s.chunks[blob] = byOffset
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	byOffset[offset] = stored
	return nil
}

func (s *MemoryBlobStore) GetChunk(blob crypto.Hash, offset uint64, length uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byOffset, ok := s.chunks[blob]
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := byOffset[offset]
	if !ok {
		return nil, ErrNotFound
	}
	if uint64(len(data)) < length {
		return nil, ErrNotFound
	}
	return data[:length], nil
}
