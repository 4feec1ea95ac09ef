package crypto

import (
	"lukechampine.com/blake3"
)

// HashSize is the size in bytes of a node hash (NodeHash).
const HashSize = 32

// Hash is a 32-byte BLAKE3 digest, used as a content-addressed NodeHash.
type Hash [HashSize]byte

// deriveContextKey derives a 32-byte context key from a fixed purpose
// string, following blake3's key-derivation mode. Every distinct purpose
// (node hashing, IBLT index selection, IBLT checksum) uses its own
// derived key; no context is ever reused across purposes (spec §4.1).
func deriveContextKey(context string) [32]byte {
	return blake3.DeriveKey(context, nil)
}

// NodeHashContext is the context string for hashing a MerkleNode's
// unauthenticated prefix into its NodeHash.
const NodeHashContext = "merkle-tox v1 node hash"

var nodeHashKey = deriveContextKey(NodeHashContext)

// HashNode computes hash(x) = BLAKE3_keyed(context_key, serialize(x)) for
// the canonical serialization of a node's unauthenticated prefix.
func HashNode(serialized []byte) Hash {
	h := blake3.New(HashSize, nodeHashKey[:])
	h.Write(serialized)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// KeyedHash computes a BLAKE3 keyed hash of data under an arbitrary
// 32-byte context key, for purposes outside the fixed node-hash context
// (e.g. the reconciliation package's IBLT index/checksum derivations).
func KeyedHash(contextKey [32]byte, data []byte, outLen int) []byte {
	h := blake3.New(outLen, contextKey[:])
	h.Write(data)
	return h.Sum(nil)
}

// DeriveKey derives a 32-byte key from an arbitrary context string,
// exposed so other packages can mint their own purpose-specific context
// keys the same way the node-hash context is derived.
func DeriveKey(context string) [32]byte {
	return deriveContextKey(context)
}
