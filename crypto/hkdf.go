package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Info tags used to derive the three conversation-scoped keys from a
// conversation's 32-byte root key (KConv). Each tag yields an
// independent key via HKDF-Expand; the tags never change across
// versions of this wire format.
const (
	infoMAC      = "merkle-tox v1 mac key"
	infoPayload  = "merkle-tox v1 payload cipher key"
	infoMetadata = "merkle-tox v1 metadata cipher key"
	infoNonce    = "merkle-tox v1 wire nonce"
)

// ConversationKeys holds the key material derived from a single epoch's
// KConv: a MAC key for content-node authentication, a payload cipher key
// for the AEAD-encrypted wire form, and a metadata cipher key reserved
// for future per-field metadata encryption.
type ConversationKeys struct {
	MACKey      [32]byte
	PayloadKey  [32]byte
	MetadataKey [32]byte
}

// DeriveConversationKeys expands a conversation root key into its three
// derived keys via HKDF-SHA256 with fixed info tags (spec §3).
func DeriveConversationKeys(kConv [32]byte) ConversationKeys {
	var keys ConversationKeys
	expand(kConv, infoMAC, keys.MACKey[:])
	expand(kConv, infoPayload, keys.PayloadKey[:])
	expand(kConv, infoMetadata, keys.MetadataKey[:])
	return keys
}

// expand runs HKDF-Expand(sha256, secret, info) into out, panicking only
// on io.ErrUnexpectedEOF-class failures that indicate a programming
// error (the HKDF reader never legitimately runs dry for a 32-byte read).
func expand(secret [32]byte, info string, out []byte) {
	reader := hkdf.Expand(sha256.New, secret[:], []byte(info))
	if _, err := io.ReadFull(reader, out); err != nil {
		panic("crypto: hkdf expand failed: " + err.Error())
	}
}

// DeriveWireNonce derives the per-message 24-byte nonce used to encrypt a
// WireNode's payload, from the conversation id, the node's hash, and the
// active epoch. Deriving rather than randomly generating the nonce keeps
// pack_wire deterministic given identical inputs, while still guaranteeing
// uniqueness: no two distinct (conversation, node, epoch) triples collide
// short of a NodeHash collision.
func DeriveWireNonce(conversationID [32]byte, nodeHash Hash, epoch uint64) [24]byte {
	salt := make([]byte, 0, 32+32+8)
	salt = append(salt, conversationID[:]...)
	salt = append(salt, nodeHash[:]...)
	salt = append(salt, byte(epoch), byte(epoch>>8), byte(epoch>>16), byte(epoch>>24),
		byte(epoch>>32), byte(epoch>>40), byte(epoch>>48), byte(epoch>>56))

	reader := hkdf.New(sha256.New, salt, nil, []byte(infoNonce))
	var nonce [24]byte
	if _, err := io.ReadFull(reader, nonce[:]); err != nil {
		panic("crypto: hkdf nonce derivation failed: " + err.Error())
	}
	return nonce
}
