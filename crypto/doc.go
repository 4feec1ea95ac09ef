// Package crypto implements the cryptographic primitives used by the
// merkle-tox conversation engine: NaCl-based authenticated encryption,
// Ed25519 signatures for admin/control nodes, HKDF-derived per-conversation
// key material, a per-sender forward-secret ratchet, and memory-safe key
// handling.
//
// # Core Types
//
//   - [KeyPair]: a Curve25519 key pair, used for both master identity keys
//     and ephemeral device keys.
//   - [Nonce]: a 24-byte nonce for NaCl box/secretbox operations.
//   - [Signature]: an Ed25519 signature, used to authenticate admin nodes
//     and device certificates.
//   - [ConversationKeys]: the MAC/payload/metadata key triple derived from
//     a conversation's 32-byte root key (KConv) via HKDF.
//   - [ChainKey]: a per-sender ratchet state, advanced one step per node
//     and never persisted once superseded.
//
// # Conversation Keys
//
//	keys := crypto.DeriveConversationKeys(kConv)
//	ciphertext, err := crypto.EncryptSymmetric(payload, nonce, keys.PayloadKey)
//
// # Admin Signatures
//
// Admin/control nodes are signed with a preimage that mixes in the
// conversation id, preventing cross-room replay (spec §4.2, property 9):
//
//	sig, _ := crypto.Sign(append(conversationID[:], nodePrefix...), deviceSK)
//
// # Key Wrap
//
// [WrapKey] encrypts a fresh KConv for a recipient's X25519-derived public
// key using a NaCl anonymous box with a unique nonce per (recipient,
// rotation) — reusing a nonce across rotations would leak the XOR of the
// two wrapped keys (spec property 12).
//
// # Secure Memory
//
// Ratchet chain keys and superseded conversation-key epochs must be
// destroyed promptly:
//
//	defer crypto.SecureWipe(chainKey[:])
package crypto
