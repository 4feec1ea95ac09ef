package crypto

import (
	"crypto/ed25519"
	"errors"
)

// SignatureSize is the size of an Ed25519 signature in bytes.
const SignatureSize = ed25519.SignatureSize

// Signature represents an Ed25519 signature, used to authenticate admin
// (control) nodes and device certificates. Content nodes use a MAC
// instead (see KeyedHash and ConversationKeys.MACKey).
type Signature [SignatureSize]byte

// Sign creates an Ed25519 signature over preimage using privateKey.
//
// Callers authenticating a MerkleNode's admin content MUST mix the
// conversation id into preimage themselves before calling Sign — a
// signature valid in one conversation must never verify in another
// (spec property 9, cross-room replay).
func Sign(preimage []byte, privateKey [32]byte) (Signature, error) {
	if len(preimage) == 0 {
		return Signature{}, errors.New("empty preimage")
	}

	// Ed25519 private keys are 64 bytes (32-byte seed + 32-byte public key);
	// we only ever carry the 32-byte seed.
	edPrivateKey := ed25519.NewKeyFromSeed(privateKey[:])
	signatureBytes := ed25519.Sign(edPrivateKey, preimage)

	var signature Signature
	copy(signature[:], signatureBytes)
	return signature, nil
}

// Verify checks whether signature is valid for preimage under publicKey.
func Verify(preimage []byte, signature Signature, publicKey [32]byte) (bool, error) {
	if len(preimage) == 0 {
		return false, errors.New("empty preimage")
	}

	var edPublicKey [ed25519.PublicKeySize]byte
	copy(edPublicKey[:], publicKey[:])

	return ed25519.Verify(edPublicKey[:], preimage, signature[:]), nil
}

// GetSignaturePublicKey derives the Ed25519 public key corresponding to a
// 32-byte signing seed. Used when a node only carries the signer's secret
// seed (e.g. a freshly generated device key) and needs the public half to
// populate a certificate or to self-check a signature before authoring.
func GetSignaturePublicKey(privateKey [32]byte) [32]byte {
	edPrivateKey := ed25519.NewKeyFromSeed(privateKey[:])
	edPublicKey := edPrivateKey.Public().(ed25519.PublicKey)

	var publicKey [32]byte
	copy(publicKey[:], edPublicKey)
	return publicKey
}
