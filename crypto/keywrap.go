package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/nacl/box"
)

// WrappedKey is the ciphertext produced by WrapKey: a fresh KConv
// encrypted for one recipient's X25519 public key, under a nonce unique
// to this (recipient, rotation) instance.
type WrappedKey struct {
	Ciphertext []byte
	Nonce      Nonce
}

// WrapKey encrypts kConvNew for recipientPK using a NaCl anonymous box
// (an ephemeral sender key generated per call) so that only the holder of
// recipientPK's private key can recover it. A fresh random nonce is
// drawn for every call: reusing a nonce across two rotations would XOR
// the two plaintext keys into the attacker's hands (spec property 12),
// so the ephemeral keypair plus a fresh nonce together rule that out.
func WrapKey(kConvNew [32]byte, recipientPK [32]byte) (*WrappedKey, error) {
	ephemeral, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	defer WipeKeyPair(ephemeral)

	nonce, err := GenerateNonce()
	if err != nil {
		return nil, err
	}

	sealed := box.Seal(nil, kConvNew[:], (*[24]byte)(&nonce), (*[32]byte)(&recipientPK), &ephemeral.Private)

	// Prepend the ephemeral public key so the recipient can open without
	// an out-of-band channel; this mirrors NaCl's "sealed box" construction.
	out := make([]byte, 32+len(sealed))
	copy(out, ephemeral.Public[:])
	copy(out[32:], sealed)

	return &WrappedKey{Ciphertext: out, Nonce: nonce}, nil
}

// UnwrapKey recovers a KConv wrapped by WrapKey, using the recipient's
// private key.
func UnwrapKey(wrapped *WrappedKey, recipientSK [32]byte) ([32]byte, error) {
	var zero [32]byte
	if wrapped == nil || len(wrapped.Ciphertext) < 32 {
		return zero, errors.New("keywrap: truncated wrapped key")
	}

	var ephemeralPub [32]byte
	copy(ephemeralPub[:], wrapped.Ciphertext[:32])

	plaintext, ok := box.Open(nil, wrapped.Ciphertext[32:], (*[24]byte)(&wrapped.Nonce), &ephemeralPub, &recipientSK)
	if !ok {
		return zero, errors.New("keywrap: decryption failed")
	}
	if len(plaintext) != 32 {
		return zero, errors.New("keywrap: unexpected plaintext length")
	}

	var kConv [32]byte
	copy(kConv[:], plaintext)
	return kConv, nil
}

// RandomKConv draws a fresh 32-byte conversation root key.
func RandomKConv() ([32]byte, error) {
	var k [32]byte
	_, err := rand.Read(k[:])
	return k, err
}
