package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/nacl/secretbox"
)

// Nonce is a 24-byte value used for encryption.
type Nonce [24]byte

// GenerateNonce creates a cryptographically secure random nonce.
func GenerateNonce() (Nonce, error) {
	var nonce Nonce
	if _, err := rand.Read(nonce[:]); err != nil {
		return Nonce{}, err
	}
	return nonce, nil
}

// MaxMessageSize bounds a single EncryptSymmetric payload.
const MaxMessageSize = 1024 * 1024

// EncryptSymmetric encrypts a message under a symmetric key using NaCl
// secretbox, providing both confidentiality and integrity.
func EncryptSymmetric(message []byte, nonce Nonce, key [32]byte) ([]byte, error) {
	if len(message) == 0 {
		return nil, errors.New("empty message")
	}
	if len(message) > MaxMessageSize {
		return nil, errors.New("message too large")
	}

	var keyCopy [32]byte
	copy(keyCopy[:], key[:])
	defer ZeroBytes(keyCopy[:])

	out := secretbox.Seal(nil, message, (*[24]byte)(&nonce), (*[32]byte)(&keyCopy))
	outCopy := make([]byte, len(out))
	copy(outCopy, out)
	return outCopy, nil
}
