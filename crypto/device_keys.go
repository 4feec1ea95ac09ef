package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// A device's 32-byte identity seed authenticates two distinct roles: it is
// the Ed25519 signing seed behind its PhysicalDevicePk (admin/control node
// signatures, certificates), and it derives a separate X25519 encryption
// keypair used only as a KeyWrap recipient. Reusing one curve for both
// roles is the open question spec.md leaves unresolved for multi-purpose
// identity keys; deriving a distinct X25519 pair keeps the two domains
// cryptographically independent while needing only one secret per device.
const deviceEncryptionInfo = "merkle-tox v1 device encryption key"

// DeriveEncryptionKeyPair derives the X25519 keypair used when this device
// is a KeyWrap recipient, from its Ed25519 signing seed.
func DeriveEncryptionKeyPair(signingSeed [32]byte) (*KeyPair, error) {
	reader := hkdf.New(sha256.New, signingSeed[:], nil, []byte(deviceEncryptionInfo))

	var scalar [32]byte
	if _, err := io.ReadFull(reader, scalar[:]); err != nil {
		return nil, err
	}

	// Standard X25519 scalar clamping (RFC 7748 §5).
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64

	var public [32]byte
	curve25519.ScalarBaseMult(&public, &scalar)

	return &KeyPair{Public: public, Private: scalar}, nil
}
