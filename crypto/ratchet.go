package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ChainKey is a per-sender forward-secret ratchet state. It advances one
// step per node authored or received from that sender; the previous
// value MUST be wiped immediately after advancing (spec property 13 —
// get_ratchet_key for the superseded head returns None).
type ChainKey [32]byte

const (
	ratchetInfoNext = "merkle-tox v1 ratchet next"
	ratchetInfoMsg  = "merkle-tox v1 ratchet message key"
)

// InitialChainKey derives the first chain key for a device from the
// conversation's MAC key and the device's public key, giving every
// member a deterministic but unpredictable starting point without an
// extra handshake round trip.
func InitialChainKey(macKey [32]byte, devicePK [32]byte) ChainKey {
	reader := hkdf.New(sha256.New, macKey[:], devicePK[:], []byte("merkle-tox v1 ratchet init"))
	var ck ChainKey
	if _, err := io.ReadFull(reader, ck[:]); err != nil {
		panic("crypto: ratchet init failed: " + err.Error())
	}
	return ck
}

// Advance derives the next chain key and the message key for the current
// step, then destroys the receiver's own copy of the prior chain key.
// Callers MUST overwrite their stored chain key with next and discard msg
// once it's no longer needed; the store-level ratchet key MUST be deleted
// for the superseded head, not merely replaced in memory.
func (ck *ChainKey) Advance() (next ChainKey, msgKey [32]byte) {
	nextReader := hkdf.Expand(sha256.New, ck[:], []byte(ratchetInfoNext))
	if _, err := io.ReadFull(nextReader, next[:]); err != nil {
		panic("crypto: ratchet advance failed: " + err.Error())
	}

	msgReader := hkdf.Expand(sha256.New, ck[:], []byte(ratchetInfoMsg))
	if _, err := io.ReadFull(msgReader, msgKey[:]); err != nil {
		panic("crypto: ratchet advance failed: " + err.Error())
	}

	SecureWipe(ck[:])
	return next, msgKey
}
