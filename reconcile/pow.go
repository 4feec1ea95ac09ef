package reconcile

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"math/bits"
	"time"

	"github.com/opd-ai/merkle-tox/crypto"
)

// DefaultDifficulty is the default number of required leading zero
// bits absent any peer-reported difficulty votes.
const DefaultDifficulty = 12

// ChallengeTTL is how long a pending challenge remains solvable.
const ChallengeTTL = 60 * time.Second

var ErrChallengeExpired = errors.New("reconcile: challenge expired")
var ErrSolutionInvalid = errors.New("reconcile: solution does not meet required difficulty")

var powKey = crypto.DeriveKey("merkle-tox v1 reconciliation pow")

// Challenge binds a 128-bit PowNonce to a sketch range and a required
// difficulty, with an expiry the responder enforces.
type Challenge struct {
	PowNonce   [16]byte
	Difficulty int
	RangeLo    uint64
	RangeHi    uint64
	IssuedAt   time.Time
}

// NewChallenge generates a fresh challenge binding the given sketch
// range at the given difficulty.
func NewChallenge(rangeLo, rangeHi uint64, difficulty int, issuedAt time.Time) (*Challenge, error) {
	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	return &Challenge{
		PowNonce:   nonce,
		Difficulty: difficulty,
		RangeLo:    rangeLo,
		RangeHi:    rangeHi,
		IssuedAt:   issuedAt,
	}, nil
}

func preimage(c *Challenge, solution uint64) []byte {
	buf := make([]byte, 0, 16+8+8+8)
	buf = append(buf, c.PowNonce[:]...)
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], c.RangeLo)
	buf = append(buf, tmp[:]...)
	binary.BigEndian.PutUint64(tmp[:], c.RangeHi)
	buf = append(buf, tmp[:]...)
	binary.BigEndian.PutUint64(tmp[:], solution)
	buf = append(buf, tmp[:]...)
	return buf
}

func leadingZeroBits(digest []byte) int {
	count := 0
	for _, b := range digest {
		if b == 0 {
			count += 8
			continue
		}
		count += bits.LeadingZeros8(b)
		break
	}
	return count
}

// Solve searches for a 64-bit solution whose BLAKE3 preimage hash has
// at least c.Difficulty leading zero bits. It is the responder's side
// of the challenge.
func Solve(c *Challenge) uint64 {
	for solution := uint64(0); ; solution++ {
		digest := crypto.KeyedHash(powKey, preimage(c, solution), 32)
		if leadingZeroBits(digest) >= c.Difficulty {
			return solution
		}
	}
}

// Verify checks a claimed solution against c, rejecting it if now is
// past the challenge's 60-second expiry or the hash doesn't meet
// c.Difficulty.
func Verify(c *Challenge, solution uint64, now time.Time) error {
	if now.Sub(c.IssuedAt) > ChallengeTTL {
		return ErrChallengeExpired
	}
	digest := crypto.KeyedHash(powKey, preimage(c, solution), 32)
	if leadingZeroBits(digest) < c.Difficulty {
		return ErrSolutionInvalid
	}
	return nil
}

// MedianDifficulty computes the median of peer-reported difficulty
// votes, falling back to DefaultDifficulty when no votes exist.
func MedianDifficulty(votes []int) int {
	if len(votes) == 0 {
		return DefaultDifficulty
	}
	sorted := append([]int(nil), votes...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
