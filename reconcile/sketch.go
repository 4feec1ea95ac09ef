package reconcile

import (
	"encoding/binary"
	"errors"

	"github.com/opd-ai/merkle-tox/crypto"
)

// Tier is one of the fixed IBLT sketch sizes.
type Tier int

const (
	Tiny   Tier = 16
	Small  Tier = 64
	Medium Tier = 256
	Large  Tier = 1024
)

func (t Tier) cells() int { return int(t) }

// K is the number of cells each inserted id is distributed across.
const K = 4

// ErrInvalidSketch is returned when subtracting sketches of unequal size.
var ErrInvalidSketch = errors.New("reconcile: sketches have unequal size")

// ErrDecodingFailed is returned when peeling cannot fully resolve the
// set difference, typically because the true difference exceeds the
// tier's supported capacity.
var ErrDecodingFailed = errors.New("reconcile: decoding failed")

var (
	indicesKey  = crypto.DeriveKey("merkle-tox v1 iblt indices")
	checksumKey = crypto.DeriveKey("merkle-tox v1 iblt checksum")
)

// indices derives the K cell positions an id hashes to within a sketch
// of the given size. The positions are not deduplicated, so two of
// them can coincide.
func indices(id [32]byte, size int) [K]int {
	digest := crypto.KeyedHash(indicesKey, id[:], K*8)
	var out [K]int
	for i := 0; i < K; i++ {
		v := binary.BigEndian.Uint64(digest[i*8 : i*8+8])
		out[i] = int(v % uint64(size))
	}
	return out
}

// checksum derives the 64-bit per-id checksum stored in hash_sum.
func checksum(id [32]byte) uint64 {
	digest := crypto.KeyedHash(checksumKey, id[:], 8)
	return binary.BigEndian.Uint64(digest)
}

// Cell is one slot of an IBLT sketch.
type Cell struct {
	Count   int32
	IDSum   [32]byte
	HashSum uint64
}

func (c *Cell) xorIn(id [32]byte, sign int32) {
	for i := range c.IDSum {
		c.IDSum[i] ^= id[i]
	}
	c.HashSum ^= checksum(id)
	c.Count += sign
}

func (c *Cell) isPure() bool {
	if c.Count != 1 && c.Count != -1 {
		return false
	}
	return checksum(c.IDSum) == c.HashSum
}

func (c *Cell) isEmpty() bool {
	return c.Count == 0 && c.HashSum == 0 && c.IDSum == [32]byte{}
}

// Sketch is an IBLT over 32-byte ids at a fixed tier.
type Sketch struct {
	Tier  Tier
	Cells []Cell
}

// NewSketch allocates an empty sketch at the given tier.
func NewSketch(tier Tier) *Sketch {
	return &Sketch{Tier: tier, Cells: make([]Cell, tier.cells())}
}

// Insert adds id to the sketch.
func (s *Sketch) Insert(id [32]byte) {
	for _, idx := range indices(id, len(s.Cells)) {
		s.Cells[idx].xorIn(id, 1)
	}
}

// Remove deletes id from the sketch (equivalent to inserting with
// negative sign).
func (s *Sketch) Remove(id [32]byte) {
	for _, idx := range indices(id, len(s.Cells)) {
		s.Cells[idx].xorIn(id, -1)
	}
}

// Subtract returns a new sketch representing the cell-wise difference
// self - other: counts subtract, sums XOR. Both sketches must share the
// same tier.
func (s *Sketch) Subtract(other *Sketch) (*Sketch, error) {
	if len(s.Cells) != len(other.Cells) {
		return nil, ErrInvalidSketch
	}
	out := NewSketch(s.Tier)
	for i := range s.Cells {
		out.Cells[i].Count = s.Cells[i].Count - other.Cells[i].Count
		out.Cells[i].HashSum = s.Cells[i].HashSum ^ other.Cells[i].HashSum
		var id [32]byte
		for b := range id {
			id[b] = s.Cells[i].IDSum[b] ^ other.Cells[i].IDSum[b]
		}
		out.Cells[i].IDSum = id
	}
	return out, nil
}

// DecodeStats reports how many pure cells were peeled before decoding
// stopped.
type DecodeStats struct {
	PeeledCount int
}

// Decode peels pure cells from a difference sketch (as produced by
// Subtract) until none remain, returning the ids present only on the
// local side (in_self, count == +1) and only on the remote side
// (in_other, count == -1). If residual nonzero cells remain once no
// pure cell can be found, it returns ErrDecodingFailed.
func (s *Sketch) Decode() (inSelf, inOther [][32]byte, stats DecodeStats, err error) {
	cells := make([]Cell, len(s.Cells))
	copy(cells, s.Cells)

	for {
		pureIdx := -1
		for i := range cells {
			if cells[i].isPure() {
				pureIdx = i
				break
			}
		}
		if pureIdx == -1 {
			break
		}

		id := cells[pureIdx].IDSum
		sign := cells[pureIdx].Count
		if sign == 1 {
			inSelf = append(inSelf, id)
		} else {
			inOther = append(inOther, id)
		}
		stats.PeeledCount++

		for _, idx := range indices(id, len(cells)) {
			cells[idx].xorIn(id, -sign)
		}
	}

	for i := range cells {
		if !cells[i].isEmpty() {
			return inSelf, inOther, stats, ErrDecodingFailed
		}
	}
	return inSelf, inOther, stats, nil
}
