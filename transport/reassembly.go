package transport

import (
	"errors"

	"github.com/bits-and-blooms/bitset"
)

// ErrInvalidFragment is returned for a fragment index/total inconsistent
// with the buffer's declared shape or this implementation's limits.
var ErrInvalidFragment = errors.New("transport: invalid fragment")

// FragmentBuffer reassembles one message's fragments as they arrive in
// arbitrary order, tolerating variable per-fragment sizes.
type FragmentBuffer struct {
	MessageID      MessageID
	TotalFragments uint32
	receivedMask   *bitset.BitSet
	fragments      [][]byte
	baseIndex      uint32
	highestIndex   uint32
	receivedCount  uint32
}

// NewFragmentBuffer allocates a buffer for a message declared to have
// totalFragments fragments.
func NewFragmentBuffer(id MessageID, totalFragments uint32) (*FragmentBuffer, error) {
	if totalFragments == 0 || totalFragments > MaxFragmentsPerMessage {
		return nil, ErrInvalidFragment
	}
	return &FragmentBuffer{
		MessageID:      id,
		TotalFragments: totalFragments,
		receivedMask:   bitset.New(uint(totalFragments)),
		fragments:      make([][]byte, totalFragments),
	}, nil
}

// AddFragment stores one fragment's payload. It is idempotent: adding
// an already-received index changes nothing and returns
// (IsComplete(), nil).
func (b *FragmentBuffer) AddFragment(index uint32, payload []byte) (complete bool, err error) {
	if index >= b.TotalFragments {
		return false, ErrInvalidFragment
	}
	if b.receivedMask.Test(uint(index)) {
		return b.IsComplete(), nil
	}

	stored := make([]byte, len(payload))
	copy(stored, payload)
	b.fragments[index] = stored
	b.receivedMask.Set(uint(index))
	b.receivedCount++

	if index > b.highestIndex {
		b.highestIndex = index
	}
	for b.baseIndex < b.TotalFragments && b.receivedMask.Test(uint(b.baseIndex)) {
		b.baseIndex++
	}

	return b.IsComplete(), nil
}

// IsComplete reports whether every fragment has been received.
func (b *FragmentBuffer) IsComplete() bool {
	return b.receivedCount == b.TotalFragments
}

// BaseIndex is the cumulative-ACK point: every fragment below this
// index has been received.
func (b *FragmentBuffer) BaseIndex() uint32 { return b.baseIndex }

// HighestIndex is the highest fragment index seen so far.
func (b *FragmentBuffer) HighestIndex() uint32 { return b.highestIndex }

// Assemble concatenates fragments in index order. It does not check
// IsComplete(): called early, it returns the received fragments joined
// with the missing ones left out, and no marker of the gaps.
func (b *FragmentBuffer) Assemble() []byte {
	total := 0
	for _, f := range b.fragments {
		total += len(f)
	}
	out := make([]byte, 0, total)
	for _, f := range b.fragments {
		out = append(out, f...)
	}
	return out
}

// SelectiveAckBitmask builds the 64-bit window following BaseIndex for
// a SelectiveAck: bit i acks fragment BaseIndex+1+i.
func (b *FragmentBuffer) SelectiveAckBitmask() uint64 {
	var mask uint64
	for i := uint32(0); i < 64; i++ {
		idx := b.baseIndex + 1 + i
		if idx >= b.TotalFragments {
			break
		}
		if b.receivedMask.Test(uint(idx)) {
			mask |= 1 << i
		}
	}
	return mask
}

// MissingIndices lists up to MaxNackIndices unreceived fragment indices
// from BaseIndex up to HighestIndex inclusive (holes worth NACKing).
func (b *FragmentBuffer) MissingIndices() []uint32 {
	var missing []uint32
	for i := b.baseIndex; i <= b.highestIndex && len(missing) < MaxNackIndices; i++ {
		if !b.receivedMask.Test(uint(i)) {
			missing = append(missing, i)
		}
	}
	return missing
}
