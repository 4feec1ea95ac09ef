package netclock

import (
	"testing"
	"time"
)

// manualTimeProvider implements crypto.TimeProvider with a clock the
// test advances explicitly, for deterministic slew/jump assertions.
type manualTimeProvider struct {
	now time.Time
}

func (m *manualTimeProvider) Now() time.Time { return m.now }
func (m *manualTimeProvider) Since(t time.Time) time.Duration { return m.now.Sub(t) }
func (m *manualTimeProvider) advance(d time.Duration)         { m.now = m.now.Add(d) }

func newManual() *manualTimeProvider {
	return &manualTimeProvider{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestFirstSampleJumps(t *testing.T) {
	tp := newManual()
	c := NewClock(tp)
	c.UpdatePeerOffsetWeighted([32]byte{1}, 5000, 1)
	if c.CurrentOffsetMs() != 5000 {
		t.Fatalf("first sample should jump directly to target, got %v", c.CurrentOffsetMs())
	}
}

func TestLargeDivergenceJumps(t *testing.T) {
	tp := newManual()
	c := NewClock(tp)
	c.UpdatePeerOffsetWeighted([32]byte{1}, 0, 1)
	tp.advance(time.Second)
	c.UpdatePeerOffsetWeighted([32]byte{1}, int64((11 * time.Minute).Milliseconds()), 1)
	if c.CurrentOffsetMs() != float64((11 * time.Minute).Milliseconds()) {
		t.Fatalf("divergence beyond JumpThreshold must jump immediately, got %v", c.CurrentOffsetMs())
	}
}

func TestSmallDivergenceSlews(t *testing.T) {
	tp := newManual()
	c := NewClock(tp)
	c.UpdatePeerOffsetWeighted([32]byte{1}, 0, 1)

	tp.advance(time.Second)
	c.UpdatePeerOffsetWeighted([32]byte{1}, 1000, 1)
	if c.CurrentOffsetMs() != 0 {
		t.Fatalf("offset should not jump on first update call, got %v", c.CurrentOffsetMs())
	}

	tp.advance(1000 * time.Millisecond)
	_ = c.NetworkTimeMs()
	if got := c.CurrentOffsetMs(); got > 10.0001 || got < 9.9999 {
		t.Fatalf("after 1000ms slew should move at most 10ms toward target, got %v", got)
	}
}

func TestWeightedMedianOddTotal(t *testing.T) {
	c := NewClock(newManual())
	c.peerOffsets[[32]byte{1}] = PeerOffset{OffsetMs: 100, Weight: 1}
	c.peerOffsets[[32]byte{2}] = PeerOffset{OffsetMs: 200, Weight: 1}
	c.peerOffsets[[32]byte{3}] = PeerOffset{OffsetMs: 300, Weight: 1}
	if got := c.weightedMedian(); got != 200 {
		t.Fatalf("median of [100,200,300] weight 1 each = %v, want 200", got)
	}
}

func TestWeightedMedianEvenTotalAverages(t *testing.T) {
	c := NewClock(newManual())
	c.peerOffsets[[32]byte{1}] = PeerOffset{OffsetMs: 100, Weight: 1}
	c.peerOffsets[[32]byte{2}] = PeerOffset{OffsetMs: 300, Weight: 1}
	if got := c.weightedMedian(); got != 200 {
		t.Fatalf("even total weight should average the two middle samples: got %v, want 200", got)
	}
}

// TestByzantineResistance: a minority of equal-weight dishonest peers
// cannot drag the median past what the honest majority permits.
func TestByzantineResistance(t *testing.T) {
	c := NewClock(newManual())
	honestOffsets := []int64{0, 10, 20, 30, 40}
	for i, off := range honestOffsets {
		c.peerOffsets[[32]byte{byte(i + 1)}] = PeerOffset{OffsetMs: off, Weight: 1}
	}
	// two dishonest peers (< floor((n-1)/2) = 3 for n=7) reporting an extreme offset.
	c.peerOffsets[[32]byte{90}] = PeerOffset{OffsetMs: 1_000_000, Weight: 1}
	c.peerOffsets[[32]byte{91}] = PeerOffset{OffsetMs: 1_000_000, Weight: 1}

	median := c.weightedMedian()
	if median < 0 || median > 40 {
		t.Fatalf("median %v moved outside the honest peers' range despite a minority of dishonest votes", median)
	}
}

func TestNetworkTimeMonotonic(t *testing.T) {
	tp := newManual()
	c := NewClock(tp)
	prev := c.NetworkTimeMs()
	for i := 0; i < 5; i++ {
		tp.advance(100 * time.Millisecond)
		next := c.NetworkTimeMs()
		if next < prev {
			t.Fatalf("network time went backwards: %d -> %d", prev, next)
		}
		prev = next
	}
}

func TestNetworkTimeMonotonicAcrossBackwardsJump(t *testing.T) {
	tp := newManual()
	c := NewClock(tp)
	prev := c.NetworkTimeMs()

	tp.advance(-time.Hour) // system clock stepped backwards
	next := c.NetworkTimeMs()
	if next < prev {
		t.Fatalf("network time must clamp to last_network_time, got %d < %d", next, prev)
	}
}
