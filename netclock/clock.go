package netclock

import (
	"math"
	"sort"
	"time"

	"github.com/opd-ai/merkle-tox/crypto"
)

// MaxSlewRate bounds how fast currentOffset may move toward
// targetOffset: at most 1% of elapsed real time (10ms per 1000ms).
const MaxSlewRate = 0.01

// JumpThreshold is the divergence beyond which the clock jumps
// directly to the target offset instead of slewing.
const JumpThreshold = 10 * time.Minute

// PeerOffset is one peer's reported offset and the weight given to it
// in the consensus median.
type PeerOffset struct {
	OffsetMs int64
	Weight   uint32
}

// Clock is a Byzantine-resilient network clock: a weighted median of
// peer-reported offsets applied to the local monotonic clock.
type Clock struct {
	tp crypto.TimeProvider

	peerOffsets map[[32]byte]PeerOffset

	targetOffset  float64
	currentOffset float64
	neverSlewed   bool

	lastSlewInstant time.Time
	baseInstant     time.Time
	baseSystemTime  int64
	lastNetworkTime int64
}

// NewClock creates a clock anchored to tp.Now() at offset zero.
func NewClock(tp crypto.TimeProvider) *Clock {
	now := tp.Now()
	return &Clock{
		tp:              tp,
		peerOffsets:     make(map[[32]byte]PeerOffset),
		neverSlewed:     true,
		lastSlewInstant: now,
		baseInstant:     now,
		baseSystemTime:  now.UnixMilli(),
		lastNetworkTime: now.UnixMilli(),
	}
}

// UpdatePeerOffsetWeighted records peer's offset/weight and recomputes
// the weighted-median target, jumping or slewing the local offset
// toward it per spec §4.4.
func (c *Clock) UpdatePeerOffsetWeighted(peer [32]byte, offsetMs int64, weight uint32) {
	c.peerOffsets[peer] = PeerOffset{OffsetMs: offsetMs, Weight: weight}

	now := c.tp.Now()
	c.advance(now)

	target := c.weightedMedian()

	switch {
	case c.neverSlewed:
		c.currentOffset = target
		c.neverSlewed = false
	case math.Abs(target-c.currentOffset) > float64(JumpThreshold.Milliseconds()):
		c.currentOffset = target
	}
	c.targetOffset = target
	c.lastSlewInstant = now
}

func (c *Clock) weightedMedian() float64 {
	entries := make([]PeerOffset, 0, len(c.peerOffsets))
	var total uint64
	for _, e := range c.peerOffsets {
		entries = append(entries, e)
		total += uint64(e.Weight)
	}
	if total == 0 {
		return 0
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].OffsetMs < entries[j].OffsetMs })

	var cum uint64
	for i, e := range entries {
		cum += uint64(e.Weight)
		switch {
		case cum*2 == total:
			if i+1 < len(entries) {
				return (float64(e.OffsetMs) + float64(entries[i+1].OffsetMs)) / 2
			}
			return float64(e.OffsetMs)
		case cum*2 > total:
			return float64(e.OffsetMs)
		}
	}
	return float64(entries[len(entries)-1].OffsetMs)
}

// advance slews currentOffset toward targetOffset for the real time
// elapsed since the last slew, bounded to MaxSlewRate.
func (c *Clock) advance(now time.Time) {
	elapsed := now.Sub(c.lastSlewInstant)
	if elapsed <= 0 {
		return
	}
	diff := c.targetOffset - c.currentOffset
	if diff == 0 {
		c.lastSlewInstant = now
		return
	}
	maxDelta := float64(elapsed.Milliseconds()) * MaxSlewRate
	switch {
	case math.Abs(diff) <= maxDelta:
		c.currentOffset = c.targetOffset
	case diff > 0:
		c.currentOffset += maxDelta
	default:
		c.currentOffset -= maxDelta
	}
	c.lastSlewInstant = now
}

// NetworkTimeMs returns the current consensus network time in
// milliseconds, strictly monotonic across calls even if the system
// clock is stepped backwards.
func (c *Clock) NetworkTimeMs() int64 {
	now := c.tp.Now()
	c.advance(now)

	elapsedSinceBase := now.Sub(c.baseInstant).Milliseconds()
	t := c.baseSystemTime + elapsedSinceBase + int64(c.currentOffset)
	if t < c.lastNetworkTime {
		t = c.lastNetworkTime
	}
	c.lastNetworkTime = t
	return t
}

// CurrentOffsetMs returns the clock's current (possibly mid-slew)
// offset, for diagnostics.
func (c *Clock) CurrentOffsetMs() float64 {
	return c.currentOffset
}
