package transport

import "time"

type bbrPhase int

const (
	bbrStartup bbrPhase = iota
	bbrDrain
	bbrProbeBW
	bbrProbeRTT
)

// probeBWGainCycle is BBR's pacing-gain rotation in ProbeBW: one round
// of 5/4 (probe for more bandwidth), one round of 3/4 (drain what the
// probe queued), then cruise at 1.0.
var probeBWGainCycle = []float64{1.25, 0.75, 1, 1, 1, 1, 1, 1}

const (
	bbrStartupGain      = 2.885 // 2/ln(2), standard BBR startup gain
	bbrDrainGain        = 1 / bbrStartupGain
	bbrProbeRTTInterval = 10 * time.Second
	bbrProbeRTTDuration = 200 * time.Millisecond
	bbrMinPacingGain    = 0.75
	bbrFullBwRounds     = 3 // rounds with no material bw growth before Startup exits
	bbrFullBwGrowthMin  = 1.25
	bbrFragmentSize     = EstimatedPayloadSize
	bbrMinCWNDFragments = 4
)

// BBR implements a simplified BBRv1: windowed max bandwidth and min
// RTT drive a bandwidth-delay-product CWND, cycling through
// Startup/Drain/ProbeBW/ProbeRTT phases. It deliberately never
// advances past Startup on an app-limited or ping-only (sample==nil)
// ACK, since such samples carry no information about the path's true
// capacity.
type BBR struct {
	phase bbrPhase

	maxBwBytesPerSec float64
	minRTT           time.Duration

	fullBwReached bool
	roundsNoGrowth int

	cycleIndex    int
	cycleStart    time.Time
	lastProbeRTT  time.Time
	inProbeRTT    bool
	probeRTTStart time.Time
}

// NewBBR creates a BBR controller starting in Startup.
func NewBBR() *BBR {
	now := time.Time{}
	return &BBR{phase: bbrStartup, cycleStart: now, lastProbeRTT: now}
}

func (b *BBR) pacingGain() float64 {
	switch b.phase {
	case bbrStartup:
		return bbrStartupGain
	case bbrDrain:
		return bbrDrainGain
	case bbrProbeRTT:
		return 1.0
	default:
		return probeBWGainCycle[b.cycleIndex%len(probeBWGainCycle)]
	}
}

func (b *BBR) OnAck(rtt time.Duration, sample *DeliverySample, bytesAcked int, inFlight int, now time.Time) {
	if rtt > 0 && (b.minRTT == 0 || rtt < b.minRTT) {
		b.minRTT = rtt
	}
	if b.lastProbeRTT.IsZero() {
		b.lastProbeRTT = now
	}

	// A nil sample (ping-only ACK) or an app-limited sample carries no
	// bandwidth information; Startup must not advance on it.
	if sample == nil || sample.AppLimited || sample.Duration <= 0 {
		b.maybeEnterProbeRTT(now)
		return
	}

	bw := float64(sample.BytesDelivered) / sample.Duration.Seconds()
	if bw > b.maxBwBytesPerSec*bbrFullBwGrowthMin {
		b.maxBwBytesPerSec = bw
		b.roundsNoGrowth = 0
	} else {
		if bw > b.maxBwBytesPerSec {
			b.maxBwBytesPerSec = bw
		}
		if b.phase == bbrStartup {
			b.roundsNoGrowth++
		}
	}

	switch b.phase {
	case bbrStartup:
		if b.roundsNoGrowth >= bbrFullBwRounds {
			b.fullBwReached = true
			b.phase = bbrDrain
		}
	case bbrDrain:
		bdpFragments := b.bdpFragments()
		if inFlight <= bdpFragments {
			b.phase = bbrProbeBW
			b.cycleIndex = 0
			b.cycleStart = now
		}
	case bbrProbeBW:
		if now.Sub(b.cycleStart) >= b.minRTT && b.minRTT > 0 {
			b.cycleIndex++
			b.cycleStart = now
		}
	}

	b.maybeEnterProbeRTT(now)
}

func (b *BBR) maybeEnterProbeRTT(now time.Time) {
	if b.inProbeRTT {
		if now.Sub(b.probeRTTStart) >= bbrProbeRTTDuration {
			b.inProbeRTT = false
			b.phase = bbrProbeBW
			b.lastProbeRTT = now
		}
		return
	}
	if b.fullBwReached && now.Sub(b.lastProbeRTT) >= bbrProbeRTTInterval {
		b.inProbeRTT = true
		b.probeRTTStart = now
		b.phase = bbrProbeRTT
	}
}

func (b *BBR) bdpFragments() int {
	if b.maxBwBytesPerSec == 0 || b.minRTT == 0 {
		return bbrMinCWNDFragments
	}
	bdpBytes := b.maxBwBytesPerSec * b.minRTT.Seconds()
	fragments := int(bdpBytes / bbrFragmentSize)
	if fragments < bbrMinCWNDFragments {
		return bbrMinCWNDFragments
	}
	return fragments
}

func (b *BBR) OnNack(now time.Time) {
	// BBR does not treat a single NACK as a congestion-loss signal the
	// way loss-based CC does; it relies on its own bandwidth/RTT model.
}

func (b *BBR) OnTimeout(now time.Time) {
	b.phase = bbrStartup
	b.roundsNoGrowth = 0
	b.fullBwReached = false
}

func (b *BBR) CWND() int {
	gain := 2.0
	if b.phase != bbrStartup {
		gain = 1.0
	}
	fragments := int(float64(b.bdpFragments()) * gain)
	if fragments < bbrMinCWNDFragments {
		return bbrMinCWNDFragments
	}
	return fragments
}

func (b *BBR) PacingRate() float64 {
	return b.maxBwBytesPerSec * b.pacingGain()
}

func (b *BBR) MinRTT() time.Duration { return b.minRTT }

func (b *BBR) OnFragmentSent(bytes int, now time.Time) {}
