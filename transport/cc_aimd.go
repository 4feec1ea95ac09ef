package transport

import "time"

// AIMD is additive-increase/multiplicative-decrease congestion control:
// CWND grows by one fragment per ACK'd round, halves on loss (NACK),
// and resets to the minimum on RTO.
type AIMD struct {
	cwnd   float64
	minRTT time.Duration
}

const (
	aimdInitialCWND = 10.0
	aimdMinCWND     = 2.0
)

// NewAIMD creates an AIMD controller at the spec-mandated initial
// window of 10 fragments.
func NewAIMD() *AIMD {
	return &AIMD{cwnd: aimdInitialCWND}
}

func (a *AIMD) OnAck(rtt time.Duration, sample *DeliverySample, bytesAcked int, inFlight int, now time.Time) {
	if a.minRTT == 0 || (rtt > 0 && rtt < a.minRTT) {
		a.minRTT = rtt
	}
	a.cwnd += 1.0 / a.cwnd
}

func (a *AIMD) OnNack(now time.Time) {
	a.cwnd /= 2
	if a.cwnd < aimdMinCWND {
		a.cwnd = aimdMinCWND
	}
}

func (a *AIMD) OnTimeout(now time.Time) {
	a.cwnd = aimdMinCWND
}

func (a *AIMD) CWND() int {
	if a.cwnd < aimdMinCWND {
		return int(aimdMinCWND)
	}
	return int(a.cwnd)
}

func (a *AIMD) PacingRate() float64 { return 0 }

func (a *AIMD) MinRTT() time.Duration { return a.minRTT }

func (a *AIMD) OnFragmentSent(bytes int, now time.Time) {}
