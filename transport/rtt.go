package transport

import "time"

// RTTEstimator tracks SRTT/RTTVAR via the Jacobson/Karels algorithm
// and derives the retransmission timeout from them.
type RTTEstimator struct {
	srtt    time.Duration
	rttvar  time.Duration
	hasSRTT bool
}

const (
	alphaNum, alphaDen = 1, 8 // SRTT gain 1/8
	betaNum, betaDen   = 1, 4 // RTTVAR gain 1/4
)

// Sample folds in one fresh RTT observation.
func (e *RTTEstimator) Sample(rtt time.Duration) {
	if !e.hasSRTT {
		e.srtt = rtt
		e.rttvar = rtt / 2
		e.hasSRTT = true
		return
	}
	diff := e.srtt - rtt
	if diff < 0 {
		diff = -diff
	}
	e.rttvar = e.rttvar - e.rttvar/betaDen + diff/betaDen
	e.srtt = e.srtt - e.srtt/alphaDen + rtt/alphaDen
}

// SRTT returns the smoothed RTT estimate.
func (e *RTTEstimator) SRTT() time.Duration { return e.srtt }

// RTO computes SRTT + 4*RTTVAR, lower-bounded by MinRTO.
func (e *RTTEstimator) RTO() time.Duration {
	rto := e.srtt + 4*e.rttvar
	if rto < MinRTO {
		return MinRTO
	}
	return rto
}

// TLPDelay returns the tail-loss-probe wait: max(2*SRTT, 10ms).
func (e *RTTEstimator) TLPDelay() time.Duration {
	d := 2 * e.srtt
	if d < 10*time.Millisecond {
		return 10 * time.Millisecond
	}
	return d
}

// NackDelay returns the hole-discovery NACK delay: max(20ms, RTT/2).
func (e *RTTEstimator) NackDelay() time.Duration {
	d := e.srtt / 2
	if d < 20*time.Millisecond {
		return 20 * time.Millisecond
	}
	return d
}
