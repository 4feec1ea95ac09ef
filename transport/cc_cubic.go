package transport

import (
	"math"
	"time"
)

// CUBIC implements RFC 8312-style congestion control: cubic growth
// toward a remembered window maximum, with a TCP-friendly region for
// small windows, multiplicative decrease on NACK, and a reset to the
// minimum window (forgetting the remembered maximum) on RTO. There is
// no separate slow-start phase: growth after a reset follows the same
// cubic/TCP-friendly rule.
type CUBIC struct {
	cwnd       float64
	wMax       float64
	k          float64
	epochStart time.Time
	minRTT     time.Duration
}

const (
	cubicC            = 0.4
	cubicBeta         = 0.7
	cubicInitialCWND  = 10.0
	cubicMinCWND      = 2.0
)

// NewCUBIC creates a CUBIC controller at the initial window of 10
// fragments, with no remembered maximum.
func NewCUBIC() *CUBIC {
	return &CUBIC{cwnd: cubicInitialCWND}
}

func (c *CUBIC) OnAck(rtt time.Duration, sample *DeliverySample, bytesAcked int, inFlight int, now time.Time) {
	if c.minRTT == 0 || (rtt > 0 && rtt < c.minRTT) {
		c.minRTT = rtt
	}
	if c.epochStart.IsZero() {
		c.epochStart = now
		if c.wMax > 0 {
			c.k = math.Cbrt(c.wMax * (1 - cubicBeta) / cubicC)
		}
	}

	t := now.Sub(c.epochStart).Seconds()
	wCubic := cubicC*math.Pow(t-c.k, 3) + c.wMax
	rttSeconds := rtt.Seconds()
	if rttSeconds <= 0 {
		rttSeconds = 0.05
	}
	wEst := c.wMax*cubicBeta + (3*(1-cubicBeta)/(1+cubicBeta))*(t/rttSeconds)

	target := wCubic
	if wEst > target {
		target = wEst
	}
	if target > c.cwnd {
		c.cwnd = target
	} else {
		c.cwnd += 1.0 / c.cwnd
	}
}

func (c *CUBIC) OnNack(now time.Time) {
	c.wMax = c.cwnd
	c.cwnd *= cubicBeta
	if c.cwnd < cubicMinCWND {
		c.cwnd = cubicMinCWND
	}
	c.epochStart = time.Time{}
}

func (c *CUBIC) OnTimeout(now time.Time) {
	c.wMax = 0
	c.cwnd = cubicMinCWND
	c.epochStart = time.Time{}
}

func (c *CUBIC) CWND() int {
	if c.cwnd < cubicMinCWND {
		return int(cubicMinCWND)
	}
	return int(c.cwnd)
}

func (c *CUBIC) PacingRate() float64 { return 0 }

func (c *CUBIC) MinRTT() time.Duration { return c.minRTT }

func (c *CUBIC) OnFragmentSent(bytes int, now time.Time) {}
