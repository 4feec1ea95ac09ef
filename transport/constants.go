package transport

import "time"

// EstimatedPayloadSize is the target fragment payload size; datagrams
// beneath the friend-to-friend channel are assumed to comfortably carry
// this much overhead-free application data.
const EstimatedPayloadSize = 1300

// MaxMessageSize bounds a single logical message.
const MaxMessageSize = 1 << 20 // 1 MiB

// MaxFragmentsPerMessage bounds fragmentation fan-out.
const MaxFragmentsPerMessage = 1024

// MaxNackIndices bounds a single Nack packet's missing-index list.
const MaxNackIndices = 128

// MinRTO is the floor applied to the computed retransmission timeout.
const MinRTO = 200 * time.Millisecond

// PingPongJitter is the jitter bound for t2/t3 in a Pong. No code in
// this package applies it: Pong values are sent as the caller sets
// them.
const PingPongJitter = 5 * time.Millisecond
