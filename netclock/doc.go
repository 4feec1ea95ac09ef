// Package netclock implements a Byzantine-resilient network clock: a
// weighted median of peer-reported offsets, applied to the local clock
// by jumping (on first sample or large divergence) or slewing (bounded
// to 1% of real time) so that network_timestamp ordering across
// DAG nodes stays consistent despite dishonest or skewed peers.
//
// network_time_ms is strictly monotonic: it never returns a value
// earlier than any prior call, even if the underlying system clock is
// stepped backwards.
package netclock
