// Package transport provides the pieces for carrying arbitrary-sized
// application messages over the lossy friend-to-friend datagram
// channel beneath it: the packet codec (Data, SelectiveAck, Nack, Ping,
// Pong), fragmentation (FragmentMessage) and reassembly
// (FragmentBuffer, with its selective-ACK bitmask and NACK hole list),
// an RTT estimator that computes the RTO, tail-loss-probe and NACK
// delays, a priority-aware reassembly quota, a deficit-round-robin
// scheduler, and pluggable congestion controllers (AIMD, CUBIC, BBR).
//
// The package has no connection type: it does not track sent
// fragments, does not retransmit on NACK, RTO or tail-loss probe, and
// runs no timers. A caller wires the pieces together itself.
package transport
