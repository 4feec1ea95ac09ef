// Package session implements the per-(peer, conversation) state
// machine (spec §4.7): handshake/active transitions, heads exchange,
// the missing-node fetch queue, IBLT reconciliation rounds with
// adaptive tier/range subdivision, and chunked Bao-verified blob
// transfer.
//
// A Manager sits between protocolmsg (wire messages) and engine (DAG
// verification): inbound messages update session bookkeeping and, for
// MerkleNode messages, are handed to the engine; outbound traffic is
// returned as []effects.Effect (SendMessage per peer) for a Driver to
// apply, following the same effects-not-callbacks discipline engine
// uses.
package session
