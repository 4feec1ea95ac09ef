// Package reconcile implements invertible Bloom lookup table (IBLT)
// sketches for set-difference reconciliation between two peers' DAG
// heads, plus the proof-of-work challenge/solution pair that gates who
// may initiate a reconciliation round.
//
// An IBLT sketch is built at one of four tiers and populated by
// inserting every known 32-byte node id; subtracting a peer's sketch
// from the local one and decoding the result recovers, with high
// probability for small set differences, exactly which ids are present
// on only one side:
//
//	s := reconcile.NewSketch(reconcile.Small)
//	for _, id := range localIDs {
//	    s.Insert(id)
//	}
//	diff, err := s.Subtract(peerSketch)
//	inSelf, inOther, stats, err := diff.Decode()
package reconcile
