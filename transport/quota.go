package transport

import "sync/atomic"

// ReassemblyQuota is the only globally shared mutable resource in the
// transport layer: a process-wide byte budget for in-flight
// reassembly buffers, admitted per-priority via CAS loops so no lock
// is held across a reservation.
type ReassemblyQuota struct {
	maxBytes uint64
	used     atomic.Uint64
}

// NewReassemblyQuota allocates a quota with the given hard byte cap.
func NewReassemblyQuota(maxBytes uint64) *ReassemblyQuota {
	return &ReassemblyQuota{maxBytes: maxBytes}
}

// Reserve admits amount bytes only if doing so would not push usage
// past priority's admission threshold of the hard cap.
func (q *ReassemblyQuota) Reserve(amount uint64, priority Priority) bool {
	limit := uint64(float64(q.maxBytes) * priority.admissionThreshold())
	return q.reserveUpTo(amount, limit)
}

// ReserveGuaranteed admits amount bytes against only the hard 100% cap,
// bypassing per-priority thresholds; used for reservations that must
// not fail once a message is already committed to (e.g. completing the
// final fragment of an in-progress transfer).
func (q *ReassemblyQuota) ReserveGuaranteed(amount uint64) bool {
	return q.reserveUpTo(amount, q.maxBytes)
}

func (q *ReassemblyQuota) reserveUpTo(amount, limit uint64) bool {
	for {
		current := q.used.Load()
		if current+amount > limit {
			return false
		}
		if q.used.CompareAndSwap(current, current+amount) {
			return true
		}
	}
}

// Release returns amount bytes to the quota. Idempotent callers must
// track whether they already released a given reservation; Release
// itself does not deduplicate.
func (q *ReassemblyQuota) Release(amount uint64) {
	for {
		current := q.used.Load()
		next := current - amount
		if amount > current {
			next = 0
		}
		if q.used.CompareAndSwap(current, next) {
			return
		}
	}
}

// UsedBytes reports current usage, for diagnostics.
func (q *ReassemblyQuota) UsedBytes() uint64 { return q.used.Load() }

// MaxBytes reports the hard cap.
func (q *ReassemblyQuota) MaxBytes() uint64 { return q.maxBytes }

// AdvertisedWindow computes the rwnd to place in an outbound
// SelectiveAck for one message: the minimum of the per-session cap and
// the message's remaining planned size, never the raw free quota
// (which would let one session starve others by quoting the global
// free space).
func AdvertisedWindow(sessionCapBytes, plannedSizeBytes, alreadyStoredBytes uint64) uint32 {
	remaining := uint64(0)
	if plannedSizeBytes > alreadyStoredBytes {
		remaining = plannedSizeBytes - alreadyStoredBytes
	}
	window := sessionCapBytes
	if remaining < window {
		window = remaining
	}
	if window > 0xFFFFFFFF {
		window = 0xFFFFFFFF
	}
	return uint32(window)
}
