package engine

import "github.com/opd-ai/merkle-tox/crypto"

// DefaultEpochCapacity bounds how many ordinary content nodes an epoch's
// key material is budgeted to authenticate. The engine counts against
// this budget but does not rotate on its own; rotation happens only
// when RotateConversationKey is called.
const DefaultEpochCapacity = 1000

// EpochLowWatermark is the remaining-budget threshold at which
// NeedsRotation reports true, mirroring the teacher's PreKeyLowWatermark
// pattern for one-time prekey exhaustion (async/forward_secrecy.go),
// adapted from prekey count to epoch-message budget.
const EpochLowWatermark = 100

// EpochKeys tracks one conversation's active epoch: its KConv-derived
// key material and how much of its authoring budget has been consumed.
// The struct/constructor/IsValid shape follows the teacher's
// async/epoch.go time-bucketed epoch manager, adapted from wall-clock
// buckets to a monotonic rotation counter.
type EpochKeys struct {
	Epoch    uint64
	KConv    [32]byte
	Keys     crypto.ConversationKeys
	capacity int
	consumed int
}

// NewEpochKeys derives an epoch's key material from its root key and
// sets its authoring budget.
func NewEpochKeys(epoch uint64, kConv [32]byte, capacity int) *EpochKeys {
	return &EpochKeys{
		Epoch:    epoch,
		KConv:    kConv,
		Keys:     crypto.DeriveConversationKeys(kConv),
		capacity: capacity,
	}
}

// IsValid reports whether this epoch still has authoring budget left.
func (e *EpochKeys) IsValid() bool {
	return e.consumed < e.capacity
}

// Consume records one content node authored under this epoch.
func (e *EpochKeys) Consume() {
	e.consumed++
}

// NeedsRotation reports whether the remaining budget has fallen to or
// below the low watermark. Nothing in the engine calls it; a caller
// that wants budget-driven rotation checks it and calls
// RotateConversationKey itself.
func (e *EpochKeys) NeedsRotation() bool {
	return e.capacity-e.consumed <= EpochLowWatermark
}
