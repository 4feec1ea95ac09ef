package effects

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/merkle-tox/store"
)

// OutboundSender hands a pre-encoded protocol message to the transport
// layer for delivery to one peer.
type OutboundSender interface {
	Send(peerPk [32]byte, conv store.ConversationID, messageType uint8, payload []byte) error
}

// Resyncer schedules a future reconciliation round against a peer.
type Resyncer interface {
	ScheduleResync(peerPk [32]byte, conv store.ConversationID)
}

// Reverifier re-runs the engine's verification pipeline over a
// conversation's speculative nodes, returning any effects that
// resulted. The effects package takes this as a function value rather
// than depending on the engine package directly, to keep the
// dependency direction one-way (engine depends on effects, not the
// reverse).
type Reverifier func(conv store.ConversationID) []Effect

// Driver applies an ordered []Effect against the concrete store and
// transport implementations. All effects from one engine call are
// applied before the driver processes the next external event (spec
// §5: "effects emitted by a single engine call are applied in order
// before any new event is processed").
type Driver struct {
	Store    store.NodeStore
	Sender   OutboundSender
	Resync   Resyncer
	Reverify Reverifier
	Log      *logrus.Logger
}

// NewDriver constructs a Driver with a default logrus logger, matching
// the teacher's convention of always having a non-nil logger.
func NewDriver(s store.NodeStore, sender OutboundSender, resync Resyncer, reverify Reverifier) *Driver {
	return &Driver{
		Store:    s,
		Sender:   sender,
		Resync:   resync,
		Reverify: reverify,
		Log:      logrus.StandardLogger(),
	}
}

// Apply applies effs in order. A failure on one effect is logged and
// does not prevent later effects in the same list from being applied;
// effects are independent instructions, not a transaction.
func (d *Driver) Apply(effs []Effect) {
	for _, e := range effs {
		d.applyOne(e)
	}
}

func (d *Driver) applyOne(e Effect) {
	switch eff := e.(type) {
	case WriteStore:
		if err := d.Store.PutNode(eff.Conv, eff.Node, eff.Verified); err != nil {
			d.Log.WithError(err).WithField("conv", eff.Conv).Warn("effects: WriteStore failed")
		}
	case UpdateHeads:
		d.Store.SetHeads(eff.Conv, eff.Heads)
	case UpdateAdminHeads:
		d.Store.SetAdminHeads(eff.Conv, eff.Heads)
	case AdvanceRatchet:
		d.Store.PutRatchetKey(eff.Conv, eff.Head, eff.Next)
		if eff.Forget != nil {
			if err := d.Store.DeleteRatchetKey(eff.Conv, *eff.Forget); err != nil {
				d.Log.WithError(err).Warn("effects: DeleteRatchetKey failed")
			}
		}
	case WriteConversationKey:
		d.Store.PutConversationKey(eff.Conv, eff.Epoch, eff.KConv)
	case ReverifySpeculative:
		if d.Reverify == nil {
			return
		}
		// Apply recursively rather than appending to the current
		// batch: re-verification may itself produce further
		// ReverifySpeculative effects (e.g. a chain of unblocked
		// admin nodes), and each round must fully settle before the
		// next.
		d.Apply(d.Reverify(eff.Conv))
	case SendMessage:
		if d.Sender == nil {
			return
		}
		if err := d.Sender.Send(eff.PeerPk, eff.Conv, eff.MessageType, eff.Payload); err != nil {
			d.Log.WithError(err).WithField("peer", eff.PeerPk).Warn("effects: SendMessage failed")
		}
	case ScheduleResync:
		if d.Resync == nil {
			return
		}
		d.Resync.ScheduleResync(eff.PeerPk, eff.Conv)
	default:
		d.Log.WithField("type", eff).Warn("effects: unknown effect type")
	}
}
