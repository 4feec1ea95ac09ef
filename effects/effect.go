package effects

import (
	"github.com/opd-ai/merkle-tox/crypto"
	"github.com/opd-ai/merkle-tox/dag"
	"github.com/opd-ai/merkle-tox/store"
)

// Effect is a single declarative instruction produced by the engine.
// Concrete types implement isEffect to close the set to this package.
type Effect interface {
	isEffect()
}

// WriteStore persists node at its verification state. Idempotent: the
// underlying store treats repeated writes of the same node hash as a
// no-op except for a speculative→verified promotion.
type WriteStore struct {
	Conv     store.ConversationID
	Node     *dag.MerkleNode
	Verified bool
}

func (WriteStore) isEffect() {}

// UpdateHeads replaces the conversation's content heads.
type UpdateHeads struct {
	Conv  store.ConversationID
	Heads []dag.NodeHash
}

func (UpdateHeads) isEffect() {}

// UpdateAdminHeads replaces the conversation's admin-track heads.
type UpdateAdminHeads struct {
	Conv  store.ConversationID
	Heads []dag.NodeHash
}

func (UpdateAdminHeads) isEffect() {}

// AdvanceRatchet stores the next chain key for a sender's head and,
// when Forget is non-nil, deletes the predecessor key so it cannot be
// recovered later (forward secrecy, spec property 13).
type AdvanceRatchet struct {
	Conv   store.ConversationID
	Head   dag.NodeHash
	Next   crypto.ChainKey
	Forget *dag.NodeHash
}

func (AdvanceRatchet) isEffect() {}

// WriteConversationKey records a new epoch's KConv, produced by
// rotate_conversation_key or by accepting a peer's KeyWrap node.
type WriteConversationKey struct {
	Conv  store.ConversationID
	Epoch uint64
	KConv [32]byte
}

func (WriteConversationKey) isEffect() {}

// ReverifySpeculative asks the driver to call its Reverifier for Conv,
// emitted after a RevokeDevice node lands. The engine's Reverifier
// (Engine.ReverifySpeculativeForConversation) re-checks authorization
// of the already-verified nodes and returns WriteStore(verified=false)
// for those that fail; it does not re-examine speculative nodes, so no
// speculative node is promoted by it.
type ReverifySpeculative struct {
	Conv store.ConversationID
}

func (ReverifySpeculative) isEffect() {}

// SendMessage queues an outbound protocol message to one peer. Payload
// is already wire-encoded (a protocolmsg.ProtocolMessage's bytes); the
// driver hands it to the transport layer unexamined.
type SendMessage struct {
	PeerPk      [32]byte
	Conv        store.ConversationID
	MessageType uint8
	Payload     []byte
}

func (SendMessage) isEffect() {}

// ScheduleResync asks the driver to run another reconciliation round
// against peer (the effect carries no delay), used when an IBLT decode fails and the
// engine wants a retry at a coarser tier or subdivided range.
type ScheduleResync struct {
	PeerPk [32]byte
	Conv   store.ConversationID
}

func (ScheduleResync) isEffect() {}
