package engine

import (
	"bytes"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/merkle-tox/crypto"
	"github.com/opd-ai/merkle-tox/dag"
	"github.com/opd-ai/merkle-tox/effects"
	"github.com/opd-ai/merkle-tox/identity"
	"github.com/opd-ai/merkle-tox/netclock"
	"github.com/opd-ai/merkle-tox/store"
)

// FutureDriftQuarantine is how far ahead of the network clock a node's
// timestamp may be before it is quarantined as speculative (spec §4.6
// step 5).
const FutureDriftQuarantine = 10 * time.Minute

// conversationState is the engine's working state for one
// conversation, kept in memory alongside the durable NodeStore.
type conversationState struct {
	manager        *identity.Manager
	epoch          *EpochKeys
	localSeq       uint64
	ratchetHeadFor map[dag.PhysicalDevicePk]dag.NodeHash
}

// Engine implements the conversation engine's verification and
// authoring pipelines (spec §4.6). It reads directly from a
// store.NodeStore (reads are not effects, only mutations are) and
// returns []effects.Effect for a Driver to apply.
type Engine struct {
	Store  store.NodeStore
	Clock  *netclock.Clock
	Device dag.PhysicalDevicePk
	Master dag.LogicalIdentityPk
	Log    *logrus.Logger

	convs    map[store.ConversationID]*conversationState
	deviceSK [32]byte
}

// NewEngine constructs an Engine for one local device/identity pair.
func NewEngine(s store.NodeStore, clock *netclock.Clock, device dag.PhysicalDevicePk, master dag.LogicalIdentityPk) *Engine {
	return &Engine{
		Store:  s,
		Clock:  clock,
		Device: device,
		Master: master,
		Log:    logrus.StandardLogger(),
		convs:  make(map[store.ConversationID]*conversationState),
	}
}

// RegisterConversation attaches an identity manager and active epoch to
// conv, typically after genesis or after loading conversation state
// from storage.
func (e *Engine) RegisterConversation(conv store.ConversationID, mgr *identity.Manager, epoch *EpochKeys) {
	e.convs[conv] = &conversationState{
		manager:        mgr,
		epoch:          epoch,
		ratchetHeadFor: make(map[dag.PhysicalDevicePk]dag.NodeHash),
	}
}

func (e *Engine) state(conv store.ConversationID) (*conversationState, error) {
	cs, ok := e.convs[conv]
	if !ok {
		return nil, ErrUnknownConversation
	}
	return cs, nil
}

// PackNodeForWire encrypts node into its wire form under conv's active
// epoch, for a session to transmit as a protocolmsg.MerkleNodeMsg.
func (e *Engine) PackNodeForWire(conv store.ConversationID, node *dag.MerkleNode) (*dag.WireNode, dag.NodeHash, error) {
	cs, err := e.state(conv)
	if err != nil {
		return nil, dag.NodeHash{}, err
	}
	wire, err := dag.PackWire(node, [32]byte(conv), cs.epoch.Keys, cs.epoch.Epoch)
	if err != nil {
		return nil, dag.NodeHash{}, err
	}
	return wire, node.Hash(), nil
}

// HandleWireNode decrypts/unpacks a WireNode under conv's active epoch
// before running it through HandleNode (spec §4.6 step 1).
func (e *Engine) HandleWireNode(conv store.ConversationID, wire *dag.WireNode, wireHash dag.NodeHash) ([]effects.Effect, error) {
	cs, err := e.state(conv)
	if err != nil {
		return nil, err
	}
	node, err := dag.UnpackWire(wire, wireHash, [32]byte(conv), cs.epoch.Keys, cs.epoch.Epoch)
	if err != nil {
		return nil, err
	}
	return e.HandleNode(conv, node)
}

// HandleNode runs the full verification pipeline for an already-decoded
// node: authentication, admin escalation checks, parent resolution,
// timestamp policy, and authorization, emitting effects for the
// surviving state transition (spec §4.6 steps 2-7).
func (e *Engine) HandleNode(conv store.ConversationID, node *dag.MerkleNode) ([]effects.Effect, error) {
	cs, err := e.state(conv)
	if err != nil {
		return nil, err
	}

	if err := e.verifyAuthentication(conv, cs, node); err != nil {
		return nil, err
	}

	if ctrl, ok := node.Content.(dag.Control); ok {
		if ad, ok := ctrl.Action.(dag.AuthorizeDevice); ok {
			if err := e.checkNoEscalation(cs, node, ad); err != nil {
				return nil, err
			}
		}
	}

	speculative := false
	for _, parent := range node.Parents {
		if !e.Store.HasNode(parent) {
			speculative = true
			break
		}
	}

	if !speculative {
		if node.NetworkTimestamp > e.Clock.NetworkTimeMs()+FutureDriftQuarantine.Milliseconds() {
			speculative = true
		}
		for _, parent := range node.Parents {
			if parentNode, ok := e.Store.GetNode(parent); ok {
				if node.NetworkTimestamp < parentNode.NetworkTimestamp {
					speculative = true
					break
				}
			}
		}
	}

	if speculative {
		return []effects.Effect{effects.WriteStore{Conv: conv, Node: node, Verified: false}}, nil
	}

	required := identity.PermMessage
	if node.IsAdmin() {
		required = identity.PermAdmin
	}
	if !cs.manager.IsAuthorizedAt(node.SenderPk, required, node.TopologicalRank, node.NetworkTimestamp) {
		return nil, ErrUnauthorized
	}

	return e.applyVerifiedNode(conv, cs, node), nil
}

func (e *Engine) verifyAuthentication(conv store.ConversationID, cs *conversationState, node *dag.MerkleNode) error {
	switch {
	case node.Authentication.IsMac():
		expected := crypto.KeyedHash(cs.epoch.Keys.MACKey, node.Prefix(), 32)
		if !bytes.Equal(expected, node.Authentication.Mac[:]) {
			return ErrInvalidAuthentication
		}
		return nil
	case node.Authentication.IsSignature():
		preimage := node.SignPreimage([32]byte(conv))
		sig := *node.Authentication.Signature
		if ok, _ := crypto.Verify(preimage, sig, [32]byte(node.AuthorPk)); ok {
			return nil
		}
		if ok, _ := crypto.Verify(preimage, sig, [32]byte(node.SenderPk)); ok {
			return nil
		}
		return ErrInvalidAuthentication
	default:
		return ErrInvalidAuthentication
	}
}

// checkNoEscalation verifies an AuthorizeDevice grants no permission its
// issuing sender does not itself hold at this node's rank (spec §4.6
// step 3, checked before the general authorization check).
func (e *Engine) checkNoEscalation(cs *conversationState, node *dag.MerkleNode, ad dag.AuthorizeDevice) error {
	granted := identity.Permission(ad.Cert.Permissions)
	var issuerHolds identity.Permission
	for _, bit := range []identity.Permission{identity.PermMessage, identity.PermAdmin} {
		if cs.manager.IsAuthorizedAt(node.SenderPk, bit, node.TopologicalRank, node.NetworkTimestamp) {
			issuerHolds |= bit
		}
	}
	return identity.CheckNoEscalation(issuerHolds, granted)
}

func (e *Engine) applyVerifiedNode(conv store.ConversationID, cs *conversationState, node *dag.MerkleNode) []effects.Effect {
	effs := []effects.Effect{effects.WriteStore{Conv: conv, Node: node, Verified: true}}

	heads := removeHashes(e.Store.GetHeads(conv), node.Parents)
	heads = append(heads, node.Hash())
	effs = append(effs, effects.UpdateHeads{Conv: conv, Heads: heads})

	if node.IsAdmin() {
		adminHeads := removeHashes(e.Store.GetAdminHeads(conv), node.Parents)
		adminHeads = append(adminHeads, node.Hash())
		effs = append(effs, effects.UpdateAdminHeads{Conv: conv, Heads: adminHeads})
	}

	effs = append(effs, e.ratchetAdvance(conv, cs, node))

	triggerReverify := false
	switch c := node.Content.(type) {
	case dag.Text, dag.Blob:
		// no identity-manager mutation
	case dag.Control:
		switch a := c.Action.(type) {
		case dag.Genesis:
			cs.manager.AddMember(node.AuthorPk, node.TopologicalRank, node.NetworkTimestamp)
		case dag.AuthorizeDevice:
			cs.manager.AddMember(a.Cert.OwnerPk, node.TopologicalRank, node.NetworkTimestamp)
			cs.manager.AddDevice(a.Cert.DevicePk, a.Cert.OwnerPk, identity.Cert{
				IssuerPk:       a.Cert.IssuerPk,
				IssuerIsDevice: a.Cert.IssuerPk != [32]byte(cs.manager.MasterPk),
				Permissions:    identity.Permission(a.Cert.Permissions),
				NotAfter:       a.Cert.NotAfter,
				IssuedAtRank:   node.TopologicalRank,
			})
		case dag.RevokeDevice:
			cs.manager.Revoke(a.TargetDevicePk, node.TopologicalRank, a.Reason)
			triggerReverify = true
		}
	}

	if triggerReverify {
		effs = append(effs, effects.ReverifySpeculative{Conv: conv})
	}

	return effs
}

func (e *Engine) ratchetAdvance(conv store.ConversationID, cs *conversationState, node *dag.MerkleNode) effects.Effect {
	prevHead, hasPrev := cs.ratchetHeadFor[node.SenderPk]
	var current crypto.ChainKey
	if hasPrev {
		if ck, ok := e.Store.GetRatchetKey(conv, prevHead); ok {
			current = ck
		} else {
			current = crypto.InitialChainKey(cs.epoch.Keys.MACKey, [32]byte(node.SenderPk))
		}
	} else {
		current = crypto.InitialChainKey(cs.epoch.Keys.MACKey, [32]byte(node.SenderPk))
	}

	next, _ := current.Advance()
	newHead := node.Hash()
	cs.ratchetHeadFor[node.SenderPk] = newHead

	eff := effects.AdvanceRatchet{Conv: conv, Head: newHead, Next: next}
	if hasPrev {
		forget := prevHead
		eff.Forget = &forget
	}
	return eff
}

func removeHashes(list []dag.NodeHash, remove []dag.NodeHash) []dag.NodeHash {
	skip := make(map[dag.NodeHash]bool, len(remove))
	for _, h := range remove {
		skip[h] = true
	}
	out := make([]dag.NodeHash, 0, len(list))
	for _, h := range list {
		if !skip[h] {
			out = append(out, h)
		}
	}
	return out
}

// ReverifySpeculativeForConversation re-checks every verified node
// against the conversation's current identity-manager state, returning
// WriteStore(verified=false) effects for any node whose authorization
// no longer holds (e.g. after a retroactive RevokeDevice). Wired as the
// effects.Reverifier a Driver invokes for ReverifySpeculative effects.
func (e *Engine) ReverifySpeculativeForConversation(conv store.ConversationID) []effects.Effect {
	cs, err := e.state(conv)
	if err != nil {
		return nil
	}

	var all []*dag.MerkleNode
	for _, t := range []store.NodeType{store.NodeTypeText, store.NodeTypeBlob, store.NodeTypeControl, store.NodeTypeKeyWrap} {
		all = append(all, e.Store.GetVerifiedNodesByType(conv, t)...)
	}

	unauthorized := cs.manager.ReverifySpeculativeForConversation(all)
	effs := make([]effects.Effect, 0, len(unauthorized))
	for _, n := range unauthorized {
		effs = append(effs, effects.WriteStore{Conv: conv, Node: n, Verified: false})
	}
	return effs
}
