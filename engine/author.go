package engine

import (
	"github.com/opd-ai/merkle-tox/crypto"
	"github.com/opd-ai/merkle-tox/dag"
	"github.com/opd-ai/merkle-tox/effects"
	"github.com/opd-ai/merkle-tox/store"
)

// AuthorNode builds, authenticates, and persists a new node authored by
// this device (spec §4.6 author_node). parentsHint overrides the
// default parent selection (content heads, or admin heads for Control
// content) when the caller already knows the intended parents.
func (e *Engine) AuthorNode(conv store.ConversationID, content dag.Content, parentsHint []dag.NodeHash) ([]effects.Effect, *dag.MerkleNode, error) {
	cs, err := e.state(conv)
	if err != nil {
		return nil, nil, err
	}

	_, isControl := content.(dag.Control)

	parents := parentsHint
	if parents == nil {
		if isControl {
			parents = e.Store.GetAdminHeads(conv)
		} else {
			parents = e.Store.GetHeads(conv)
		}
	}

	var rank uint64
	for _, p := range parents {
		if parentNode, ok := e.Store.GetNode(p); ok && parentNode.TopologicalRank >= rank {
			rank = parentNode.TopologicalRank + 1
		}
	}
	if rank == 0 && len(parents) > 0 {
		rank = 1
	}

	cs.localSeq++
	node := &dag.MerkleNode{
		Parents:          parents,
		AuthorPk:         e.Master,
		SenderPk:         e.Device,
		SequenceNumber:   cs.localSeq,
		TopologicalRank:  rank,
		NetworkTimestamp: e.Clock.NetworkTimeMs(),
		Content:          content,
	}

	if err := e.authenticate(conv, cs, node, isControl); err != nil {
		return nil, nil, err
	}

	effs := e.applyVerifiedNode(conv, cs, node)

	if !isControl {
		if _, isKeyWrap := content.(dag.KeyWrap); !isKeyWrap {
			cs.epoch.Consume()
		}
	}

	return effs, node, nil
}

func (e *Engine) authenticate(conv store.ConversationID, cs *conversationState, node *dag.MerkleNode, isControl bool) error {
	if isControl {
		preimage := node.SignPreimage([32]byte(conv))
		sig, err := crypto.Sign(preimage, e.deviceSigningKey())
		if err != nil {
			return err
		}
		node.Authentication = dag.NodeAuth{Signature: &sig}
		return nil
	}

	mac := crypto.KeyedHash(cs.epoch.Keys.MACKey, node.Prefix(), 32)
	var m dag.NodeMac
	copy(m[:], mac)
	node.Authentication = dag.NodeAuth{Mac: &m}
	return nil
}

// deviceSigningKey returns the local device's Ed25519 signing seed.
// Set via SetDeviceSigningKey before authoring any admin node.
func (e *Engine) deviceSigningKey() [32]byte {
	return e.deviceSK
}

// SetDeviceSigningKey installs the Ed25519 seed this device signs
// admin/control nodes with.
func (e *Engine) SetDeviceSigningKey(sk [32]byte) {
	e.deviceSK = sk
}

// RotateConversationKey draws a fresh KConv, wraps it for every
// currently-known device, and authors the resulting KeyWrap node under
// the outgoing epoch's MAC key before advancing to the new epoch (spec
// §4.6 rotate_conversation_key).
func (e *Engine) RotateConversationKey(conv store.ConversationID) ([]effects.Effect, error) {
	cs, err := e.state(conv)
	if err != nil {
		return nil, err
	}

	kNew, err := crypto.RandomKConv()
	if err != nil {
		return nil, err
	}
	newEpoch := cs.epoch.Epoch + 1

	var wrapped []dag.WrappedKeyEntry
	for devicePk := range cs.manager.Owners {
		w, err := crypto.WrapKey(kNew, [32]byte(devicePk))
		if err != nil {
			return nil, err
		}
		wrapped = append(wrapped, dag.WrappedKeyEntry{
			RecipientPk: [32]byte(devicePk),
			Ciphertext:  w.Ciphertext,
			Nonce:       crypto.Nonce(w.Nonce),
		})
	}

	content := dag.KeyWrap{WrappedKeys: wrapped, Epoch: newEpoch}
	effs, _, err := e.AuthorNode(conv, content, nil)
	if err != nil {
		return nil, err
	}

	effs = append(effs, effects.WriteConversationKey{Conv: conv, Epoch: newEpoch, KConv: kNew})
	cs.epoch = NewEpochKeys(newEpoch, kNew, DefaultEpochCapacity)

	return effs, nil
}
