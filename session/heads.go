package session

import (
	"github.com/opd-ai/merkle-tox/dag"
	"github.com/opd-ai/merkle-tox/effects"
	"github.com/opd-ai/merkle-tox/protocolmsg"
	"github.com/opd-ai/merkle-tox/store"
)

// maxFetchBatch bounds how many hashes one FetchBatchReq asks for at
// a time, so a large missing-node backlog doesn't produce one
// oversized request.
const maxFetchBatch = 32

// EmitSyncHeads builds a SyncHeads announcement for conv, truncating
// to MaxHeadsSync (spec §4.7).
func (m *Manager) EmitSyncHeads(peerPk [32]byte, conv store.ConversationID) []effects.Effect {
	sess := m.session(peerPk, conv)

	heads := m.Store.GetHeads(conv)
	if len(heads) > MaxHeadsSync {
		heads = heads[:MaxHeadsSync]
	}
	adminHeads := m.Store.GetAdminHeads(conv)
	if len(adminHeads) > MaxHeadsSync {
		adminHeads = adminHeads[:MaxHeadsSync]
	}

	msg := protocolmsg.SyncHeads{
		Conv:       protocolmsg.ConversationID(conv),
		Heads:      heads,
		AdminHeads: adminHeads,
	}
	return m.send(sess, msg.MessageType(), protocolmsg.Marshal(msg))
}

func (m *Manager) handleSyncHeads(sess *PeerSession, msg protocolmsg.SyncHeads) []effects.Effect {
	sess.activate()

	var missing []dag.NodeHash
	var missingAdmin []dag.NodeHash
	for _, h := range msg.Heads {
		sess.RemoteHeads[h] = true
		if !m.Store.HasNode(h) {
			missing = append(missing, h)
		}
	}
	for _, h := range msg.AdminHeads {
		sess.RemoteHeads[h] = true
		if !m.Store.HasNode(h) {
			missingAdmin = append(missingAdmin, h)
		}
	}

	sess.enqueueMissing(missingAdmin, true)
	sess.enqueueMissing(missing, false)

	return m.drainFetchRequests(sess)
}

// drainFetchRequests pops a batch of queued missing hashes and emits
// a FetchBatchReq for them.
func (m *Manager) drainFetchRequests(sess *PeerSession) []effects.Effect {
	batch := sess.drainMissing(maxFetchBatch)
	if len(batch) == 0 {
		return nil
	}
	msg := protocolmsg.FetchBatchReq{Conv: protocolmsg.ConversationID(sess.Conv), Hashes: batch}
	return m.send(sess, msg.MessageType(), protocolmsg.Marshal(msg))
}

// handleFetchBatchReq serves stored nodes for every hash this peer
// asked for, skipping anything not held.
func (m *Manager) handleFetchBatchReq(sess *PeerSession, msg protocolmsg.FetchBatchReq) []effects.Effect {
	sess.activate()
	var effs []effects.Effect
	for _, h := range msg.Hashes {
		node, ok := m.Store.GetNode(h)
		if !ok {
			continue
		}
		wire, hash, err := m.Engine.PackNodeForWire(sess.Conv, node)
		if err != nil {
			m.Log.WithError(err).Warn("session: failed to pack node for wire response")
			continue
		}
		nmsg := protocolmsg.MerkleNodeMsg{Conv: protocolmsg.ConversationID(sess.Conv), Hash: hash, Node: wire}
		effs = append(effs, m.send(sess, nmsg.MessageType(), protocolmsg.Marshal(nmsg))...)
	}
	return effs
}

// handleMerkleNode runs an inbound wire node through the engine and
// updates this session's local-heads bookkeeping (spec §4.7
// on_node_received: "remove parents from local_heads, add the new
// hash if it has no children, push any unknown parents into
// missing_nodes").
func (m *Manager) handleMerkleNode(sess *PeerSession, msg protocolmsg.MerkleNodeMsg) ([]effects.Effect, error) {
	sess.activate()
	delete(sess.InFlightFetches, msg.Hash)

	effs, err := m.Engine.HandleWireNode(sess.Conv, msg.Node, msg.Hash)
	if err != nil {
		return nil, err
	}

	for _, p := range msg.Node.Parents {
		delete(sess.LocalHeads, p)
		if !m.Store.HasNode(p) {
			sess.enqueueMissing([]dag.NodeHash{p}, false)
		}
	}
	if !m.Store.HasChildren(msg.Hash) {
		sess.LocalHeads[msg.Hash] = true
	}

	effs = append(effs, m.drainFetchRequests(sess)...)
	return effs, nil
}
