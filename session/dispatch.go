package session

import (
	"github.com/opd-ai/merkle-tox/effects"
	"github.com/opd-ai/merkle-tox/protocolmsg"
	"github.com/opd-ai/merkle-tox/store"
)

// HandleInbound dispatches one decoded protocol message for
// (peerPk, conv), updating session state and the underlying engine,
// and returns any resulting outbound effects (spec §4.7/§4.8 data
// flow: inbound message → session state updated, node verified →
// effects emitted).
//
// Inbound traffic is processed regardless of the session's available
// flag — cancellation only silences outbound sends (see Manager.send).
func (m *Manager) HandleInbound(peerPk [32]byte, conv store.ConversationID, msg protocolmsg.ProtocolMessage) ([]effects.Effect, error) {
	sess := m.session(peerPk, conv)

	switch v := msg.(type) {
	case protocolmsg.CapsAnnounce:
		sess.PeerFeatures = v.Features
		sess.activate()
		ack := protocolmsg.CapsAck{Version: ProtocolVersion, Features: FeatureSync}
		return m.send(sess, ack.MessageType(), protocolmsg.Marshal(ack)), nil

	case protocolmsg.CapsAck:
		sess.PeerFeatures = v.Features
		sess.activate()
		return nil, nil

	case protocolmsg.SyncHeads:
		return m.handleSyncHeads(sess, v), nil

	case protocolmsg.FetchBatchReq:
		return m.handleFetchBatchReq(sess, v), nil

	case protocolmsg.MerkleNodeMsg:
		return m.handleMerkleNode(sess, v)

	case protocolmsg.BlobQuery:
		return m.handleBlobQuery(sess, v), nil

	case protocolmsg.BlobAvail:
		return m.handleBlobAvail(sess, v), nil

	case protocolmsg.BlobReq:
		return m.handleBlobReq(sess, v), nil

	case protocolmsg.BlobData:
		return m.handleBlobData(sess, v), nil

	case protocolmsg.SyncSketch:
		return m.handleSyncSketch(sess, v), nil

	case protocolmsg.SyncReconFail:
		return m.handleSyncReconFail(sess, v), nil

	case protocolmsg.SyncShardChecksums:
		return m.handleSyncShardChecksums(sess, v), nil

	case protocolmsg.ReconPowChallenge:
		return m.handleReconPowChallenge(sess, v), nil

	case protocolmsg.ReconPowSolution:
		return m.handleReconPowSolution(sess, v), nil

	case protocolmsg.HandshakeError:
		m.Log.WithField("code", v.Code).WithField("detail", v.Detail).Warn("session: peer reported handshake error")
		sess.State = StateHandshake
		return nil, nil

	default:
		return nil, nil
	}
}
