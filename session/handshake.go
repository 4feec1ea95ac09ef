package session

import (
	"github.com/opd-ai/merkle-tox/effects"
	"github.com/opd-ai/merkle-tox/protocolmsg"
	"github.com/opd-ai/merkle-tox/store"
)

// ProtocolVersion is this implementation's advertised wire version.
const ProtocolVersion = 1

// FeatureSync advertises basic DAG/heads sync support. Feature bits
// beyond this are reserved for future extensions (blob transfer and
// reconciliation are assumed of any peer that speaks this protocol at
// all, so they are not separately gated).
const FeatureSync uint64 = 1 << 0

// StartSync begins syncing a conversation with a peer: creates a
// Handshake-state session if one doesn't exist and announces this
// endpoint's capabilities (spec §4.7: "start → Handshake" on
// start_sync).
func (m *Manager) StartSync(peerPk [32]byte, conv store.ConversationID) []effects.Effect {
	sess := m.session(peerPk, conv)
	return m.announceCaps(sess)
}

func (m *Manager) announceCaps(sess *PeerSession) []effects.Effect {
	msg := protocolmsg.CapsAnnounce{Version: ProtocolVersion, Features: FeatureSync}
	return m.send(sess, msg.MessageType(), protocolmsg.Marshal(msg))
}

// MarkAvailable flips every session held with peerPk back to
// available, re-announcing capabilities on each (spec §4.7:
// "returning to available re-emits CapsAnnounce").
func (m *Manager) MarkAvailable(peerPk [32]byte) []effects.Effect {
	var effs []effects.Effect
	for key, sess := range m.sessions {
		if key.peer != peerPk {
			continue
		}
		wasUnavailable := !sess.Available
		sess.Available = true
		if wasUnavailable {
			effs = append(effs, m.announceCaps(sess)...)
		}
	}
	return effs
}

// MarkUnavailable silences all outbound traffic to peerPk immediately
// across every conversation session held with it (spec §4.7).
func (m *Manager) MarkUnavailable(peerPk [32]byte) {
	for key, sess := range m.sessions {
		if key.peer == peerPk {
			sess.Available = false
		}
	}
}

// activate transitions a session to Active. Any recognized sync
// message implicitly activates the session (spec §4.7 table).
func (sess *PeerSession) activate() {
	sess.State = StateActive
}
