package session

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/merkle-tox/crypto"
	"github.com/opd-ai/merkle-tox/dag"
	"github.com/opd-ai/merkle-tox/effects"
	"github.com/opd-ai/merkle-tox/engine"
	"github.com/opd-ai/merkle-tox/reconcile"
	"github.com/opd-ai/merkle-tox/store"
)

// State is a per-(peer, conversation) session's handshake phase (spec
// §4.7).
type State int

const (
	StateHandshake State = iota
	StateActive
)

// MaxHeadsSync bounds how many heads a single SyncHeads message
// advertises.
const MaxHeadsSync = 64

// PeerSession is one peer's sync state for one conversation.
type PeerSession struct {
	PeerPk [32]byte
	Conv   store.ConversationID

	State     State
	Available bool

	LocalHeads  map[dag.NodeHash]bool
	RemoteHeads map[dag.NodeHash]bool

	MissingNodes    []dag.NodeHash
	missingSet      map[dag.NodeHash]bool
	InFlightFetches map[dag.NodeHash]bool

	MissingBlobs map[crypto.Hash]bool
	blobMasks    map[crypto.Hash]*bitset.BitSet
	blobChunks   map[crypto.Hash]uint64

	PeerFeatures uint64

	Vouchers map[dag.NodeHash]map[dag.PhysicalDevicePk]bool

	ActiveRange         store.SyncRange
	Tier                reconcile.Tier
	PendingChallenge    *reconcile.Challenge
	EffectiveDifficulty int
}

func newPeerSession(peerPk [32]byte, conv store.ConversationID) *PeerSession {
	return &PeerSession{
		PeerPk:          peerPk,
		Conv:            conv,
		State:           StateHandshake,
		Available:       true,
		LocalHeads:      make(map[dag.NodeHash]bool),
		RemoteHeads:     make(map[dag.NodeHash]bool),
		missingSet:      make(map[dag.NodeHash]bool),
		InFlightFetches: make(map[dag.NodeHash]bool),
		MissingBlobs:    make(map[crypto.Hash]bool),
		blobMasks:       make(map[crypto.Hash]*bitset.BitSet),
		blobChunks:      make(map[crypto.Hash]uint64),
		Vouchers:        make(map[dag.NodeHash]map[dag.PhysicalDevicePk]bool),
		Tier:            reconcile.Tiny,
		EffectiveDifficulty: reconcile.DefaultDifficulty,
	}
}

// enqueueMissing pushes hashes not already queued or in flight onto
// MissingNodes, admin hashes first (spec §4.7: "admin hashes to the
// front").
func (s *PeerSession) enqueueMissing(hashes []dag.NodeHash, admin bool) {
	for _, h := range hashes {
		if s.missingSet[h] || s.InFlightFetches[h] {
			continue
		}
		s.missingSet[h] = true
		if admin {
			s.MissingNodes = append([]dag.NodeHash{h}, s.MissingNodes...)
		} else {
			s.MissingNodes = append(s.MissingNodes, h)
		}
	}
}

// drainMissing pops up to n queued hashes, marking them in flight.
func (s *PeerSession) drainMissing(n int) []dag.NodeHash {
	if n > len(s.MissingNodes) {
		n = len(s.MissingNodes)
	}
	out := s.MissingNodes[:n]
	s.MissingNodes = s.MissingNodes[n:]
	for _, h := range out {
		delete(s.missingSet, h)
		s.InFlightFetches[h] = true
	}
	return out
}

type sessionKey struct {
	peer [32]byte
	conv store.ConversationID
}

// Manager coordinates every (peer, conversation) session, translating
// inbound protocolmsg.ProtocolMessage traffic into engine verification
// calls and session bookkeeping, and returning outbound
// effects.SendMessage effects for a Driver to apply.
type Manager struct {
	Engine *engine.Engine
	Store  store.NodeStore
	Blobs  store.BlobStore
	Log    *logrus.Logger
	Now    crypto.TimeProvider

	sessions map[sessionKey]*PeerSession
}

// NewManager constructs a session Manager wrapping e for verification
// and s/blobs for persistence lookups the session layer itself needs
// (answering FetchBatchReq, BlobQuery, BlobReq).
func NewManager(e *engine.Engine, s store.NodeStore, blobs store.BlobStore) *Manager {
	return &Manager{
		Engine:   e,
		Store:    s,
		Blobs:    blobs,
		Log:      logrus.StandardLogger(),
		Now:      crypto.DefaultTimeProvider{},
		sessions: make(map[sessionKey]*PeerSession),
	}
}

func (m *Manager) session(peerPk [32]byte, conv store.ConversationID) *PeerSession {
	key := sessionKey{peer: peerPk, conv: conv}
	sess, ok := m.sessions[key]
	if !ok {
		sess = newPeerSession(peerPk, conv)
		m.sessions[key] = sess
	}
	return sess
}

// Session returns the existing session for (peerPk, conv), if any.
func (m *Manager) Session(peerPk [32]byte, conv store.ConversationID) (*PeerSession, bool) {
	sess, ok := m.sessions[sessionKey{peer: peerPk, conv: conv}]
	return sess, ok
}

// send builds a SendMessage effect, or nil if the peer is currently
// marked unavailable (spec §4.7 cancellation: "silences all outbound
// traffic to that peer immediately").
func (m *Manager) send(sess *PeerSession, messageType uint8, payload []byte) []effects.Effect {
	if !sess.Available {
		return nil
	}
	return []effects.Effect{effects.SendMessage{
		PeerPk:      sess.PeerPk,
		Conv:        sess.Conv,
		MessageType: messageType,
		Payload:     payload,
	}}
}
