package session

import (
	"encoding/binary"

	"github.com/opd-ai/merkle-tox/crypto"
	"github.com/opd-ai/merkle-tox/dag"
	"github.com/opd-ai/merkle-tox/effects"
	"github.com/opd-ai/merkle-tox/proto"
	"github.com/opd-ai/merkle-tox/protocolmsg"
	"github.com/opd-ai/merkle-tox/reconcile"
	"github.com/opd-ai/merkle-tox/store"
)

var shardChecksumKey = crypto.DeriveKey("merkle-tox v1 session shard checksum")

// shardChecksum derives a 64-bit per-node contribution to a shard's
// checksum, distinct from reconcile's own internal IBLT cell checksum
// context key.
func shardChecksum(id dag.NodeHash) uint64 {
	digest := crypto.KeyedHash(shardChecksumKey, id[:], 8)
	return binary.BigEndian.Uint64(digest)
}

// nextTier grows the sketch tier one step, saturating at Large, when
// decoding fails because the true set difference exceeded the current
// tier's capacity (spec §4.7: "on decode failure, grow tier").
func nextTier(t reconcile.Tier) reconcile.Tier {
	switch t {
	case reconcile.Tiny:
		return reconcile.Small
	case reconcile.Small:
		return reconcile.Medium
	default:
		return reconcile.Large
	}
}

// subdivide splits a sync range in half, the companion response to a
// decode failure alongside tier growth (spec §4.7:
// "exhausted_iblt_ranges").
func subdivide(r store.SyncRange) (lo, hi store.SyncRange) {
	mid := r.LoRank + (r.HiRank-r.LoRank)/2
	if mid <= r.LoRank {
		mid = r.LoRank
	}
	return store.SyncRange{LoRank: r.LoRank, HiRank: mid}, store.SyncRange{LoRank: mid + 1, HiRank: r.HiRank}
}

func marshalSketch(s *reconcile.Sketch) []byte {
	w := proto.NewWriter(len(s.Cells)*44 + 8)
	w.PutUint32(uint32(len(s.Cells)))
	for _, c := range s.Cells {
		w.PutUint32(uint32(c.Count))
		w.PutRaw(c.IDSum[:])
		w.PutUint64(c.HashSum)
	}
	return w.Bytes()
}

func unmarshalSketch(tier reconcile.Tier, buf []byte) (*reconcile.Sketch, error) {
	r := proto.NewReader(buf)
	n, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	s := reconcile.NewSketch(tier)
	for i := 0; i < int(n) && i < len(s.Cells); i++ {
		count, err := r.GetUint32()
		if err != nil {
			return nil, err
		}
		raw, err := r.GetRaw(32)
		if err != nil {
			return nil, err
		}
		hashSum, err := r.GetUint64()
		if err != nil {
			return nil, err
		}
		s.Cells[i].Count = int32(count)
		copy(s.Cells[i].IDSum[:], raw)
		s.Cells[i].HashSum = hashSum
	}
	return s, nil
}

func buildSketch(m *Manager, conv store.ConversationID, r store.SyncRange, tier reconcile.Tier) *reconcile.Sketch {
	s := reconcile.NewSketch(tier)
	for _, h := range m.Store.GetNodeHashesInRange(conv, r) {
		s.Insert(h)
	}
	return s
}

// EmitSyncSketch builds and sends an IBLT sketch for sess's currently
// active range and tier.
func (m *Manager) EmitSyncSketch(peerPk [32]byte, conv store.ConversationID) []effects.Effect {
	sess := m.session(peerPk, conv)
	sketch := buildSketch(m, conv, sess.ActiveRange, sess.Tier)
	msg := protocolmsg.SyncSketch{
		Conv:   protocolmsg.ConversationID(conv),
		LoRank: sess.ActiveRange.LoRank,
		HiRank: sess.ActiveRange.HiRank,
		Tier:   uint32(sess.Tier),
		Sketch: marshalSketch(sketch),
	}
	return m.send(sess, msg.MessageType(), protocolmsg.Marshal(msg))
}

// handleSyncSketch diffs the peer's sketch against ours for the same
// range; ids present only on the peer's side become missing nodes. On
// decode failure, tier is grown and/or the range subdivided, and the
// peer is told via SyncReconFail (spec §4.7).
func (m *Manager) handleSyncSketch(sess *PeerSession, msg protocolmsg.SyncSketch) []effects.Effect {
	sess.activate()

	tier := reconcile.Tier(msg.Tier)
	peerSketch, err := unmarshalSketch(tier, msg.Sketch)
	if err != nil {
		m.Log.WithError(err).Warn("session: malformed sync sketch")
		return nil
	}

	r := store.SyncRange{LoRank: msg.LoRank, HiRank: msg.HiRank}
	local := buildSketch(m, sess.Conv, r, tier)

	diff, err := local.Subtract(peerSketch)
	if err != nil {
		return nil
	}

	_, inOther, _, err := diff.Decode()
	if err != nil {
		return m.handleReconFailure(sess, r, tier)
	}

	var missing []dag.NodeHash
	for _, id := range inOther {
		if !m.Store.HasNode(id) {
			missing = append(missing, dag.NodeHash(id))
		}
	}
	sess.enqueueMissing(missing, false)
	return m.drainFetchRequests(sess)
}

func (m *Manager) handleReconFailure(sess *PeerSession, r store.SyncRange, tier reconcile.Tier) []effects.Effect {
	if tier < reconcile.Large {
		sess.Tier = nextTier(tier)
		sess.ActiveRange = r
	} else {
		lo, _ := subdivide(r)
		sess.Tier = reconcile.Tiny
		sess.ActiveRange = lo
	}

	msg := protocolmsg.SyncReconFail{
		Conv:   protocolmsg.ConversationID(sess.Conv),
		LoRank: r.LoRank,
		HiRank: r.HiRank,
	}
	return m.send(sess, msg.MessageType(), protocolmsg.Marshal(msg))
}

func (m *Manager) handleSyncReconFail(sess *PeerSession, msg protocolmsg.SyncReconFail) []effects.Effect {
	sess.activate()
	r := store.SyncRange{LoRank: msg.LoRank, HiRank: msg.HiRank}
	return m.handleReconFailure(sess, r, sess.Tier)
}

// IssueReconChallenge starts a reconciliation round with a PoW
// challenge gating it (spec §4.5), preventing a peer from forcing
// expensive sketch computation for free.
func (m *Manager) IssueReconChallenge(peerPk [32]byte, conv store.ConversationID) ([]effects.Effect, error) {
	sess := m.session(peerPk, conv)
	challenge, err := reconcile.NewChallenge(sess.ActiveRange.LoRank, sess.ActiveRange.HiRank, sess.EffectiveDifficulty, m.Now.Now())
	if err != nil {
		return nil, err
	}
	sess.PendingChallenge = challenge

	msg := protocolmsg.ReconPowChallenge{
		Conv:       protocolmsg.ConversationID(conv),
		PowNonce:   challenge.PowNonce,
		Difficulty: uint8(challenge.Difficulty),
		RangeLo:    challenge.RangeLo,
		RangeHi:    challenge.RangeHi,
	}
	return m.send(sess, msg.MessageType(), protocolmsg.Marshal(msg)), nil
}

func (m *Manager) handleReconPowChallenge(sess *PeerSession, msg protocolmsg.ReconPowChallenge) []effects.Effect {
	sess.activate()
	challenge := &reconcile.Challenge{
		PowNonce:   msg.PowNonce,
		Difficulty: int(msg.Difficulty),
		RangeLo:    msg.RangeLo,
		RangeHi:    msg.RangeHi,
		IssuedAt:   m.Now.Now(),
	}
	solution := reconcile.Solve(challenge)
	resp := protocolmsg.ReconPowSolution{
		Conv:     protocolmsg.ConversationID(sess.Conv),
		PowNonce: msg.PowNonce,
		Solution: solution,
	}
	return m.send(sess, resp.MessageType(), protocolmsg.Marshal(resp))
}

func (m *Manager) handleReconPowSolution(sess *PeerSession, msg protocolmsg.ReconPowSolution) []effects.Effect {
	sess.activate()
	if sess.PendingChallenge == nil || sess.PendingChallenge.PowNonce != msg.PowNonce {
		return nil
	}
	if err := reconcile.Verify(sess.PendingChallenge, msg.Solution, m.Now.Now()); err != nil {
		m.Log.WithError(err).Warn("session: reconciliation PoW solution rejected")
		return nil
	}
	sess.PendingChallenge = nil
	return m.EmitSyncSketch(sess.PeerPk, sess.Conv)
}

func (m *Manager) handleSyncShardChecksums(sess *PeerSession, msg protocolmsg.SyncShardChecksums) []effects.Effect {
	sess.activate()
	r := store.SyncRange{LoRank: msg.LoRank, HiRank: msg.HiRank}
	local := checksumShards(m, sess.Conv, r, len(msg.Checksums))

	divergent := -1
	for i := range local {
		if i >= len(msg.Checksums) || local[i] != msg.Checksums[i] {
			divergent = i
			break
		}
	}
	if divergent == -1 {
		return nil
	}

	shardSpan := (r.HiRank - r.LoRank + 1) / uint64(len(local))
	if shardSpan == 0 {
		shardSpan = 1
	}
	sess.ActiveRange = store.SyncRange{
		LoRank: r.LoRank + uint64(divergent)*shardSpan,
		HiRank: r.LoRank + uint64(divergent+1)*shardSpan - 1,
	}
	sess.Tier = reconcile.Tiny
	return m.EmitSyncSketch(sess.PeerPk, sess.Conv)
}

// checksumShards splits r into n equal shards and returns each
// shard's node-set checksum (sum of per-node 64-bit checksums),
// narrowing a divergent range before the next sketch round.
func checksumShards(m *Manager, conv store.ConversationID, r store.SyncRange, n int) []uint64 {
	if n <= 0 {
		n = 1
	}
	span := (r.HiRank - r.LoRank + 1) / uint64(n)
	if span == 0 {
		span = 1
	}
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		lo := r.LoRank + uint64(i)*span
		hi := lo + span - 1
		if i == n-1 {
			hi = r.HiRank
		}
		var sum uint64
		for _, h := range m.Store.GetNodeHashesInRange(conv, store.SyncRange{LoRank: lo, HiRank: hi}) {
			sum += shardChecksum(h)
		}
		out[i] = sum
	}
	return out
}
