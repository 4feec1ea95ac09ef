package protocolmsg

import (
	"bytes"
	"testing"

	"github.com/opd-ai/merkle-tox/crypto"
	"github.com/opd-ai/merkle-tox/dag"
)

func sampleWireNode(t *testing.T, senderPk dag.PhysicalDevicePk) (*dag.WireNode, dag.NodeHash) {
	t.Helper()
	n := &dag.MerkleNode{
		AuthorPk:         dag.LogicalIdentityPk{1},
		SenderPk:         senderPk,
		SequenceNumber:   1,
		TopologicalRank:  1,
		NetworkTimestamp: 1000,
		Content:          dag.Text("hello world"),
	}
	var mac dag.NodeMac
	n.Authentication = dag.NodeAuth{Mac: &mac}

	conv := [32]byte{0x9}
	keys := crypto.DeriveConversationKeys([32]byte{0x9})
	wire, err := dag.PackWire(n, conv, keys, 0)
	if err != nil {
		t.Fatalf("PackWire: %v", err)
	}
	return wire, n.Hash()
}

func roundTrip(t *testing.T, m ProtocolMessage) ProtocolMessage {
	t.Helper()
	buf := Marshal(m)
	got, err := Unmarshal(m.MessageType(), buf)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return got
}

func TestCapsAnnounceRoundTrip(t *testing.T) {
	m := CapsAnnounce{Version: 3, Features: 0xFF}
	got := roundTrip(t, m).(CapsAnnounce)
	if got != m {
		t.Fatalf("got %+v, want %+v", got, m)
	}
}

func TestSyncHeadsRoundTrip(t *testing.T) {
	m := SyncHeads{
		Conv:       ConversationID{1},
		Heads:      []dag.NodeHash{{1}, {2}},
		AdminHeads: []dag.NodeHash{{3}},
		Flags:      1,
	}
	got := roundTrip(t, m).(SyncHeads)
	if got.Conv != m.Conv || len(got.Heads) != 2 || len(got.AdminHeads) != 1 || got.Flags != 1 {
		t.Fatalf("got %+v, want %+v", got, m)
	}
}

func TestMerkleNodeMsgRoundTrip(t *testing.T) {
	wire, hash := sampleWireNode(t, dag.PhysicalDevicePk{0x42})
	m := MerkleNodeMsg{Conv: ConversationID{1}, Hash: hash, Node: wire}

	got := roundTrip(t, m).(MerkleNodeMsg)
	if got.Hash != hash {
		t.Fatal("round-tripped hash mismatch")
	}
	if !bytes.Equal(got.Node.EncryptedPayload, wire.EncryptedPayload) {
		t.Fatal("round-tripped encrypted payload mismatch")
	}
}

// TestNoCleartextSenderInMerkleNodeMsg asserts spec property 8: the
// 32-byte sender_pk must never appear unencrypted in a serialized
// MerkleNodeMsg. sender_pk lives only inside WireNode.EncryptedPayload.
func TestNoCleartextSenderInMerkleNodeMsg(t *testing.T) {
	senderPk := dag.PhysicalDevicePk{0xDE, 0xAD, 0xBE, 0xEF, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12,
		13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28}
	wire, hash := sampleWireNode(t, senderPk)
	m := MerkleNodeMsg{Conv: ConversationID{1}, Hash: hash, Node: wire}

	buf := Marshal(m)
	if bytes.Contains(buf, senderPk[:]) {
		t.Fatal("sender_pk appeared in cleartext within serialized MerkleNodeMsg bytes")
	}
}

func TestBlobDataRoundTrip(t *testing.T) {
	m := BlobData{
		Conv:   ConversationID{1},
		Hash:   dag.NodeHash{2},
		Offset: 64,
		Data:   []byte{1, 2, 3, 4},
		Proof:  []byte{9, 9},
	}
	got := roundTrip(t, m).(BlobData)
	if got.Offset != 64 || !bytes.Equal(got.Data, m.Data) || !bytes.Equal(got.Proof, m.Proof) {
		t.Fatalf("got %+v, want %+v", got, m)
	}
}

func TestReconPowChallengeRoundTrip(t *testing.T) {
	m := ReconPowChallenge{
		Conv:       ConversationID{1},
		PowNonce:   [16]byte{1, 2, 3},
		Difficulty: 12,
		RangeLo:    0,
		RangeHi:    100,
	}
	got := roundTrip(t, m).(ReconPowChallenge)
	if got != m {
		t.Fatalf("got %+v, want %+v", got, m)
	}
}

func TestHandshakeErrorRoundTrip(t *testing.T) {
	m := HandshakeError{Code: 7, Detail: "version mismatch"}
	got := roundTrip(t, m).(HandshakeError)
	if got != m {
		t.Fatalf("got %+v, want %+v", got, m)
	}
}

func TestUnmarshalUnknownMessageType(t *testing.T) {
	if _, err := Unmarshal(0xFF, nil); err != ErrUnknownMessageType {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestSyncShardChecksumsRoundTrip(t *testing.T) {
	m := SyncShardChecksums{
		Conv:      ConversationID{1},
		LoRank:    0,
		HiRank:    10,
		Checksums: []uint64{1, 2, 3},
	}
	got := roundTrip(t, m).(SyncShardChecksums)
	if len(got.Checksums) != 3 || got.Checksums[2] != 3 {
		t.Fatalf("got %+v, want %+v", got, m)
	}
}
