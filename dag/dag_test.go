package dag

import (
	"testing"

	"github.com/opd-ai/merkle-tox/crypto"
)

func sampleNode() *MerkleNode {
	return &MerkleNode{
		Parents:          nil,
		AuthorPk:         LogicalIdentityPk{1, 2, 3},
		SenderPk:         PhysicalDevicePk{4, 5, 6},
		SequenceNumber:   1,
		TopologicalRank:  1,
		NetworkTimestamp: 1000,
		Content:          Text("Authentic"),
		Metadata:         nil,
	}
}

func TestHashStableAcrossAuthentication(t *testing.T) {
	n := sampleNode()
	h1 := n.Hash()

	var mac NodeMac
	mac[0] = 0xFF
	n.Authentication = NodeAuth{Mac: &mac}
	h2 := n.Hash()

	if h1 != h2 {
		t.Fatal("hash changed after setting authentication; it must cover only the unauthenticated prefix")
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	n := sampleNode()
	n.Parents = []NodeHash{{9, 9, 9}}
	n.Content = Blob{Hash: crypto.Hash{1}, Name: "f.bin", MimeType: "application/octet-stream", Size: 42}
	var mac NodeMac
	n.Authentication = NodeAuth{Mac: &mac}

	buf := n.Marshal()
	got, err := UnmarshalNode(buf)
	if err != nil {
		t.Fatalf("UnmarshalNode: %v", err)
	}
	if got.Hash() != n.Hash() {
		t.Fatal("round-tripped node hash mismatch")
	}
	if got.SequenceNumber != n.SequenceNumber || got.TopologicalRank != n.TopologicalRank {
		t.Fatal("round-tripped scalar fields mismatch")
	}
}

func TestPackUnpackWireRoundTrip(t *testing.T) {
	n := sampleNode()
	var mac NodeMac
	n.Authentication = NodeAuth{Mac: &mac}

	conv := [32]byte{0x42}
	kConv := [32]byte{0x42}
	keys := crypto.DeriveConversationKeys(kConv)
	epoch := uint64(0)

	wire, err := PackWire(n, conv, keys, epoch)
	if err != nil {
		t.Fatalf("PackWire: %v", err)
	}

	wireHash := n.Hash()
	got, err := UnpackWire(wire, wireHash, conv, keys, epoch)
	if err != nil {
		t.Fatalf("UnpackWire: %v", err)
	}
	if got.Content.(Text) != n.Content.(Text) {
		t.Fatalf("content mismatch: got %v want %v", got.Content, n.Content)
	}
	if got.SenderPk != n.SenderPk || got.SequenceNumber != n.SequenceNumber {
		t.Fatal("sender_pk/sequence_number did not survive pack/unpack")
	}
}

// TestUnpackTamperedPadding is the S1 end-to-end scenario: flipping the
// padding terminator byte must surface as ErrInvalidPadding, not a
// silent misparse.
func TestUnpackTamperedPadding(t *testing.T) {
	n := sampleNode()
	var mac NodeMac
	n.Authentication = NodeAuth{Mac: &mac}

	conv := [32]byte{0x42}
	kConv := [32]byte{0x42}
	keys := crypto.DeriveConversationKeys(kConv)
	epoch := uint64(0)

	wire, err := PackWire(n, conv, keys, epoch)
	if err != nil {
		t.Fatalf("PackWire: %v", err)
	}
	wireHash := n.Hash()

	nonce := crypto.Nonce(crypto.DeriveWireNonce(conv, wireHash, epoch))
	padded, err := crypto.DecryptSymmetric(wire.EncryptedPayload, nonce, keys.PayloadKey)
	if err != nil {
		t.Fatalf("DecryptSymmetric: %v", err)
	}

	i := len(padded) - 1
	for i >= 0 && padded[i] == 0x00 {
		i--
	}
	if padded[i] != 0x80 {
		t.Fatal("expected to find 0x80 padding terminator")
	}
	padded[i] = 0x81

	tampered, err := crypto.EncryptSymmetric(padded, nonce, keys.PayloadKey)
	if err != nil {
		t.Fatalf("EncryptSymmetric: %v", err)
	}
	wire.EncryptedPayload = tampered

	if _, err := UnpackWire(wire, wireHash, conv, keys, epoch); err != ErrInvalidPadding {
		t.Fatalf("expected ErrInvalidPadding, got %v", err)
	}
}

func TestPaddingBinSelection(t *testing.T) {
	cases := []struct {
		payloadLen int
		wantBin    int
	}{
		{0, 128},
		{127, 128},
		{500, 512},
		{131071, 131072},
	}
	for _, c := range cases {
		padded, err := padTo(make([]byte, c.payloadLen))
		if err != nil {
			t.Fatalf("padTo(%d): %v", c.payloadLen, err)
		}
		if len(padded) != c.wantBin {
			t.Errorf("padTo(%d): got bin %d want %d", c.payloadLen, len(padded), c.wantBin)
		}
	}
	if _, err := padTo(make([]byte, 200000)); err != ErrPayloadTooLarge {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestWireNodeMarshalRoundTrip(t *testing.T) {
	n := sampleNode()
	var mac NodeMac
	mac[0] = 0xAB
	n.Authentication = NodeAuth{Mac: &mac}
	conv := [32]byte{0x7}
	keys := crypto.DeriveConversationKeys([32]byte{0x7})

	wire, err := PackWire(n, conv, keys, 0)
	if err != nil {
		t.Fatalf("PackWire: %v", err)
	}

	buf := wire.Marshal()
	got, err := UnmarshalWireNode(buf)
	if err != nil {
		t.Fatalf("UnmarshalWireNode: %v", err)
	}
	if got.TopologicalRank != wire.TopologicalRank || got.Flags != wire.Flags {
		t.Fatal("round-tripped WireNode scalar fields mismatch")
	}
	if string(got.EncryptedPayload) != string(wire.EncryptedPayload) {
		t.Fatal("round-tripped WireNode payload mismatch")
	}
}
