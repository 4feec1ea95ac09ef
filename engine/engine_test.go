package engine

import (
	"testing"
	"time"

	"github.com/opd-ai/merkle-tox/crypto"
	"github.com/opd-ai/merkle-tox/dag"
	"github.com/opd-ai/merkle-tox/effects"
	"github.com/opd-ai/merkle-tox/identity"
	"github.com/opd-ai/merkle-tox/netclock"
	"github.com/opd-ai/merkle-tox/store"
)

type fixedTimeProvider struct {
	now time.Time
}

func (f *fixedTimeProvider) Now() time.Time                  { return f.now }
func (f *fixedTimeProvider) Since(t time.Time) time.Duration { return f.now.Sub(t) }

func newTestEngine(t *testing.T) (*Engine, store.ConversationID, dag.PhysicalDevicePk, dag.LogicalIdentityPk) {
	t.Helper()
	s := store.NewMemoryNodeStore()
	tp := &fixedTimeProvider{now: time.Unix(1_700_000_000, 0)}
	clock := netclock.NewClock(tp)
	clock.UpdatePeerOffsetWeighted([32]byte{1}, 0, 1)

	device := dag.PhysicalDevicePk{1}
	master := dag.LogicalIdentityPk{1}

	e := NewEngine(s, clock, device, master)

	conv := store.ConversationID{0x42}
	kConv := [32]byte{0x42}
	mgr := identity.NewManager(master)
	epoch := NewEpochKeys(0, kConv, DefaultEpochCapacity)
	e.RegisterConversation(conv, mgr, epoch)

	return e, conv, device, master
}

func TestAuthorGenesisIsSignatureAuthenticated(t *testing.T) {
	e, conv, device, master := newTestEngine(t)
	var deviceSK [32]byte
	deviceSK[0] = 7
	e.SetDeviceSigningKey(deviceSK)

	cs := e.convs[conv]
	cs.manager.AddMember(master, 0, e.Clock.NetworkTimeMs())
	cs.manager.AddDevice(device, master, identity.Cert{
		IssuerPk:       [32]byte(master),
		IssuerIsDevice: false,
		Permissions:    identity.PermAll,
		NotAfter:       9_999_999_999_999,
		IssuedAtRank:   0,
	})

	genesis := dag.Control{Action: dag.Genesis{
		Title:     "room",
		CreatorPk: master,
	}}
	effs, node, err := e.AuthorNode(conv, genesis, nil)
	if err != nil {
		t.Fatalf("AuthorNode: %v", err)
	}
	if len(effs) == 0 {
		t.Fatal("expected authoring genesis to produce effects")
	}
	if node.Authentication.Signature == nil {
		t.Fatal("expected genesis to be signature-authenticated")
	}
}

func TestHandleNodeMacAuthenticationRejectsTamperedNode(t *testing.T) {
	e, conv, device, master := newTestEngine(t)
	cs := e.convs[conv]
	cs.manager.AddMember(master, 0, 0)
	cs.manager.AddDevice(device, master, identity.Cert{
		IssuerPk:     [32]byte(master),
		Permissions:  identity.PermAll,
		NotAfter:     9_999_999_999_999,
		IssuedAtRank: 0,
	})

	effs, node, err := e.AuthorNode(conv, dag.Text("hello"), nil)
	if err != nil {
		t.Fatalf("AuthorNode: %v", err)
	}
	if len(effs) == 0 {
		t.Fatal("expected effects")
	}

	// Tamper with the MAC.
	tampered := *node
	var badMac dag.NodeMac
	badMac[0] = node.Authentication.Mac[0] ^ 0xFF
	tampered.Authentication = dag.NodeAuth{Mac: &badMac}

	if _, err := e.HandleNode(conv, &tampered); err != ErrInvalidAuthentication {
		t.Fatalf("expected ErrInvalidAuthentication, got %v", err)
	}
}

func TestHandleNodeMissingParentIsSpeculative(t *testing.T) {
	e, conv, device, master := newTestEngine(t)
	cs := e.convs[conv]
	cs.manager.AddMember(master, 0, 0)
	cs.manager.AddDevice(device, master, identity.Cert{
		IssuerPk:     [32]byte(master),
		Permissions:  identity.PermAll,
		NotAfter:     9_999_999_999_999,
		IssuedAtRank: 0,
	})

	node := &dag.MerkleNode{
		Parents:          []dag.NodeHash{{0xFF}},
		AuthorPk:         master,
		SenderPk:         device,
		SequenceNumber:   1,
		TopologicalRank:  1,
		NetworkTimestamp: e.Clock.NetworkTimeMs(),
		Content:          dag.Text("orphan"),
	}
	mac := crypto.KeyedHash(cs.epoch.Keys.MACKey, node.Prefix(), 32)
	var m dag.NodeMac
	copy(m[:], mac)
	node.Authentication = dag.NodeAuth{Mac: &m}

	effs, err := e.HandleNode(conv, node)
	if err != nil {
		t.Fatalf("HandleNode: %v", err)
	}
	if len(effs) != 1 {
		t.Fatalf("expected exactly one WriteStore(verified=false) effect, got %d", len(effs))
	}
	ws, ok := effs[0].(effects.WriteStore)
	if !ok {
		t.Fatalf("expected effects.WriteStore, got %T", effs[0])
	}
	if ws.Verified {
		t.Fatal("orphaned node must be stored as unverified/speculative")
	}
}

func TestHandleNodeFutureTimestampQuarantined(t *testing.T) {
	e, conv, device, master := newTestEngine(t)
	cs := e.convs[conv]
	cs.manager.AddMember(master, 0, 0)
	cs.manager.AddDevice(device, master, identity.Cert{
		IssuerPk:     [32]byte(master),
		Permissions:  identity.PermAll,
		NotAfter:     9_999_999_999_999,
		IssuedAtRank: 0,
	})

	node := &dag.MerkleNode{
		AuthorPk:         master,
		SenderPk:         device,
		SequenceNumber:   1,
		TopologicalRank:  1,
		NetworkTimestamp: e.Clock.NetworkTimeMs() + (20 * time.Minute).Milliseconds(),
		Content:          dag.Text("from the future"),
	}
	mac := crypto.KeyedHash(cs.epoch.Keys.MACKey, node.Prefix(), 32)
	var m dag.NodeMac
	copy(m[:], mac)
	node.Authentication = dag.NodeAuth{Mac: &m}

	effs, err := e.HandleNode(conv, node)
	if err != nil {
		t.Fatalf("HandleNode: %v", err)
	}
	if len(effs) != 1 {
		t.Fatalf("expected quarantine (one unverified WriteStore effect), got %d effects", len(effs))
	}
	if ws, ok := effs[0].(effects.WriteStore); !ok || ws.Verified {
		t.Fatal("future-drifted node must be stored as unverified/speculative")
	}
}

func TestHandleNodeUnauthorizedSenderRejected(t *testing.T) {
	e, conv, device, master := newTestEngine(t)
	cs := e.convs[conv]
	// Deliberately do not authorize device.
	_ = cs

	node := &dag.MerkleNode{
		AuthorPk:         master,
		SenderPk:         device,
		SequenceNumber:   1,
		TopologicalRank:  1,
		NetworkTimestamp: e.Clock.NetworkTimeMs(),
		Content:          dag.Text("hi"),
	}
	mac := crypto.KeyedHash(cs.epoch.Keys.MACKey, node.Prefix(), 32)
	var m dag.NodeMac
	copy(m[:], mac)
	node.Authentication = dag.NodeAuth{Mac: &m}

	if _, err := e.HandleNode(conv, node); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRotateConversationKeyWrapsAllDevices(t *testing.T) {
	e, conv, device, master := newTestEngine(t)
	var deviceSK [32]byte
	deviceSK[0] = 9
	e.SetDeviceSigningKey(deviceSK)

	cs := e.convs[conv]
	cs.manager.AddMember(master, 0, 0)
	cs.manager.AddDevice(device, master, identity.Cert{
		IssuerPk:     [32]byte(master),
		Permissions:  identity.PermAll,
		NotAfter:     9_999_999_999_999,
		IssuedAtRank: 0,
	})
	secondDevice := dag.PhysicalDevicePk{2}
	cs.manager.AddDevice(secondDevice, master, identity.Cert{
		IssuerPk:     [32]byte(master),
		Permissions:  identity.PermAll,
		NotAfter:     9_999_999_999_999,
		IssuedAtRank: 0,
	})

	effs, err := e.RotateConversationKey(conv)
	if err != nil {
		t.Fatalf("RotateConversationKey: %v", err)
	}
	if len(effs) == 0 {
		t.Fatal("expected rotation effects")
	}

	var wrote *effects.WriteConversationKey
	var wroteKeyWrapNode bool
	var keyWrap dag.KeyWrap
	for _, eff := range effs {
		switch v := eff.(type) {
		case effects.WriteConversationKey:
			wck := v
			wrote = &wck
		case effects.WriteStore:
			if kw, ok := v.Node.Content.(dag.KeyWrap); ok {
				wroteKeyWrapNode = true
				keyWrap = kw
			}
		}
	}
	if wrote == nil {
		t.Fatal("expected a WriteConversationKey effect")
	}
	if wrote.Epoch != 1 {
		t.Fatalf("expected WriteConversationKey epoch 1, got %d", wrote.Epoch)
	}
	if !wroteKeyWrapNode {
		t.Fatal("expected a KeyWrap content node to be authored")
	}
	if len(keyWrap.WrappedKeys) != 2 {
		t.Fatalf("expected KConv wrapped for both devices, got %d entries", len(keyWrap.WrappedKeys))
	}

	if cs.epoch.Epoch != 1 {
		t.Fatalf("expected epoch to advance to 1, got %d", cs.epoch.Epoch)
	}
}

func TestRevokeDeviceTriggersReverification(t *testing.T) {
	e, conv, device, master := newTestEngine(t)
	var deviceSK [32]byte
	deviceSK[0] = 3
	e.SetDeviceSigningKey(deviceSK)

	cs := e.convs[conv]
	cs.manager.AddMember(master, 0, 0)
	cs.manager.AddDevice(device, master, identity.Cert{
		IssuerPk:     [32]byte(master),
		Permissions:  identity.PermAll,
		NotAfter:     9_999_999_999_999,
		IssuedAtRank: 0,
	})

	// Store a genesis first so the revocation is parented on it and
	// lands at rank 1.
	_, genesis, err := e.AuthorNode(conv, dag.Control{Action: dag.Genesis{Title: "room", CreatorPk: master}}, nil)
	if err != nil {
		t.Fatalf("AuthorNode genesis: %v", err)
	}
	if err := e.Store.PutNode(conv, genesis, true); err != nil {
		t.Fatalf("PutNode genesis: %v", err)
	}

	revoke := dag.Control{Action: dag.RevokeDevice{TargetDevicePk: device, Reason: "compromised"}}
	effs, _, err := e.AuthorNode(conv, revoke, []dag.NodeHash{genesis.Hash()})
	if err != nil {
		t.Fatalf("AuthorNode revoke: %v", err)
	}

	var sawReverify bool
	for _, eff := range effs {
		if _, ok := eff.(effects.ReverifySpeculative); ok {
			sawReverify = true
		}
	}
	if !sawReverify {
		t.Fatal("expected a ReverifySpeculative effect after revoking a device")
	}

	if !cs.manager.IsAuthorizedAt(device, identity.PermMessage, 0, 0) {
		t.Fatal("device should still be authorized before the revocation's rank")
	}
	if cs.manager.IsAuthorizedAt(device, identity.PermMessage, 100, 0) {
		t.Fatal("device should be revoked after the revocation's rank")
	}
}
