package dag

import "github.com/opd-ai/merkle-tox/proto"

// ControlAction tag discriminants.
const (
	controlTagGenesis         uint8 = 1
	controlTagAuthorizeDevice uint8 = 2
	controlTagRevokeDevice    uint8 = 3
	controlTagSetTitle        uint8 = 4
	controlTagSnapshot        uint8 = 5
)

// ControlAction is the tagged union of admin operations a Control
// content node may carry.
type ControlAction interface {
	controlTag() uint8
	marshalBody(w *proto.Writer)
}

func marshalControlAction(w *proto.Writer, a ControlAction) {
	body := proto.NewWriter(64)
	a.marshalBody(body)
	w.PutVariant(a.controlTag(), body.Bytes())
}

func unmarshalControlAction(r *proto.Reader) (ControlAction, error) {
	tag, err := r.GetVariantTag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case controlTagGenesis:
		return unmarshalGenesis(r)
	case controlTagAuthorizeDevice:
		return unmarshalAuthorizeDevice(r)
	case controlTagRevokeDevice:
		return unmarshalRevokeDevice(r)
	case controlTagSetTitle:
		return unmarshalSetTitle(r)
	case controlTagSnapshot:
		return unmarshalSnapshot(r)
	default:
		return nil, proto.ErrInvalidTag
	}
}

// Genesis founds a conversation: it has no parents and carries the
// creator's proof-of-work admission nonce.
type Genesis struct {
	Title       string
	CreatorPk   LogicalIdentityPk
	Permissions uint32
	Flags       uint32
	CreatedAt   int64
	PowNonce    uint64
}

func (Genesis) controlTag() uint8 { return controlTagGenesis }

func (g Genesis) marshalBody(w *proto.Writer) {
	w.PutString(g.Title)
	w.PutRaw(g.CreatorPk[:])
	w.PutUint32(g.Permissions)
	w.PutUint32(g.Flags)
	w.PutInt64(g.CreatedAt)
	w.PutUint64(g.PowNonce)
}

func unmarshalGenesis(r *proto.Reader) (ControlAction, error) {
	var g Genesis
	var err error
	if g.Title, err = r.GetString(); err != nil {
		return nil, err
	}
	raw, err := r.GetRaw(32)
	if err != nil {
		return nil, err
	}
	copy(g.CreatorPk[:], raw)
	if g.Permissions, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if g.Flags, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if g.CreatedAt, err = r.GetInt64(); err != nil {
		return nil, err
	}
	if g.PowNonce, err = r.GetUint64(); err != nil {
		return nil, err
	}
	return g, nil
}

// DeviceCert authorizes a device to act for a logical identity, with a
// permission bitmask, an expiry, and an optional delegation chain.
type DeviceCert struct {
	DevicePk    PhysicalDevicePk
	OwnerPk     LogicalIdentityPk
	Permissions uint32
	NotAfter    int64
	IssuerPk    LogicalIdentityPk
	Signature   [64]byte
}

func marshalDeviceCert(w *proto.Writer, c DeviceCert) {
	w.PutRaw(c.DevicePk[:])
	w.PutRaw(c.OwnerPk[:])
	w.PutUint32(c.Permissions)
	w.PutInt64(c.NotAfter)
	w.PutRaw(c.IssuerPk[:])
	w.PutRaw(c.Signature[:])
}

func unmarshalDeviceCert(r *proto.Reader) (DeviceCert, error) {
	var c DeviceCert
	raw, err := r.GetRaw(32)
	if err != nil {
		return c, err
	}
	copy(c.DevicePk[:], raw)
	raw, err = r.GetRaw(32)
	if err != nil {
		return c, err
	}
	copy(c.OwnerPk[:], raw)
	if c.Permissions, err = r.GetUint32(); err != nil {
		return c, err
	}
	if c.NotAfter, err = r.GetInt64(); err != nil {
		return c, err
	}
	raw, err = r.GetRaw(32)
	if err != nil {
		return c, err
	}
	copy(c.IssuerPk[:], raw)
	raw, err = r.GetRaw(64)
	if err != nil {
		return c, err
	}
	copy(c.Signature[:], raw)
	return c, nil
}

// AuthorizeDevice grants a device certificate; the issuing admin may
// only delegate a permission subset of what they themselves hold.
type AuthorizeDevice struct {
	Cert DeviceCert
}

func (AuthorizeDevice) controlTag() uint8 { return controlTagAuthorizeDevice }

func (a AuthorizeDevice) marshalBody(w *proto.Writer) {
	marshalDeviceCert(w, a.Cert)
}

func unmarshalAuthorizeDevice(r *proto.Reader) (ControlAction, error) {
	c, err := unmarshalDeviceCert(r)
	if err != nil {
		return nil, err
	}
	return AuthorizeDevice{Cert: c}, nil
}

// RevokeDevice retroactively invalidates a device's certificate as of
// this node's topological rank.
type RevokeDevice struct {
	TargetDevicePk PhysicalDevicePk
	Reason         string
}

func (RevokeDevice) controlTag() uint8 { return controlTagRevokeDevice }

func (a RevokeDevice) marshalBody(w *proto.Writer) {
	w.PutRaw(a.TargetDevicePk[:])
	w.PutString(a.Reason)
}

func unmarshalRevokeDevice(r *proto.Reader) (ControlAction, error) {
	var a RevokeDevice
	raw, err := r.GetRaw(32)
	if err != nil {
		return nil, err
	}
	copy(a.TargetDevicePk[:], raw)
	if a.Reason, err = r.GetString(); err != nil {
		return nil, err
	}
	return a, nil
}

// SetTitle renames the conversation.
type SetTitle string

func (SetTitle) controlTag() uint8 { return controlTagSetTitle }

func (s SetTitle) marshalBody(w *proto.Writer) {
	w.PutString(string(s))
}

func unmarshalSetTitle(r *proto.Reader) (ControlAction, error) {
	s, err := r.GetString()
	if err != nil {
		return nil, err
	}
	return SetTitle(s), nil
}

// MemberSeq records a member's last-known sequence number as of a
// snapshot, for garbage-collection bookkeeping.
type MemberSeq struct {
	MemberPk LogicalIdentityPk
	LastSeq  uint64
}

// Snapshot compacts history: members present, their last sequence
// numbers, and the basis hash beyond which earlier nodes may be
// garbage-collected.
type Snapshot struct {
	BasisHash     NodeHash
	Members       []LogicalIdentityPk
	LastSeqNumber []MemberSeq
}

func (Snapshot) controlTag() uint8 { return controlTagSnapshot }

func (s Snapshot) marshalBody(w *proto.Writer) {
	w.PutRaw(s.BasisHash[:])
	w.PutArrayHeader(len(s.Members))
	for _, m := range s.Members {
		w.PutRaw(m[:])
	}
	w.PutArrayHeader(len(s.LastSeqNumber))
	for _, ls := range s.LastSeqNumber {
		w.PutRaw(ls.MemberPk[:])
		w.PutUint64(ls.LastSeq)
	}
}

func unmarshalSnapshot(r *proto.Reader) (ControlAction, error) {
	var s Snapshot
	raw, err := r.GetRaw(32)
	if err != nil {
		return nil, err
	}
	copy(s.BasisHash[:], raw)
	n, err := r.GetArrayHeader()
	if err != nil {
		return nil, err
	}
	s.Members = make([]LogicalIdentityPk, 0, n)
	for i := 0; i < n; i++ {
		raw, err := r.GetRaw(32)
		if err != nil {
			return nil, err
		}
		var pk LogicalIdentityPk
		copy(pk[:], raw)
		s.Members = append(s.Members, pk)
	}
	n, err = r.GetArrayHeader()
	if err != nil {
		return nil, err
	}
	s.LastSeqNumber = make([]MemberSeq, 0, n)
	for i := 0; i < n; i++ {
		raw, err := r.GetRaw(32)
		if err != nil {
			return nil, err
		}
		var ls MemberSeq
		copy(ls.MemberPk[:], raw)
		if ls.LastSeq, err = r.GetUint64(); err != nil {
			return nil, err
		}
		s.LastSeqNumber = append(s.LastSeqNumber, ls)
	}
	return s, nil
}
