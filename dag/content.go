package dag

import (
	"github.com/opd-ai/merkle-tox/crypto"
	"github.com/opd-ai/merkle-tox/proto"
)

// Content tag discriminants (spec §C content variants).
const (
	contentTagText    uint8 = 1
	contentTagBlob    uint8 = 2
	contentTagControl uint8 = 3
	contentTagKeyWrap uint8 = 4
)

// Content is the tagged-union payload a MerkleNode carries: Text, Blob,
// Control, or KeyWrap.
type Content interface {
	contentTag() uint8
	marshalBody(w *proto.Writer)
}

func marshalContent(w *proto.Writer, c Content) {
	body := proto.NewWriter(64)
	c.marshalBody(body)
	w.PutVariant(c.contentTag(), body.Bytes())
}

func unmarshalContent(r *proto.Reader) (Content, error) {
	tag, err := r.GetVariantTag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case contentTagText:
		return unmarshalText(r)
	case contentTagBlob:
		return unmarshalBlob(r)
	case contentTagControl:
		return unmarshalControl(r)
	case contentTagKeyWrap:
		return unmarshalKeyWrap(r)
	default:
		return nil, proto.ErrInvalidTag
	}
}

// Text is a plain UTF-8 message body.
type Text string

func (Text) contentTag() uint8 { return contentTagText }

func (t Text) marshalBody(w *proto.Writer) {
	w.PutString(string(t))
}

func unmarshalText(r *proto.Reader) (Content, error) {
	s, err := r.GetString()
	if err != nil {
		return nil, err
	}
	return Text(s), nil
}

// Blob references out-of-band content addressed by its hash (see the
// session package's chunked blob transfer).
type Blob struct {
	Hash     crypto.Hash
	Name     string
	MimeType string
	Size     uint64
	Metadata []byte
}

func (Blob) contentTag() uint8 { return contentTagBlob }

func (b Blob) marshalBody(w *proto.Writer) {
	w.PutRaw(b.Hash[:])
	w.PutString(b.Name)
	w.PutString(b.MimeType)
	w.PutUint64(b.Size)
	w.PutBytes(b.Metadata)
}

func unmarshalBlob(r *proto.Reader) (Content, error) {
	var b Blob
	raw, err := r.GetRaw(crypto.HashSize)
	if err != nil {
		return nil, err
	}
	copy(b.Hash[:], raw)
	if b.Name, err = r.GetString(); err != nil {
		return nil, err
	}
	if b.MimeType, err = r.GetString(); err != nil {
		return nil, err
	}
	if b.Size, err = r.GetUint64(); err != nil {
		return nil, err
	}
	if b.Metadata, err = r.GetBytes(); err != nil {
		return nil, err
	}
	return b, nil
}

// Control wraps an admin ControlAction; nodes carrying it are signed
// rather than MAC-authenticated.
type Control struct {
	Action ControlAction
}

func (Control) contentTag() uint8 { return contentTagControl }

func (c Control) marshalBody(w *proto.Writer) {
	marshalControlAction(w, c.Action)
}

func unmarshalControl(r *proto.Reader) (Content, error) {
	a, err := unmarshalControlAction(r)
	if err != nil {
		return nil, err
	}
	return Control{Action: a}, nil
}

// WrappedKeyEntry is one recipient's copy of a rotated conversation key.
type WrappedKeyEntry struct {
	RecipientPk [32]byte
	Ciphertext  []byte
	Nonce       crypto.Nonce
}

// KeyWrap distributes a freshly rotated KConv to every current member,
// each wrapped individually under their device encryption key.
type KeyWrap struct {
	WrappedKeys []WrappedKeyEntry
	Epoch       uint64
}

func (KeyWrap) contentTag() uint8 { return contentTagKeyWrap }

func (k KeyWrap) marshalBody(w *proto.Writer) {
	w.PutArrayHeader(len(k.WrappedKeys))
	for _, e := range k.WrappedKeys {
		w.PutRaw(e.RecipientPk[:])
		w.PutBytes(e.Ciphertext)
		w.PutRaw(e.Nonce[:])
	}
	w.PutUint64(k.Epoch)
}

func unmarshalKeyWrap(r *proto.Reader) (Content, error) {
	n, err := r.GetArrayHeader()
	if err != nil {
		return nil, err
	}
	entries := make([]WrappedKeyEntry, 0, n)
	for i := 0; i < n; i++ {
		var e WrappedKeyEntry
		raw, err := r.GetRaw(32)
		if err != nil {
			return nil, err
		}
		copy(e.RecipientPk[:], raw)
		if e.Ciphertext, err = r.GetBytes(); err != nil {
			return nil, err
		}
		nraw, err := r.GetRaw(24)
		if err != nil {
			return nil, err
		}
		copy(e.Nonce[:], nraw)
		entries = append(entries, e)
	}
	epoch, err := r.GetUint64()
	if err != nil {
		return nil, err
	}
	return KeyWrap{WrappedKeys: entries, Epoch: epoch}, nil
}
