package transport

import (
	"github.com/google/uuid"
	"github.com/opd-ai/merkle-tox/proto"
)

// MessageID identifies one logical outbound message across its
// fragments and ACKs.
type MessageID [16]byte

// NewMessageID allocates a fresh random message id.
func NewMessageID() MessageID {
	return MessageID(uuid.New())
}

const (
	tagData uint8 = 0
	tagAck  uint8 = 1
	tagNack uint8 = 2
	tagPing uint8 = 3
	tagPong uint8 = 4
)

// Packet is the tagged union carried over the datagram channel.
type Packet interface {
	packetTag() uint8
	marshalBody(w *proto.Writer)
}

// Marshal serializes a Packet as [tag:u8, payload].
func Marshal(p Packet) []byte {
	w := proto.NewWriter(EstimatedPayloadSize)
	w.PutUint8(p.packetTag())
	p.marshalBody(w)
	return w.Bytes()
}

// Unmarshal decodes a Packet previously produced by Marshal.
func Unmarshal(buf []byte) (Packet, error) {
	r := proto.NewReader(buf)
	tag, err := r.GetUint8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagData:
		return unmarshalData(r)
	case tagAck:
		return unmarshalAck(r)
	case tagNack:
		return unmarshalNack(r)
	case tagPing:
		return unmarshalPing(r)
	case tagPong:
		return unmarshalPong(r)
	default:
		return nil, proto.ErrInvalidTag
	}
}

// Data carries one fragment of a fragmented message.
type Data struct {
	MessageID      MessageID
	FragmentIndex  uint32
	TotalFragments uint32
	Payload        []byte
}

func (Data) packetTag() uint8 { return tagData }

func (d Data) marshalBody(w *proto.Writer) {
	w.PutRaw(d.MessageID[:])
	w.PutUint32(d.FragmentIndex)
	w.PutUint32(d.TotalFragments)
	w.PutBytes(d.Payload)
}

func unmarshalData(r *proto.Reader) (Packet, error) {
	var d Data
	raw, err := r.GetRaw(16)
	if err != nil {
		return nil, err
	}
	copy(d.MessageID[:], raw)
	if d.FragmentIndex, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if d.TotalFragments, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if d.Payload, err = r.GetBytes(); err != nil {
		return nil, err
	}
	return d, nil
}

// SelectiveAck cumulatively acknowledges every fragment below
// BaseIndex, plus any of the 64 fragments starting at BaseIndex+1 whose
// bit is set in Bitmask.
type SelectiveAck struct {
	MessageID MessageID
	BaseIndex uint32
	Bitmask   uint64
	Rwnd      uint32
}

func (SelectiveAck) packetTag() uint8 { return tagAck }

func (a SelectiveAck) marshalBody(w *proto.Writer) {
	w.PutRaw(a.MessageID[:])
	w.PutUint32(a.BaseIndex)
	w.PutUint64(a.Bitmask)
	w.PutUint32(a.Rwnd)
}

func unmarshalAck(r *proto.Reader) (Packet, error) {
	var a SelectiveAck
	raw, err := r.GetRaw(16)
	if err != nil {
		return nil, err
	}
	copy(a.MessageID[:], raw)
	if a.BaseIndex, err = r.GetUint32(); err != nil {
		return nil, err
	}
	if a.Bitmask, err = r.GetUint64(); err != nil {
		return nil, err
	}
	if a.Rwnd, err = r.GetUint32(); err != nil {
		return nil, err
	}
	return a, nil
}

// Nack lists fragments the receiver has discovered are missing.
type Nack struct {
	MessageID      MessageID
	MissingIndices []uint32
}

func (Nack) packetTag() uint8 { return tagNack }

func (n Nack) marshalBody(w *proto.Writer) {
	w.PutRaw(n.MessageID[:])
	w.PutArrayHeader(len(n.MissingIndices))
	for _, idx := range n.MissingIndices {
		w.PutUint32(idx)
	}
}

func unmarshalNack(r *proto.Reader) (Packet, error) {
	var n Nack
	raw, err := r.GetRaw(16)
	if err != nil {
		return nil, err
	}
	copy(n.MessageID[:], raw)
	count, err := r.GetArrayHeader()
	if err != nil {
		return nil, err
	}
	n.MissingIndices = make([]uint32, 0, count)
	for i := 0; i < count; i++ {
		idx, err := r.GetUint32()
		if err != nil {
			return nil, err
		}
		n.MissingIndices = append(n.MissingIndices, idx)
	}
	return n, nil
}

// Ping starts a clock-offset/RTT exchange.
type Ping struct {
	T1 int64
}

func (Ping) packetTag() uint8 { return tagPing }

func (p Ping) marshalBody(w *proto.Writer) { w.PutInt64(p.T1) }

func unmarshalPing(r *proto.Reader) (Packet, error) {
	t1, err := r.GetInt64()
	if err != nil {
		return nil, err
	}
	return Ping{T1: t1}, nil
}

// Pong answers a Ping, echoing T1 with the responder's receive (T2)
// and send (T3) times. This package adds no jitter to T2 and T3 (see
// PingPongJitter).
type Pong struct {
	T1 int64
	T2 int64
	T3 int64
}

func (Pong) packetTag() uint8 { return tagPong }

func (p Pong) marshalBody(w *proto.Writer) {
	w.PutInt64(p.T1)
	w.PutInt64(p.T2)
	w.PutInt64(p.T3)
}

func unmarshalPong(r *proto.Reader) (Packet, error) {
	var p Pong
	var err error
	if p.T1, err = r.GetInt64(); err != nil {
		return nil, err
	}
	if p.T2, err = r.GetInt64(); err != nil {
		return nil, err
	}
	if p.T3, err = r.GetInt64(); err != nil {
		return nil, err
	}
	return p, nil
}

// ClockOffsetMs computes the estimated one-way clock offset from a
// completed ping/pong exchange, given the local receipt time t4.
func ClockOffsetMs(t1, t2, t3, t4 int64) int64 {
	return ((t2 - t1) + (t3 - t4)) / 2
}
