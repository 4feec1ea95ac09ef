package transport

import (
	"errors"

	"github.com/opd-ai/merkle-tox/proto"
)

// ErrMessageTooLarge is returned when a message's serialized envelope
// exceeds MaxMessageSize.
var ErrMessageTooLarge = errors.New("transport: message exceeds MaxMessageSize")

// OutboundEnvelope wraps a protocol message's type discriminant with
// its serialized payload, the unit that gets fragmented.
type OutboundEnvelope struct {
	MessageType MessageType
	Payload     []byte
}

func (e OutboundEnvelope) marshal() []byte {
	w := proto.NewWriter(len(e.Payload) + 8)
	w.PutUint8(uint8(e.MessageType))
	w.PutBytes(e.Payload)
	return w.Bytes()
}

func unmarshalEnvelope(buf []byte) (OutboundEnvelope, error) {
	r := proto.NewReader(buf)
	mt, err := r.GetUint8()
	if err != nil {
		return OutboundEnvelope{}, err
	}
	payload, err := r.GetBytes()
	if err != nil {
		return OutboundEnvelope{}, err
	}
	return OutboundEnvelope{MessageType: MessageType(mt), Payload: payload}, nil
}

// OutboundMessage is a fragmented message ready for the scheduler.
type OutboundMessage struct {
	ID        MessageID
	Priority  Priority
	Fragments [][]byte
}

// FragmentMessage splits env into ≤EstimatedPayloadSize fragments.
func FragmentMessage(env OutboundEnvelope, priority Priority) (*OutboundMessage, error) {
	buf := env.marshal()
	if len(buf) > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}

	var fragments [][]byte
	for off := 0; off < len(buf); off += EstimatedPayloadSize {
		end := off + EstimatedPayloadSize
		if end > len(buf) {
			end = len(buf)
		}
		fragment := make([]byte, end-off)
		copy(fragment, buf[off:end])
		fragments = append(fragments, fragment)
	}
	if len(fragments) == 0 {
		fragments = [][]byte{{}}
	}
	if len(fragments) > MaxFragmentsPerMessage {
		return nil, ErrMessageTooLarge
	}

	return &OutboundMessage{
		ID:        NewMessageID(),
		Priority:  degrade(priority, len(fragments)),
		Fragments: fragments,
	}, nil
}

// DataPackets renders every fragment of m as a Data packet.
func (m *OutboundMessage) DataPackets() []Data {
	out := make([]Data, len(m.Fragments))
	for i, frag := range m.Fragments {
		out[i] = Data{
			MessageID:      m.ID,
			FragmentIndex:  uint32(i),
			TotalFragments: uint32(len(m.Fragments)),
			Payload:        frag,
		}
	}
	return out
}
