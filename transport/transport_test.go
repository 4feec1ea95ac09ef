package transport

import (
	"bytes"
	"reflect"
	"testing"
	"time"
)

func TestPacketRoundTrip(t *testing.T) {
	cases := []Packet{
		Data{MessageID: NewMessageID(), FragmentIndex: 3, TotalFragments: 7, Payload: []byte("hello")},
		SelectiveAck{MessageID: NewMessageID(), BaseIndex: 2, Bitmask: 0x5, Rwnd: 1024},
		Nack{MessageID: NewMessageID(), MissingIndices: []uint32{1, 4, 9}},
		Ping{T1: 1000},
		Pong{T1: 1000, T2: 1010, T3: 1012},
	}
	for _, p := range cases {
		buf := Marshal(p)
		got, err := Unmarshal(buf)
		if err != nil {
			t.Fatalf("Unmarshal(%T): %v", p, err)
		}
		if !reflect.DeepEqual(got, p) {
			t.Errorf("round trip mismatch: got %+v want %+v", got, p)
		}
	}
}

func TestFragmentAndReassemble(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, EstimatedPayloadSize*3+17)
	env := OutboundEnvelope{MessageType: 0x05, Payload: payload}

	msg, err := FragmentMessage(env, PriorityHigh)
	if err != nil {
		t.Fatalf("FragmentMessage: %v", err)
	}
	if len(msg.Fragments) < 4 {
		t.Fatalf("expected at least 4 fragments, got %d", len(msg.Fragments))
	}

	buf, err := NewFragmentBuffer(msg.ID, uint32(len(msg.Fragments)))
	if err != nil {
		t.Fatalf("NewFragmentBuffer: %v", err)
	}

	packets := msg.DataPackets()
	// Feed fragments out of order to prove selective reassembly.
	order := []int{2, 0, 1, 3}
	for _, i := range order {
		if i >= len(packets) {
			continue
		}
		buf.AddFragment(packets[i].FragmentIndex, packets[i].Payload)
	}
	for i := 4; i < len(packets); i++ {
		buf.AddFragment(packets[i].FragmentIndex, packets[i].Payload)
	}

	if !buf.IsComplete() {
		t.Fatal("buffer should be complete after all fragments added")
	}
	assembled := buf.Assemble()
	envelope, err := unmarshalEnvelope(assembled)
	if err != nil {
		t.Fatalf("unmarshalEnvelope: %v", err)
	}
	if !bytes.Equal(envelope.Payload, payload) {
		t.Fatal("reassembled payload does not match original")
	}
}

func TestFragmentIdempotentAdd(t *testing.T) {
	buf, _ := NewFragmentBuffer(NewMessageID(), 2)
	buf.AddFragment(0, []byte("a"))
	buf.AddFragment(0, []byte("a-duplicate-ignored"))
	if buf.BaseIndex() != 1 {
		t.Fatalf("duplicate add must not double count: base=%d", buf.BaseIndex())
	}
}

func TestReassemblyQuotaPriorityAdmission(t *testing.T) {
	q := NewReassemblyQuota(1000)
	if !q.Reserve(650, PriorityBulk) {
		t.Fatal("Bulk should admit up to 70%")
	}
	if q.Reserve(60, PriorityBulk) {
		t.Fatal("Bulk must not admit past its 70% threshold")
	}
	if !q.Reserve(60, PriorityCritical) {
		t.Fatal("Critical should admit up to 99% even when Bulk is near its own cap")
	}
	q.Release(650)
	if q.UsedBytes() != 60 {
		t.Fatalf("after release, used=%d want 60", q.UsedBytes())
	}
}

func TestReserveGuaranteedUsesHardCap(t *testing.T) {
	q := NewReassemblyQuota(100)
	q.Reserve(95, PriorityCritical)
	if q.Reserve(10, PriorityCritical) {
		t.Fatal("Critical threshold (99%) should reject pushing past it")
	}
	if !q.ReserveGuaranteed(5) {
		t.Fatal("ReserveGuaranteed should admit up to the hard 100% cap")
	}
}

func TestAdvertisedWindowNeverExceedsPlannedRemaining(t *testing.T) {
	w := AdvertisedWindow(100000, 500, 300)
	if w != 200 {
		t.Fatalf("AdvertisedWindow = %d, want 200 (planned remaining, not raw free quota)", w)
	}
}

func TestCWNDMonotoneAbsentLoss(t *testing.T) {
	for _, cc := range []CongestionController{NewAIMD(), NewCUBIC()} {
		now := time.Now()
		prev := cc.CWND()
		for i := 0; i < 20; i++ {
			now = now.Add(50 * time.Millisecond)
			cc.OnAck(50*time.Millisecond, &DeliverySample{BytesDelivered: 1000, Duration: 50 * time.Millisecond}, 1000, 5, now)
			cur := cc.CWND()
			if cur < prev {
				t.Fatalf("%T: cwnd decreased absent loss: %d -> %d", cc, prev, cur)
			}
			prev = cur
		}
	}
}

func TestBBRStartupGuardOnAppLimited(t *testing.T) {
	bbr := NewBBR()
	now := time.Now()
	for i := 0; i < 50; i++ {
		now = now.Add(10 * time.Millisecond)
		bbr.OnAck(10*time.Millisecond, &DeliverySample{BytesDelivered: 100, Duration: 10 * time.Millisecond, AppLimited: true}, 100, 1, now)
	}
	if bbr.phase != bbrStartup {
		t.Fatal("BBR must not exit Startup on app-limited ACKs alone")
	}
}

func TestBBRStartupGuardOnPingOnly(t *testing.T) {
	bbr := NewBBR()
	now := time.Now()
	for i := 0; i < 50; i++ {
		now = now.Add(10 * time.Millisecond)
		bbr.OnAck(10*time.Millisecond, nil, 0, 0, now)
	}
	if bbr.phase != bbrStartup {
		t.Fatal("BBR must not exit Startup on ping-only ACKs (nil sample)")
	}
}

func TestBBRExitsStartupOnPlateau(t *testing.T) {
	bbr := NewBBR()
	now := time.Now()
	// Grow quickly, then flatten for several rounds.
	bw := 1000.0
	for i := 0; i < 5; i++ {
		now = now.Add(50 * time.Millisecond)
		bbr.OnAck(50*time.Millisecond, &DeliverySample{BytesDelivered: int(bw * 0.05), Duration: 50 * time.Millisecond}, int(bw*0.05), 10, now)
		bw *= 2
	}
	for i := 0; i < 10; i++ {
		now = now.Add(50 * time.Millisecond)
		bbr.OnAck(50*time.Millisecond, &DeliverySample{BytesDelivered: int(bw * 0.05), Duration: 50 * time.Millisecond}, int(bw*0.05), 10, now)
	}
	if bbr.phase == bbrStartup {
		t.Fatal("BBR should have exited Startup once bandwidth growth plateaued")
	}
}

func TestSchedulerPreemptsHighPriority(t *testing.T) {
	s := NewScheduler()
	bulk, _ := FragmentMessage(OutboundEnvelope{MessageType: 0x09, Payload: []byte("bulk")}, PriorityBulk)
	critical, _ := FragmentMessage(OutboundEnvelope{MessageType: 0x01, Payload: []byte("critical")}, PriorityCritical)
	s.Enqueue(bulk)
	s.Enqueue(critical)

	id, _, _, ok := s.NextFragment(func(MessageID) bool { return true })
	if !ok || id != critical.ID {
		t.Fatal("scheduler must serve Critical priority before Bulk")
	}
}

func TestSchedulerSkipsNotReady(t *testing.T) {
	s := NewScheduler()
	m, _ := FragmentMessage(OutboundEnvelope{MessageType: 0x05, Payload: []byte("x")}, PriorityHigh)
	s.Enqueue(m)

	_, _, _, ok := s.NextFragment(func(MessageID) bool { return false })
	if ok {
		t.Fatal("scheduler must not return a fragment for a not-ready message")
	}
}

func TestRTOLowerBounded(t *testing.T) {
	var e RTTEstimator
	e.Sample(1 * time.Millisecond)
	if e.RTO() < MinRTO {
		t.Fatalf("RTO below MinRTO floor: %v", e.RTO())
	}
}

func TestClockOffset(t *testing.T) {
	// t1=0, t2=105, t3=110, t4=200: offset = ((105-0)+(110-200))/2 = 7
	if got := ClockOffsetMs(0, 105, 110, 200); got != 7 {
		t.Fatalf("ClockOffsetMs = %d, want 7", got)
	}
}
