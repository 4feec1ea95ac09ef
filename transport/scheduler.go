package transport

// pendingMessage tracks one message's unsent fragments within the
// scheduler.
type pendingMessage struct {
	id          MessageID
	priority    Priority
	fragments   [][]byte
	nextIndex   int
	deficit     int
}

func (m *pendingMessage) done() bool { return m.nextIndex >= len(m.fragments) }

// Scheduler is a Deficit Round Robin scheduler over 5 priority levels;
// within a level, messages are served FIFO, and a level's per-round
// byte quantum is replenished (rather than reset) each round, so a
// fragment too large for the remaining deficit waits rather than
// starving.
type Scheduler struct {
	levels [5][]*pendingMessage
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Enqueue admits a fragmented message for scheduling.
func (s *Scheduler) Enqueue(m *OutboundMessage) {
	pm := &pendingMessage{id: m.ID, priority: m.Priority, fragments: m.Fragments}
	level := int(m.Priority)
	if level <= int(PriorityHigh) {
		// Priorities ≤1 preempt: placed at the front of their level's queue.
		s.levels[level] = append([]*pendingMessage{pm}, s.levels[level]...)
	} else {
		s.levels[level] = append(s.levels[level], pm)
	}
}

// NextFragment returns the next fragment to send, in priority order,
// honoring each level's DRR deficit. isReady reports whether a
// message id may currently be sent (e.g. respects CWND/rwnd); a
// message that isReady rejects is skipped for this call without
// losing its place.
func (s *Scheduler) NextFragment(isReady func(MessageID) bool) (MessageID, int, []byte, bool) {
	for level := 0; level < len(s.levels); level++ {
		queue := s.levels[level]
		for i := 0; i < len(queue); i++ {
			pm := queue[i]
			if pm.done() || !isReady(pm.id) {
				continue
			}
			pm.deficit += pm.priority.quantum()
			fragment := pm.fragments[pm.nextIndex]
			if len(fragment) > pm.deficit {
				continue
			}
			pm.deficit -= len(fragment)
			index := pm.nextIndex
			pm.nextIndex++
			if pm.done() {
				s.levels[level] = append(queue[:i], queue[i+1:]...)
			}
			return pm.id, index, fragment, true
		}
	}
	return MessageID{}, 0, nil, false
}

// Remove drops a message from scheduling entirely (e.g. the peer went
// unavailable).
func (s *Scheduler) Remove(id MessageID) {
	for level := range s.levels {
		queue := s.levels[level]
		for i, pm := range queue {
			if pm.id == id {
				s.levels[level] = append(queue[:i], queue[i+1:]...)
				return
			}
		}
	}
}

// Pending reports whether any message is still queued.
func (s *Scheduler) Pending() bool {
	for _, q := range s.levels {
		if len(q) > 0 {
			return true
		}
	}
	return false
}
