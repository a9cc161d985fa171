package session

import (
	"sync"

	"github.com/yourusername/bgserver/pkg/rules"
)

// Event is delivered to subscribers. Implemented by SnapshotEvent,
// RejectionEvent and ClosedEvent.
type Event interface {
	sessionEvent()
}

// SnapshotEvent carries the state after an applied action.
type SnapshotEvent struct {
	Action   string // empty for the initial snapshot on subscribe
	Snapshot *Snapshot
}

// RejectionEvent reports an action that was refused. The state did not change.
type RejectionEvent struct {
	MatchID MatchID
	Action  string
	Color   rules.Color
	Kind    rules.ErrorKind
	Message string
}

// ClosedEvent is the last event of a session.
type ClosedEvent struct {
	MatchID MatchID
}

func (SnapshotEvent) sessionEvent()  {}
func (RejectionEvent) sessionEvent() {}
func (ClosedEvent) sessionEvent()    {}

// DefaultEventBuffer is the subscription buffer used when none is given.
const DefaultEventBuffer = 64

// Subscription receives a session's events on a bounded channel. When the
// subscriber falls behind, the oldest buffered event is dropped.
type Subscription struct {
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex // serializes send so drop-oldest stays ordered
	dropped   uint64
	unsub     func(*Subscription)
}

func newSubscription(buffer int, unsub func(*Subscription)) *Subscription {
	if buffer < 1 {
		buffer = DefaultEventBuffer
	}
	return &Subscription{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
		unsub:  unsub,
	}
}

// Events returns the channel to read from. It is never closed; select on
// Done as well.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done closes when the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Dropped returns how many events were discarded because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close detaches the subscription from its session. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.unsub != nil {
			s.unsub(s)
		}
	})
}

// send delivers evt without blocking.
func (s *Subscription) send(evt Event) {
	select {
	case <-s.done:
		return
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case s.events <- evt:
		return
	default:
	}
	select {
	case <-s.events:
		s.dropped++
	default:
	}
	select {
	case s.events <- evt:
	default:
		s.dropped++
	}
}
