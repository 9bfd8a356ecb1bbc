// internal/events/hub.go
package events

import (
	"sync"
	"time"
)

const (
	TypeAccrual          = "accrual"
	TypeSession          = "session"
	TypeSync             = "sync"
	TypeWithdrawal       = "withdrawal"
	TypeCelebration      = "celebration"
	TypeFinalCelebration = "final_celebration"
	TypeStatus           = "status"
	TypePrice            = "price"
)

type Event struct {
	Type string      `json:"type"`
	Time time.Time   `json:"time"`
	Data interface{} `json:"data,omitempty"`
}

// Subscription receives events until Close is called.
type Subscription struct {
	C <-chan Event

	ch     chan Event
	hub    *Hub
	mu     sync.Mutex
	closed bool
}

func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.hub.unsubscribe(s)
	close(s.ch)
}

// Hub fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
	now  func() time.Time
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{}), now: time.Now}
}

func (h *Hub) Subscribe(buffer int) *Subscription {
	ch := make(chan Event, buffer)
	s := &Subscription{C: ch, ch: ch, hub: h}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) unsubscribe(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

func (h *Hub) Publish(eventType string, data interface{}) {
	ev := Event{Type: eventType, Time: h.now(), Data: data}

	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		s.mu.Lock()
		if !s.closed {
			select {
			case s.ch <- ev:
			default:
			}
		}
		s.mu.Unlock()
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
