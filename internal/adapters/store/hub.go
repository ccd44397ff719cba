package store

import (
	"sync"

	"github.com/okian/gridrace/pkg/metrics"
)

// subscriptionBuffer bounds a subscriber's in-flight messages. A stream
// that falls this far behind starts losing deltas, which the next full
// snapshot repairs.
const subscriptionBuffer = 1024

// Subscription is one open channel subscription for a user.
type Subscription struct {
	C      <-chan Message
	c      chan Message
	userID string
	hub    *hub
	once   sync.Once
}

// Close detaches the subscription from the hub.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s.userID, s)
	})
}

// hub fans messages out to per-user subscriber sets.
type hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*Subscription]struct{})}
}

func (h *hub) subscribe(userID string) *Subscription {
	c := make(chan Message, subscriptionBuffer)
	sub := &Subscription{C: c, c: c, userID: userID, hub: h}

	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[userID] = set
	}
	set[sub] = struct{}{}
	n := h.count()
	h.mu.Unlock()

	metrics.UpdateSubscriberCount(n)
	return sub
}

func (h *hub) unsubscribe(userID string, sub *Subscription) {
	h.mu.Lock()
	if set, ok := h.subs[userID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, userID)
		}
	}
	n := h.count()
	h.mu.Unlock()

	metrics.UpdateSubscriberCount(n)
}

func (h *hub) publish(userID string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	metrics.RecordPublish()
	for sub := range h.subs[userID] {
		select {
		case sub.c <- msg:
		default:
			// Slow subscriber; drop rather than stall the transaction.
		}
	}
}

// count returns the total subscriber count. Caller holds the lock.
func (h *hub) count() int {
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}
