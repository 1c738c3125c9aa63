package relay

import (
	"errors"
	"log/slog"
	"sync"
)

// DefaultSubscriberBuffer is the per-subscriber queue length used when
// NewHub is given a non-positive capacity.
const DefaultSubscriberBuffer = 256

var (
	// ErrSlowSubscriber is reported by Subscription.Err when the hub dropped
	// the subscription because its queue was full at publish time.
	ErrSlowSubscriber = errors.New("relay: subscriber queue overflow")
	// ErrSubscriptionClosed is reported by Subscription.Err after Close.
	ErrSubscriptionClosed = errors.New("relay: subscription closed")
)

// Hub fans every published Message out to all registered subscriptions.
// Publishes are serialized, so every subscription observes the same relative
// order of messages.
type Hub struct {
	mu       sync.Mutex
	subs     map[*Subscription]struct{}
	capacity int
	logger   *slog.Logger
}

// NewHub creates a Hub whose subscriptions each buffer up to capacity
// undelivered messages.
func NewHub(capacity int, logger *slog.Logger) *Hub {
	if capacity <= 0 {
		capacity = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:     make(map[*Subscription]struct{}),
		capacity: capacity,
		logger:   logger,
	}
}

// Subscription is a receive-only view onto the hub's message stream.
type Subscription struct {
	hub *Hub
	ch  chan Message
	err error // guarded by hub.mu
}

// C returns the channel messages are delivered on. It is closed when the
// subscription ends, after any messages still queued.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Err reports why the subscription ended, or nil while it is active.
func (s *Subscription) Err() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.err
}

// Close removes the subscription from the hub. It is safe to call more than
// once and concurrently with Publish.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.removeLocked(s, ErrSubscriptionClosed)
}

// Subscribe registers a new subscription. It receives every message
// published after Subscribe returns; earlier messages are not replayed.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{
		hub: h,
		ch:  make(chan Message, h.capacity),
	}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()

	h.logger.Debug("subscription added", "subscribers", count)
	return s
}

// Publish queues msg on every registered subscription and returns how many
// queues accepted it. It never waits on a subscriber: a subscription whose
// queue is full is dropped and ends with ErrSlowSubscriber.
func (h *Hub) Publish(msg Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for s := range h.subs {
		select {
		case s.ch <- msg:
			delivered++
		default:
			h.removeLocked(s, ErrSlowSubscriber)
			h.logger.Warn("subscriber dropped due to full queue",
				"capacity", h.capacity, "subscribers", len(h.subs))
		}
	}
	return delivered
}

// Len returns the number of registered subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) removeLocked(s *Subscription, reason error) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	s.err = reason
	close(s.ch)
}
