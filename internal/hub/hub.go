// Package hub fans decoded frames out to channel subscribers, keyed by
// session. A slow subscriber never blocks the publisher: its frame is
// dropped and counted instead.
package hub

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/smartcart-io/cartd/internal/obs"
	"github.com/smartcart-io/cartd/internal/wire"
)

var (
	ErrHubClosed          = errors.New("hub closed")
	ErrSubscriberExists   = errors.New("subscriber already registered")
	ErrSubscriberNotFound = errors.New("subscriber not found")
)

// Stats counts delivery outcomes for one subscriber.
type Stats struct {
	Sent    uint64
	Dropped uint64
}

type subscriber struct {
	id        string
	sessionID string
	ch        chan<- wire.Message
	sent      uint64
	dropped   uint64
}

// Hub routes frames to subscribers of a session. The empty session ID
// subscribes to every session.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool
}

func New() *Hub {
	return &Hub{subscribers: make(map[string]*subscriber)}
}

// Subscribe registers ch for frames of sessionID. An empty sessionID
// receives frames from all sessions.
func (h *Hub) Subscribe(id, sessionID string, ch chan<- wire.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	if _, ok := h.subscribers[id]; ok {
		return ErrSubscriberExists
	}
	if ch == nil {
		return errors.New("nil channel")
	}
	h.subscribers[id] = &subscriber{id: id, sessionID: sessionID, ch: ch}
	return nil
}

// Unsubscribe removes a subscriber. The caller owns the channel and
// closes it afterwards if needed.
func (h *Hub) Unsubscribe(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[id]; !ok {
		return ErrSubscriberNotFound
	}
	delete(h.subscribers, id)
	return nil
}

// Broadcast delivers msg to every subscriber of sessionID without
// blocking. Implements the service broadcaster.
func (h *Hub) Broadcast(sessionID string, msg wire.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, sub := range h.subscribers {
		if sub.sessionID != "" && sub.sessionID != sessionID {
			continue
		}
		select {
		case sub.ch <- msg:
			atomic.AddUint64(&sub.sent, 1)
		default:
			if atomic.AddUint64(&sub.dropped, 1)%100 == 1 {
				obs.Logger.Warn("hub subscriber lagging, dropping frames",
					"subscriber", sub.id, "session_id", sessionID)
			}
		}
	}
}

// Stats returns delivery counters for a subscriber.
func (h *Hub) Stats(id string) (Stats, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sub, ok := h.subscribers[id]
	if !ok {
		return Stats{}, ErrSubscriberNotFound
	}
	return Stats{
		Sent:    atomic.LoadUint64(&sub.sent),
		Dropped: atomic.LoadUint64(&sub.dropped),
	}, nil
}

// Close drops all subscribers; further broadcasts are discarded.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.subscribers = nil
}
