package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/myselfgus/vibe/internal/events"
)

const subscriberBuffer = 64

// Subscription is one live listener on a session's event feed. C is closed
// when the subscriber is dropped or the hub shuts down.
type Subscription struct {
	C chan events.Event

	sessionID string
	closeOnce sync.Once
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.C) })
}

// Hub fans session events out to SSE subscribers. Publish never blocks the
// generation pipeline: a subscriber that cannot keep up with its buffer is
// dropped.
type Hub struct {
	log *slog.Logger

	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:  log,
		subs: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a listener for one session's events.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	sub := &Subscription{
		C:         make(chan events.Event, subscriberBuffer),
		sessionID: sessionID,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.close()
		return sub
	}
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe removes the listener and closes its channel. Idempotent.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	if set, ok := h.subs[sub.sessionID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.sessionID)
		}
	}
	h.mu.Unlock()
	sub.close()
}

// Publish delivers an event to the session's subscribers. Install it as the
// process-wide sink with events.SetEmitter(hub.Publish). Events without a
// session id are dropped; nobody can subscribe to them.
func (h *Hub) Publish(ctx context.Context, evt events.Event) {
	if evt.SessionID == "" {
		return
	}

	// The buffered send happens under the lock: a channel is only ever
	// closed after its subscription left the map, so no close can race a
	// send here.
	var dropped []*Subscription
	h.mu.Lock()
	set := h.subs[evt.SessionID]
	for sub := range set {
		select {
		case sub.C <- evt:
		default:
			delete(set, sub)
			dropped = append(dropped, sub)
		}
	}
	if len(set) == 0 {
		delete(h.subs, evt.SessionID)
	}
	h.mu.Unlock()

	for _, sub := range dropped {
		h.log.Warn("dropping slow stream subscriber", "session", evt.SessionID, "event", evt.Name)
		sub.close()
	}
}

// SubscriberCount reports the live listeners for a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// Close drops every subscriber. Further Subscribe calls get an already
// closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	all := h.subs
	h.subs = make(map[string]map[*Subscription]struct{})
	h.mu.Unlock()

	for _, set := range all {
		for sub := range set {
			sub.close()
		}
	}
}
