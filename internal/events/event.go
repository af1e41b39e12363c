package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event names pushed to stream subscribers.
const (
	EventConnected      = "connected"
	EventStatus         = "status"
	EventHeartbeat      = "heartbeat"
	EventError          = "error"
	EventPhaseCompleted = "phase_completed"
	EventPhaseFailed    = "phase_failed"
)

// Event is one backend event payload, JSON-serializable end to end.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SessionID string    `json:"sessionId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

type contextKey string

const sessionContextKey contextKey = "vibe/events/session"

// WithSession returns a derived context annotated with the given session id
// so event emitters can automatically scope payloads.
func WithSession(ctx context.Context, sessionID string) context.Context {
	if strings.TrimSpace(sessionID) == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionContextKey, sessionID)
}

// SessionFromContext extracts the session id associated with ctx.
func SessionFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(sessionContextKey).(string); ok {
		return v
	}
	return ""
}

// New creates an event with a fresh id and timestamp.
func New(name, sessionID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Name:      name,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}
