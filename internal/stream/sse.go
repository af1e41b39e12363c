package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/myselfgus/vibe/internal/events"
	"github.com/myselfgus/vibe/internal/models"
)

// ServeSSE streams a session's events to one HTTP client until the session
// reaches a terminal status, the client disconnects, or a write fails.
//
// The wire order is fixed: a connected frame, the current status snapshot,
// then live events. Consecutive identical status payloads are collapsed so
// pollers behind the hub don't spam subscribers, and heartbeat frames go
// out at a fixed interval independent of traffic.
//
// The snapshot callback runs after the subscription is registered, so a
// terminal status landing between the two shows up in one or the other and
// the stream always ends with a terminal status frame.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, sessionID string, snapshot func() (models.SessionView, error), heartbeat time.Duration) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}

	sub := h.Subscribe(sessionID)
	defer h.Unsubscribe(sub)

	initial, err := snapshot()
	if err != nil {
		h.log.Error("load session snapshot for stream", "session", sessionID, "error", err)
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var lastStatus string
	write := func(evt events.Event) error {
		data, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Name, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	// writeStatus collapses duplicates; returns false on write failure.
	writeStatus := func(evt events.Event) bool {
		payload, err := json.Marshal(evt.Payload)
		if err != nil {
			h.log.Error("encode status payload", "session", sessionID, "error", err)
			return true
		}
		if string(payload) == lastStatus {
			return true
		}
		lastStatus = string(payload)
		return write(evt) == nil
	}

	if err := write(events.New(events.EventConnected, sessionID, nil)); err != nil {
		return
	}
	if !writeStatus(events.New(events.EventStatus, sessionID, initial)) {
		return
	}
	if initial.Status.Terminal() {
		return
	}

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := write(events.New(events.EventHeartbeat, sessionID, nil)); err != nil {
				return
			}
		case evt, open := <-sub.C:
			if !open {
				return
			}
			if evt.Name == events.EventStatus {
				if !writeStatus(evt) {
					return
				}
				if viewTerminal(evt.Payload) {
					return
				}
				continue
			}
			if err := write(evt); err != nil {
				return
			}
		}
	}
}

func viewTerminal(payload any) bool {
	switch v := payload.(type) {
	case models.SessionView:
		return v.Status.Terminal()
	case *models.SessionView:
		return v != nil && v.Status.Terminal()
	default:
		return false
	}
}
