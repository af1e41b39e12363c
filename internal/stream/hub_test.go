package stream

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/myselfgus/vibe/internal/events"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHubDeliversToSessionSubscribers(t *testing.T) {
	h := testHub()
	sub := h.Subscribe("s1")
	other := h.Subscribe("s2")
	defer h.Unsubscribe(sub)
	defer h.Unsubscribe(other)

	h.Publish(context.Background(), events.New(events.EventStatus, "s1", nil))

	select {
	case evt := <-sub.C:
		if evt.Name != events.EventStatus {
			t.Fatalf("unexpected event %s", evt.Name)
		}
	default:
		t.Fatal("subscriber did not receive the event")
	}

	select {
	case evt := <-other.C:
		t.Fatalf("event for s1 leaked to s2 subscriber: %s", evt.Name)
	default:
	}
}

func TestHubDropsEventsWithoutSession(t *testing.T) {
	h := testHub()
	sub := h.Subscribe("s1")
	defer h.Unsubscribe(sub)

	h.Publish(context.Background(), events.New(events.EventHeartbeat, "", nil))
	select {
	case <-sub.C:
		t.Fatal("session-less event should not be delivered")
	default:
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := testHub()
	sub := h.Subscribe("s1")
	h.Unsubscribe(sub)
	h.Unsubscribe(sub) // idempotent

	if _, open := <-sub.C; open {
		t.Fatal("channel should be closed after unsubscribe")
	}
	if n := h.SubscriberCount("s1"); n != 0 {
		t.Fatalf("expected 0 subscribers, got %d", n)
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := testHub()
	sub := h.Subscribe("s1")

	// Fill the buffer without reading, then overflow it.
	for i := 0; i < subscriberBuffer+1; i++ {
		h.Publish(context.Background(), events.New(events.EventStatus, "s1", i))
	}

	if n := h.SubscriberCount("s1"); n != 0 {
		t.Fatalf("slow subscriber should have been dropped, still %d registered", n)
	}

	// Drain: buffered events then close.
	count := 0
	for range sub.C {
		count++
	}
	if count != subscriberBuffer {
		t.Fatalf("expected %d buffered events, got %d", subscriberBuffer, count)
	}
}

func TestHubPublishRacingUnsubscribe(t *testing.T) {
	// Publishers racing subscribe/unsubscribe cycles must never hit a
	// closed channel: the send and the map removal share the hub lock.
	h := testHub()
	stop := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			for {
				select {
				case <-stop:
					return
				default:
					h.Publish(ctx, events.New(events.EventStatus, "s1", nil))
				}
			}
		}()
	}

	for i := 0; i < 5000; i++ {
		sub := h.Subscribe("s1")
		h.Unsubscribe(sub)
	}
	close(stop)
	wg.Wait()

	if n := h.SubscriberCount("s1"); n != 0 {
		t.Fatalf("expected 0 subscribers, got %d", n)
	}
}

func TestHubCloseDropsEverything(t *testing.T) {
	h := testHub()
	sub := h.Subscribe("s1")
	h.Close()

	if _, open := <-sub.C; open {
		t.Fatal("close must close subscriber channels")
	}

	late := h.Subscribe("s1")
	if _, open := <-late.C; open {
		t.Fatal("subscribing after close must yield a closed channel")
	}
}
