package hub

import (
	"testing"
	"time"

	"github.com/liurenhao/stagegate/internal/domain"
)

func TestHubRoutesByProject(t *testing.T) {
	h := New()
	a := h.Subscribe("proj-a")
	b := h.Subscribe("proj-b")
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	h.Publish(domain.Event{Project: "proj-a", Type: domain.EventTypeExecutionStarted})

	select {
	case ev := <-a.C:
		if ev.Type != domain.EventTypeExecutionStarted {
			t.Fatalf("unexpected event type %s", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber a should receive the event")
	}

	select {
	case ev := <-b.C:
		t.Fatalf("subscriber b should not receive proj-a events, got %s", ev.Type)
	default:
	}
}

func TestHubFansOutToAllSubscribers(t *testing.T) {
	h := New()
	first := h.Subscribe("proj-a")
	second := h.Subscribe("proj-a")
	defer h.Unsubscribe(first)
	defer h.Unsubscribe(second)

	h.Publish(domain.Event{Project: "proj-a", Type: domain.EventTypeExecutionDelta})

	for _, sub := range []*Subscription{first, second} {
		select {
		case <-sub.C:
		case <-time.After(time.Second):
			t.Fatal("every subscriber should receive the event")
		}
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := New()
	sub := h.Subscribe("proj-a")
	h.Unsubscribe(sub)

	if _, open := <-sub.C; open {
		t.Fatal("unsubscribed channel should be closed")
	}
	if h.SubscriberCount("proj-a") != 0 {
		t.Fatal("subscriber should be removed")
	}

	// Publishing after the last unsubscribe is a no-op.
	h.Publish(domain.Event{Project: "proj-a", Type: domain.EventTypeExecutionCompleted})
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	h := New()
	sub := h.Subscribe("proj-a")
	defer h.Unsubscribe(sub)

	for i := 0; i < subscriberBuffer+10; i++ {
		h.Publish(domain.Event{Project: "proj-a", Type: domain.EventTypeExecutionDelta})
	}

	received := 0
	for {
		select {
		case <-sub.C:
			received++
			continue
		default:
		}
		break
	}
	if received != subscriberBuffer {
		t.Fatalf("expected %d buffered events, got %d", subscriberBuffer, received)
	}
}
