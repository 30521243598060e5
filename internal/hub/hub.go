// Package hub fans execution progress events out to in-process subscribers.
// Delivery is best effort: a slow subscriber loses events rather than
// blocking the executor.
package hub

import (
	"log"
	"sync"

	"github.com/liurenhao/stagegate/internal/domain"
)

const subscriberBuffer = 64

// Subscription is one listener on a project's event stream.
type Subscription struct {
	C       <-chan domain.Event
	ch      chan domain.Event
	project string
}

// Hub routes events to subscribers keyed by project.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a listener for a project's events.
func (h *Hub) Subscribe(project string) *Subscription {
	sub := &Subscription{ch: make(chan domain.Event, subscriberBuffer), project: project}
	sub.C = sub.ch

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[project] == nil {
		h.subs[project] = make(map[*Subscription]struct{})
	}
	h.subs[project][sub] = struct{}{}
	return sub
}

// Unsubscribe removes a listener and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[sub.project]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.project)
	}
	close(sub.ch)
}

// Publish delivers an event to every subscriber of its project. Full
// subscriber buffers drop the event.
func (h *Hub) Publish(event domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[event.Project] {
		select {
		case sub.ch <- event:
		default:
			log.Printf("WARN: dropping event %s for slow subscriber on project %s", event.Type, event.Project)
		}
	}
}

// SubscriberCount reports the number of listeners on a project.
func (h *Hub) SubscriberCount(project string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[project])
}
