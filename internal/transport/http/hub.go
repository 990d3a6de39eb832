package http

import (
	"context"
	"sync"

	"quiz-session-engine/internal/domain"
)

const observerBuffer = 16

type observer struct {
	id string
	ch chan domain.Event
}

// Hub is the in-process Broadcaster. Each websocket connection registers as an observer
// of one session; delivery never blocks the caller.
type Hub struct {
	mu        sync.Mutex
	observers map[string]map[*observer]struct{}
}

func NewHub() *Hub {
	return &Hub{observers: make(map[string]map[*observer]struct{})}
}

// Subscribe registers observerID on sessionID. The returned cancel closes the channel.
func (h *Hub) Subscribe(sessionID, observerID string) (<-chan domain.Event, func()) {
	o := &observer{id: observerID, ch: make(chan domain.Event, observerBuffer)}

	h.mu.Lock()
	set, ok := h.observers[sessionID]
	if !ok {
		set = make(map[*observer]struct{})
		h.observers[sessionID] = set
	}
	set[o] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		set, ok := h.observers[sessionID]
		if !ok {
			return
		}
		if _, ok := set[o]; ok {
			delete(set, o)
			close(o.ch)
		}
		if len(set) == 0 {
			delete(h.observers, sessionID)
		}
	}
	return o.ch, cancel
}

// Observers reports how many observers are attached to a session.
func (h *Hub) Observers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers[sessionID])
}

func (h *Hub) Broadcast(_ context.Context, sessionID string, event domain.Event) {
	h.deliver(sessionID, "", event)
}

func (h *Hub) BroadcastOthers(_ context.Context, sessionID, excludeObserverID string, event domain.Event) {
	h.deliver(sessionID, excludeObserverID, event)
}

func (h *Hub) deliver(sessionID, exclude string, event domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for o := range h.observers[sessionID] {
		if exclude != "" && o.id == exclude {
			continue
		}
		select {
		case o.ch <- event:
		default:
			// slow observer: drop its oldest event
			select {
			case <-o.ch:
			default:
			}
			select {
			case o.ch <- event:
			default:
			}
		}
	}
}
