package http

import (
	"context"
	"testing"

	"quiz-session-engine/internal/domain"
)

func TestHubBroadcastOthersSkipsExcluded(t *testing.T) {
	hub := NewHub()
	host, cancelHost := hub.Subscribe("s1", "host")
	defer cancelHost()
	player, cancelPlayer := hub.Subscribe("s1", "p1")
	defer cancelPlayer()
	other, cancelOther := hub.Subscribe("s2", "p2")
	defer cancelOther()

	hub.BroadcastOthers(context.Background(), "s1", "p1", domain.Event{Type: domain.EventParticipantJoined, SessionID: "s1"})

	if got := len(host); got != 1 {
		t.Fatalf("host should receive the event, got %d", got)
	}
	if got := len(player); got != 0 {
		t.Fatalf("excluded observer should not receive the event, got %d", got)
	}
	if got := len(other); got != 0 {
		t.Fatalf("other sessions should not receive the event, got %d", got)
	}
}

func TestHubDropsOldestForSlowObserver(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("s1", "slow")
	defer cancel()

	for i := 0; i < observerBuffer+4; i++ {
		hub.Broadcast(context.Background(), "s1", domain.Event{Type: domain.EventResponseSubmitted, Payload: i})
	}
	if len(ch) != observerBuffer {
		t.Fatalf("expected full buffer of %d, got %d", observerBuffer, len(ch))
	}
	var last domain.Event
	for len(ch) > 0 {
		last = <-ch
	}
	if last.Payload != observerBuffer+3 {
		t.Fatalf("expected newest event to be kept, got %v", last.Payload)
	}
}

func TestHubCancelClosesAndForgets(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("s1", "o1")
	if hub.Observers("s1") != 1 {
		t.Fatalf("expected one observer")
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	if hub.Observers("s1") != 0 {
		t.Fatalf("expected observer to be removed")
	}
	hub.Broadcast(context.Background(), "s1", domain.Event{Type: domain.EventTimeExtended})
}
