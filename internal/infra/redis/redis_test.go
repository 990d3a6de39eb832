package redis

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"quiz-session-engine/internal/domain"
	"quiz-session-engine/internal/infra/memory"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type countingLoader struct {
	memory.BankLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadBank(ctx context.Context, bankID string) (domain.QuestionBank, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.BankLoader.LoadBank(ctx, bankID)
}

func sampleBank() domain.QuestionBank {
	return domain.QuestionBank{
		ID:   "bank-1",
		Name: "Capitals",
		Questions: []domain.Question{
			{
				ID:       "q1",
				Type:     domain.MultipleChoice,
				Text:     "Capital of Vietnam?",
				Points:   100,
				IsActive: true,
				Options: []domain.Option{
					{ID: "o1", Text: "Hanoi", Correct: true},
					{ID: "o2", Text: "Hue"},
				},
			},
			{
				ID:              "q2",
				Type:            domain.PinOnMap,
				Text:            "Pin Saigon",
				Points:          200,
				IsActive:        true,
				CorrectLocation: &domain.Coordinate{Latitude: 10.77, Longitude: 106.7},
			},
		},
	}
}

func TestBankRepositoryCachesInRedis(t *testing.T) {
	mr, client := newClient(t)
	loader := &countingLoader{BankLoader: memory.NewStaticBankLoader(map[string]domain.QuestionBank{"bank-1": sampleBank()})}
	repo := NewBankRepository(client, loader, time.Minute, zerolog.Nop())

	bank, err := repo.GetBank(context.Background(), "bank-1")
	if err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if loader.calls != 1 || len(bank.Questions) != 2 {
		t.Fatalf("expected one load with 2 questions, got calls=%d questions=%d", loader.calls, len(bank.Questions))
	}
	if !mr.Exists("quiz:bank:bank-1") {
		t.Fatalf("expected bank cached in redis")
	}
	if ttl := mr.TTL("quiz:bank:bank-1"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with up to 10%% jitter, got %s", ttl)
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.GetBank(context.Background(), "bank-1")
	if err != nil {
		t.Fatalf("get cached bank: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached.Questions[1].CorrectLocation == nil || cached.Questions[0].Options[0].Text != "Hanoi" {
		t.Fatalf("cached bank lost detail: %+v", cached.Questions)
	}

	if err := repo.Invalidate(context.Background(), "bank-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = repo.GetBank(context.Background(), "bank-1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, calls=%d", loader.calls)
	}

	if _, err := repo.GetBank(context.Background(), "missing"); err != domain.ErrBankNotFound {
		t.Fatalf("expected bank not found, got %v", err)
	}
}

func TestCodeRegistryClaim(t *testing.T) {
	mr, client := newClient(t)
	codes := NewCodeRegistry(client, time.Hour)
	ctx := context.Background()

	ok, err := codes.Claim(ctx, "123456", "s1")
	if err != nil || !ok {
		t.Fatalf("first claim: %v ok=%v", err, ok)
	}
	if ok, _ := codes.Claim(ctx, "123456", "s2"); ok {
		t.Fatalf("expected second session to be refused")
	}
	if ok, _ := codes.Claim(ctx, "123456", "s1"); !ok {
		t.Fatalf("expected reclaim by owner to succeed")
	}

	mr.FastForward(2 * time.Hour)
	if ok, _ := codes.Claim(ctx, "123456", "s2"); !ok {
		t.Fatalf("expected expired code to be claimable")
	}
}

func TestCodeRegistryReleaseOnlyByOwner(t *testing.T) {
	mr, client := newClient(t)
	codes := NewCodeRegistry(client, time.Hour)
	ctx := context.Background()

	if ok, _ := codes.Claim(ctx, "654321", "s1"); !ok {
		t.Fatalf("claim failed")
	}
	if err := codes.Release(ctx, "654321", "s2"); err != nil {
		t.Fatalf("release by stranger: %v", err)
	}
	if !mr.Exists("quiz:code:654321") {
		t.Fatalf("expected code kept after release by another session")
	}
	if err := codes.Release(ctx, "654321", "s1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists("quiz:code:654321") {
		t.Fatalf("expected code key removed")
	}
	if ok, _ := codes.Claim(ctx, "654321", "s2"); !ok {
		t.Fatalf("expected released code to be claimable")
	}
	if err := codes.Release(ctx, "000000", "s1"); err != nil {
		t.Fatalf("release of unknown code: %v", err)
	}
}

type sink struct {
	mu       sync.Mutex
	events   []domain.Event
	excluded []string
	got      chan struct{}
}

func (s *sink) Broadcast(_ context.Context, _ string, event domain.Event) {
	s.record(event, "")
}

func (s *sink) BroadcastOthers(_ context.Context, _ string, exclude string, event domain.Event) {
	s.record(event, exclude)
}

func (s *sink) record(event domain.Event, exclude string) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.excluded = append(s.excluded, exclude)
	s.mu.Unlock()
	s.got <- struct{}{}
}

func TestEventBusRoundTrip(t *testing.T) {
	_, client := newClient(t)
	local := &sink{got: make(chan struct{}, 4)}
	bus := NewEventBus(client, local, "", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := bus.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	bus.Broadcast(ctx, "s1", domain.Event{
		Type:      domain.EventSessionStatusChanged,
		SessionID: "s1",
		Payload:   domain.SessionStatusChangedPayload{Status: domain.StatusInProgress},
	})
	bus.BroadcastOthers(ctx, "s1", "obs-1", domain.Event{
		Type:      domain.EventParticipantJoined,
		SessionID: "s1",
		Payload:   domain.ParticipantJoinedPayload{DisplayName: "Alice"},
	})

	for i := 0; i < 2; i++ {
		select {
		case <-local.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i+1)
		}
	}

	local.mu.Lock()
	defer local.mu.Unlock()
	if local.events[0].Type != domain.EventSessionStatusChanged || local.excluded[0] != "" {
		t.Fatalf("unexpected first event %+v", local.events[0])
	}
	var status domain.SessionStatusChangedPayload
	if err := json.Unmarshal(local.events[0].Payload.(json.RawMessage), &status); err != nil || status.Status != domain.StatusInProgress {
		t.Fatalf("payload did not survive the trip: %v %+v", err, status)
	}
	if local.events[1].Type != domain.EventParticipantJoined || local.excluded[1] != "obs-1" {
		t.Fatalf("expected exclusion to survive the trip, got %+v / %q", local.events[1], local.excluded[1])
	}
}
