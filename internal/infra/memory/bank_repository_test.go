package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quiz-session-engine/internal/domain"
)

type countingLoader struct {
	calls atomic.Int32
	bank  domain.QuestionBank
	delay time.Duration
}

func (l *countingLoader) LoadBank(_ context.Context, bankID string) (domain.QuestionBank, error) {
	l.calls.Add(1)
	time.Sleep(l.delay)
	if bankID != l.bank.ID {
		return domain.QuestionBank{}, domain.ErrBankNotFound
	}
	return l.bank, nil
}

func testBank() domain.QuestionBank {
	return domain.QuestionBank{
		ID: "bank-1",
		Questions: []domain.Question{
			{ID: "q1", Options: []domain.Option{{ID: "a"}, {ID: "b"}}},
		},
	}
}

func TestBankRepositoryCachesUntilTTL(t *testing.T) {
	loader := &countingLoader{bank: testBank()}
	repo := NewBankRepository(loader, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := repo.GetBank(context.Background(), "bank-1"); err != nil {
			t.Fatalf("get bank: %v", err)
		}
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected one load, got %d", loader.calls.Load())
	}

	// past the TTL plus the maximum jitter
	now = now.Add(time.Minute + 7*time.Second)
	if _, err := repo.GetBank(context.Background(), "bank-1"); err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after ttl, got %d", loader.calls.Load())
	}

	repo.Invalidate("bank-1")
	if _, err := repo.GetBank(context.Background(), "bank-1"); err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if loader.calls.Load() != 3 {
		t.Fatalf("expected reload after invalidate, got %d", loader.calls.Load())
	}
}

func TestBankRepositoryCollapsesConcurrentLoads(t *testing.T) {
	loader := &countingLoader{bank: testBank(), delay: 50 * time.Millisecond}
	repo := NewBankRepository(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.GetBank(context.Background(), "bank-1"); err != nil {
				t.Errorf("get bank: %v", err)
			}
		}()
	}
	wg.Wait()
	if loader.calls.Load() != 1 {
		t.Fatalf("expected singleflight to collapse loads, got %d", loader.calls.Load())
	}
}

func TestBankRepositoryReturnsCopies(t *testing.T) {
	repo := NewBankRepository(&countingLoader{bank: testBank()}, time.Minute)
	first, err := repo.GetBank(context.Background(), "bank-1")
	if err != nil {
		t.Fatalf("get bank: %v", err)
	}
	first.Questions[0].Options[0], first.Questions[0].Options[1] = first.Questions[0].Options[1], first.Questions[0].Options[0]

	second, _ := repo.GetBank(context.Background(), "bank-1")
	if second.Questions[0].Options[0].ID != "a" {
		t.Fatalf("cached bank was mutated through a returned copy")
	}
}

func TestBankRepositoryMissingBank(t *testing.T) {
	repo := NewBankRepository(&countingLoader{bank: testBank()}, time.Minute)
	if _, err := repo.GetBank(context.Background(), "nope"); !errors.Is(err, domain.ErrBankNotFound) {
		t.Fatalf("expected bank not found, got %v", err)
	}
}
