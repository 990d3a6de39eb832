package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-session-engine/internal/domain"
)

// BankLoader fetches question banks from a backing store (e.g., Postgres).
type BankLoader interface {
	LoadBank(ctx context.Context, bankID string) (domain.QuestionBank, error)
}

// BankRepository caches question banks with TTL to avoid repeated DB hits.
type BankRepository struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedBank
}

type cachedBank struct {
	bank      domain.QuestionBank
	expiresAt time.Time
}

func NewBankRepository(loader BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedBank),
	}
}

// GetBank returns a copy of the bank, so sessions may reorder it freely.
func (r *BankRepository) GetBank(ctx context.Context, bankID string) (domain.QuestionBank, error) {
	if bank, ok := r.cached(bankID, r.clock()); ok {
		return cloneBank(bank), nil
	}

	result, err, _ := r.sf.Do(bankID, func() (interface{}, error) {
		now := r.clock()
		if bank, ok := r.cached(bankID, now); ok {
			return bank, nil
		}
		bank, err := r.loader.LoadBank(ctx, bankID)
		if err != nil {
			return domain.QuestionBank{}, err
		}
		expiresAt := now.Add(r.ttlWithJitter())
		r.mu.Lock()
		r.cache[bankID] = cachedBank{bank: bank, expiresAt: expiresAt}
		r.mu.Unlock()
		return bank, nil
	})
	if err != nil {
		return domain.QuestionBank{}, err
	}
	return cloneBank(result.(domain.QuestionBank)), nil
}

func (r *BankRepository) cached(bankID string, now time.Time) (domain.QuestionBank, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[bankID]
	if !ok || !entry.expiresAt.After(now) {
		return domain.QuestionBank{}, false
	}
	return entry.bank, true
}

// Invalidate drops a cached bank, e.g. after it was edited.
func (r *BankRepository) Invalidate(bankID string) {
	r.mu.Lock()
	delete(r.cache, bankID)
	r.mu.Unlock()
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func cloneBank(bank domain.QuestionBank) domain.QuestionBank {
	out := bank
	out.Questions = make([]domain.Question, len(bank.Questions))
	for i, q := range bank.Questions {
		out.Questions[i] = q.Clone()
	}
	return out
}

// StaticBankLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticBankLoader struct {
	banks map[string]domain.QuestionBank
}

func NewStaticBankLoader(banks map[string]domain.QuestionBank) *StaticBankLoader {
	return &StaticBankLoader{banks: banks}
}

func (l *StaticBankLoader) LoadBank(_ context.Context, bankID string) (domain.QuestionBank, error) {
	if bank, ok := l.banks[bankID]; ok {
		return bank, nil
	}
	return domain.QuestionBank{}, domain.ErrBankNotFound
}

// GetBank lets the static loader serve as an uncached bank source.
func (l *StaticBankLoader) GetBank(ctx context.Context, bankID string) (domain.QuestionBank, error) {
	bank, err := l.LoadBank(ctx, bankID)
	if err != nil {
		return domain.QuestionBank{}, err
	}
	return cloneBank(bank), nil
}
