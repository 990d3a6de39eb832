package memory

import (
	"context"
	"sync"
)

// CodeRegistry hands out join codes within a single process.
type CodeRegistry struct {
	mu    sync.Mutex
	codes map[string]string
}

func NewCodeRegistry() *CodeRegistry {
	return &CodeRegistry{codes: make(map[string]string)}
}

// Claim reserves code for sessionID. Claiming a code again for the same session succeeds.
func (r *CodeRegistry) Claim(_ context.Context, code, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.codes[code]; ok {
		return owner == sessionID, nil
	}
	r.codes[code] = sessionID
	return true, nil
}

func (r *CodeRegistry) Release(_ context.Context, code, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.codes[code] == sessionID {
		delete(r.codes, code)
	}
	return nil
}
