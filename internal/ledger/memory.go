package ledger

import (
	"context"
	"sync"

	"jangbu/internal/core"
)

// MemoryStore is the session-scoped ledger backend: rows live for the
// process lifetime and vanish on restart. It is also the test double for
// the SQLite store.
type MemoryStore struct {
	mu       sync.Mutex
	receipts []core.Receipt
	byID     map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]bool)}
}

func (s *MemoryStore) Append(ctx context.Context, r core.Receipt) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byID[r.Summary.ID] {
		return false, nil
	}
	s.byID[r.Summary.ID] = true
	s.receipts = append(s.receipts, r)
	return true, nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.receipts = nil
	s.byID = make(map[string]bool)
	return nil
}

// Snapshot returns a copy; callers may not mutate ledger rows in place.
func (s *MemoryStore) Snapshot(ctx context.Context) ([]core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Receipt, len(s.receipts))
	copy(out, s.receipts)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
