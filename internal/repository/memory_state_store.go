package repository

import (
	"context"
	"sync"

	domrepo "RegimeFlow/internal/domain/repository"
)

// MemoryStateStore keeps the snapshot in process memory. Used when Redis is
// disabled; state does not survive a restart.
type MemoryStateStore struct {
	mu  sync.Mutex
	raw []byte
}

func NewMemoryStateStore() domrepo.StateStore {
	return &MemoryStateStore{}
}

func (s *MemoryStateStore) Save(_ context.Context, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = append(s.raw[:0], raw...)
	return nil
}

func (s *MemoryStateStore) Load(_ context.Context) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw == nil {
		return nil, false, nil
	}
	out := make([]byte, len(s.raw))
	copy(out, s.raw)
	return out, true, nil
}
