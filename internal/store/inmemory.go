package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu           sync.RWMutex
	turns        map[string][]Turn
	dispositions map[string]Disposition
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		turns:        make(map[string][]Turn),
		dispositions: make(map[string]Disposition),
	}
}

func (s *InMemoryStore) AppendTurn(_ context.Context, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	s.turns[turn.CallID] = append(s.turns[turn.CallID], turn)
	return nil
}

func (s *InMemoryStore) WriteDisposition(_ context.Context, d Disposition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dispositions[d.CallID]; ok {
		return ErrDispositionExists
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	s.dispositions[d.CallID] = d
	return nil
}

func (s *InMemoryStore) Turns(_ context.Context, callID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.turns[callID]
	out := make([]Turn, len(arr))
	copy(out, arr)
	return out, nil
}

func (s *InMemoryStore) DispositionFor(_ context.Context, callID string) (Disposition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dispositions[callID]
	if !ok {
		return Disposition{}, ErrNoDisposition
	}
	return d, nil
}

func (s *InMemoryStore) Close() error { return nil }
