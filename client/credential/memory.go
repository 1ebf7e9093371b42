package credential

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	pair *Pair
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(_ context.Context) (*Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pair == nil {
		return nil, nil
	}
	p := *s.pair
	return &p, nil
}

func (s *MemoryStore) Set(_ context.Context, p Pair) error {
	if err := validate(p); err != nil {
		return err
	}
	s.mu.Lock()
	s.pair = &p
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.pair = nil
	s.mu.Unlock()
	return nil
}
