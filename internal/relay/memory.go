package relay

import (
	"context"
	"sync"
)

// MemoryStore keeps the relay slot in process memory. Used in tests and when
// no durable handoff across a process restart is wanted.
type MemoryStore struct {
	mu  sync.Mutex
	rec *Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = &rec
	return nil
}

func (s *MemoryStore) Take(_ context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return nil, nil
	}
	rec := *s.rec
	s.rec = nil
	return &rec, nil
}
