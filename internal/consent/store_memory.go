package consent

import (
	"context"
	"sync"
	"time"

	id "carelink/pkg/domain"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	consents map[id.ChildID][]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{consents: make(map[id.ChildID][]Record)}
}

func (s *InMemoryStore) Save(_ context.Context, consent Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents[consent.ChildID] = append(s.consents[consent.ChildID], consent)
	return nil
}

func (s *InMemoryStore) ListByChild(_ context.Context, childID id.ChildID) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Record{}, s.consents[childID]...), nil
}

func (s *InMemoryStore) Revoke(_ context.Context, childID id.ChildID, purpose Purpose, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.consents[childID]
	for i := range records {
		if records[i].Purpose == purpose {
			records[i].RevokedAt = &revokedAt
		}
	}
	s.consents[childID] = records
	return nil
}
