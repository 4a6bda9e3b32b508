// Package psychstatus keeps the append-only psychological-risk status log per
// child. Entries are never edited; the latest entry wins on read.
package psychstatus

import (
	"context"
	"sort"
	"sync"
	"time"

	id "carelink/pkg/domain"
	dErrors "carelink/pkg/domain-errors"
)

// Level grades a child's current psychological-risk standing.
type Level string

const (
	LevelObservation Level = "observation"
	LevelCaution     Level = "caution"
	LevelRisk        Level = "risk"
	LevelHighRisk    Level = "high_risk"
)

func (l Level) Valid() bool {
	switch l {
	case LevelObservation, LevelCaution, LevelRisk, LevelHighRisk:
		return true
	}
	return false
}

// Entry is one recorded status observation.
type Entry struct {
	ChildID    id.ChildID
	Level      Level
	Note       string
	RecordedBy string
	RecordedAt time.Time
}

// Store is the persistence surface for the status log.
type Store interface {
	Append(ctx context.Context, e Entry) error
	ListByChild(ctx context.Context, childID id.ChildID) ([]Entry, error)
}

// Service records and reads risk statuses.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Record appends a status observation for the child.
func (s *Service) Record(ctx context.Context, childID id.ChildID, level Level, note, recordedBy string, now time.Time) (Entry, error) {
	if childID == "" {
		return Entry{}, dErrors.New(dErrors.CodeValidation, "child id is required")
	}
	if !level.Valid() {
		return Entry{}, dErrors.Newf(dErrors.CodeValidation, "unknown risk level %q", level)
	}
	e := Entry{
		ChildID:    childID,
		Level:      level,
		Note:       note,
		RecordedBy: recordedBy,
		RecordedAt: now,
	}
	if err := s.store.Append(ctx, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Latest returns the most recent observation for the child.
func (s *Service) Latest(ctx context.Context, childID id.ChildID) (Entry, error) {
	entries, err := s.store.ListByChild(ctx, childID)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, dErrors.Newf(dErrors.CodeNotFound, "no risk status recorded for child %s", childID)
	}
	latest := entries[0]
	for _, e := range entries[1:] {
		if e.RecordedAt.After(latest.RecordedAt) {
			latest = e
		}
	}
	return latest, nil
}

// History returns every observation for the child, oldest first.
func (s *Service) History(ctx context.Context, childID id.ChildID) ([]Entry, error) {
	entries, err := s.store.ListByChild(ctx, childID)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].RecordedAt.Before(entries[j].RecordedAt) })
	return entries, nil
}

// InMemoryStore keeps the log in memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	byChild map[id.ChildID][]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byChild: make(map[id.ChildID][]Entry)}
}

func (s *InMemoryStore) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byChild[e.ChildID] = append(s.byChild[e.ChildID], e)
	return nil
}

func (s *InMemoryStore) ListByChild(_ context.Context, childID id.ChildID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.byChild[childID]
	if !ok {
		return nil, nil
	}
	return append([]Entry(nil), entries...), nil
}
