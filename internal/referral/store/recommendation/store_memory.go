package recommendation

import (
	"context"
	"sort"
	"sync"

	"carelink/internal/referral/models"
	id "carelink/pkg/domain"
	"carelink/pkg/platform/sentinel"
)

// InMemory keeps recommendations in a mutex-guarded map keyed by referral.
type InMemory struct {
	mu         sync.RWMutex
	byReferral map[id.ReferralID][]models.Recommendation
}

func NewInMemory() *InMemory {
	return &InMemory{byReferral: make(map[id.ReferralID][]models.Recommendation)}
}

// SaveAll writes an AI result batch atomically, replacing any previous batch
// for the referral. Re-recommendation overwrites, it does not append.
func (s *InMemory) SaveAll(_ context.Context, recs []*models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	referralID := recs[0].ReferralID
	batch := make([]models.Recommendation, 0, len(recs))
	for _, rec := range recs {
		batch = append(batch, *rec)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byReferral[referralID] = batch
	return nil
}

// Save updates a single row in place.
func (s *InMemory) Save(_ context.Context, rec *models.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.byReferral[rec.ReferralID]
	for i := range batch {
		if batch[i].ID == rec.ID {
			batch[i] = *rec
			return nil
		}
	}
	s.byReferral[rec.ReferralID] = append(batch, *rec)
	return nil
}

// FindByReferral returns the batch in rank order (1 first).
func (s *InMemory) FindByReferral(_ context.Context, referralID id.ReferralID) ([]*models.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch := s.byReferral[referralID]
	out := make([]*models.Recommendation, 0, len(batch))
	for i := range batch {
		rec := batch[i]
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (s *InMemory) FindByID(_ context.Context, recID id.RecommendationID) (*models.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, batch := range s.byReferral {
		for i := range batch {
			if batch[i].ID == recID {
				rec := batch[i]
				return &rec, nil
			}
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindSelectedByReferral(_ context.Context, referralID id.ReferralID) (*models.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.byReferral[referralID] {
		if rec.Selected {
			out := rec
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) DeleteByReferral(_ context.Context, referralID id.ReferralID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byReferral, referralID)
	return nil
}
