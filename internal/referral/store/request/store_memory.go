package request

import (
	"context"
	"sort"
	"sync"
	"time"

	"carelink/internal/referral/models"
	id "carelink/pkg/domain"
	"carelink/pkg/platform/sentinel"
)

// ListFilter narrows and pages a referral listing. Zero Status means all
// statuses; Page is 1-based.
type ListFilter struct {
	Status models.Status
	Page   int
	Limit  int
}

// InMemory keeps referrals in a mutex-guarded map. Used by unit tests and
// local runs; the Postgres store is the production implementation.
type InMemory struct {
	mu        sync.RWMutex
	referrals map[id.ReferralID]models.Referral
}

func NewInMemory() *InMemory {
	return &InMemory{referrals: make(map[id.ReferralID]models.Referral)}
}

func (s *InMemory) Create(_ context.Context, r *models.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.referrals[r.ID]; exists {
		return sentinel.ErrConflict
	}
	s.referrals[r.ID] = *r
	return nil
}

// Update applies a compare-and-swap on Version: the caller's copy must match
// the stored row or the write is rejected with ErrConflict. On success the
// stored (and the caller's) version is incremented.
func (s *InMemory) Update(_ context.Context, r *models.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.referrals[r.ID]
	if !exists {
		return sentinel.ErrNotFound
	}
	if current.Version != r.Version {
		return sentinel.ErrConflict
	}
	r.Version++
	s.referrals[r.ID] = *r
	return nil
}

func (s *InMemory) FindByID(_ context.Context, referralID id.ReferralID) (*models.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, exists := s.referrals[referralID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return models.Restore(r), nil
}

func (s *InMemory) FindByChild(_ context.Context, childID id.ChildID) ([]*models.Referral, error) {
	return s.filter(func(r models.Referral) bool { return r.ChildID == childID }), nil
}

func (s *InMemory) FindByGuardian(_ context.Context, guardianID id.GuardianID) ([]*models.Referral, error) {
	return s.filter(func(r models.Referral) bool { return r.GuardianID == guardianID }), nil
}

func (s *InMemory) FindByInstitution(_ context.Context, institutionID id.InstitutionID) ([]*models.Referral, error) {
	return s.filter(func(r models.Referral) bool { return r.MatchedInstitutionID == institutionID }), nil
}

func (s *InMemory) FindByCounselor(_ context.Context, counselorID id.CounselorID) ([]*models.Referral, error) {
	return s.filter(func(r models.Referral) bool { return r.MatchedCounselorID == counselorID }), nil
}

// List returns one page (newest first) and the total match count.
func (s *InMemory) List(_ context.Context, f ListFilter) ([]*models.Referral, int, error) {
	matches := s.filter(func(r models.Referral) bool {
		return f.Status == "" || r.Status == f.Status
	})
	total := len(matches)

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= total {
		return nil, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}

func (s *InMemory) Delete(_ context.Context, referralID id.ReferralID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.referrals[referralID]; !exists {
		return sentinel.ErrNotFound
	}
	delete(s.referrals, referralID)
	return nil
}

func (s *InMemory) CountByGuardianAndStatus(_ context.Context, guardianID id.GuardianID, status models.Status) (int, error) {
	return len(s.filter(func(r models.Referral) bool {
		return r.GuardianID == guardianID && r.Status == status
	})), nil
}

func (s *InMemory) FindRecentByGuardian(_ context.Context, guardianID id.GuardianID, since time.Time) ([]*models.Referral, error) {
	return s.filter(func(r models.Referral) bool {
		return r.GuardianID == guardianID && !r.CreatedAt.Before(since)
	}), nil
}

func (s *InMemory) filter(keep func(models.Referral) bool) []*models.Referral {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Referral
	for _, r := range s.referrals {
		if keep(r) {
			out = append(out, models.Restore(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
