package report

import (
	"context"
	"sort"
	"sync"

	"carelink/internal/report/models"
	id "carelink/pkg/domain"
	"carelink/pkg/platform/sentinel"
)

// ListFilter pages reports by status. Page is 1-based.
type ListFilter struct {
	Status models.Status
	Page   int
	Limit  int
}

// InMemory keeps session reports in a mutex-guarded map.
type InMemory struct {
	mu      sync.RWMutex
	reports map[id.ReportID]models.SessionReport
}

func NewInMemory() *InMemory {
	return &InMemory{reports: make(map[id.ReportID]models.SessionReport)}
}

func (s *InMemory) Create(_ context.Context, r *models.SessionReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[r.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.reports {
		if existing.ReferralID == r.ReferralID && existing.SessionNumber == r.SessionNumber {
			return sentinel.ErrConflict
		}
	}
	s.reports[r.ID] = *r
	return nil
}

// Update applies a compare-and-swap on Version, mirroring the Postgres store.
func (s *InMemory) Update(_ context.Context, r *models.SessionReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.reports[r.ID]
	if !exists {
		return sentinel.ErrNotFound
	}
	if current.Version != r.Version {
		return sentinel.ErrConflict
	}
	r.Version++
	s.reports[r.ID] = *r
	return nil
}

func (s *InMemory) FindByID(_ context.Context, reportID id.ReportID) (*models.SessionReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, exists := s.reports[reportID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return models.Restore(r), nil
}

func (s *InMemory) FindByReferralAndSession(_ context.Context, referralID id.ReferralID, sessionNumber int) (*models.SessionReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reports {
		if r.ReferralID == referralID && r.SessionNumber == sessionNumber {
			return models.Restore(r), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// FindByReferral returns all session reports for a referral in session order.
func (s *InMemory) FindByReferral(_ context.Context, referralID id.ReferralID) ([]*models.SessionReport, error) {
	out := s.filter(func(r models.SessionReport) bool { return r.ReferralID == referralID })
	sort.Slice(out, func(i, j int) bool { return out[i].SessionNumber < out[j].SessionNumber })
	return out, nil
}

func (s *InMemory) FindByChild(_ context.Context, childID id.ChildID) ([]*models.SessionReport, error) {
	return s.filter(func(r models.SessionReport) bool { return r.ChildID == childID }), nil
}

func (s *InMemory) FindByCounselor(_ context.Context, counselorID id.CounselorID) ([]*models.SessionReport, error) {
	return s.filter(func(r models.SessionReport) bool { return r.CounselorID == counselorID }), nil
}

// List returns one page (newest first) and the total match count.
func (s *InMemory) List(_ context.Context, f ListFilter) ([]*models.SessionReport, int, error) {
	matches := s.filter(func(r models.SessionReport) bool {
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

func (s *InMemory) Delete(_ context.Context, reportID id.ReportID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[reportID]; !exists {
		return sentinel.ErrNotFound
	}
	delete(s.reports, reportID)
	return nil
}

// NextSessionNumber returns max(sessionNumber)+1 for the referral, starting
// at 1. Advisory only: creation still races, the unique constraint decides.
func (s *InMemory) NextSessionNumber(_ context.Context, referralID id.ReferralID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	next := 1
	for _, r := range s.reports {
		if r.ReferralID == referralID && r.SessionNumber >= next {
			next = r.SessionNumber + 1
		}
	}
	return next, nil
}

func (s *InMemory) CountByReferral(_ context.Context, referralID id.ReferralID) (int, error) {
	return len(s.filter(func(r models.SessionReport) bool { return r.ReferralID == referralID })), nil
}

func (s *InMemory) filter(keep func(models.SessionReport) bool) []*models.SessionReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.SessionReport
	for _, r := range s.reports {
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
