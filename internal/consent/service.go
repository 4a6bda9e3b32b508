package consent

import (
	"context"
	"time"

	id "carelink/pkg/domain"
)

// Service persists consent decisions and provides purpose-aware checks. It
// keeps orchestration out of handlers and domain logic thin.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Grant(ctx context.Context, childID id.ChildID, guardianID id.GuardianID, purpose Purpose, ttl time.Duration) (Record, error) {
	now := time.Now()
	record := Record{
		ChildID:    childID,
		GuardianID: guardianID,
		Purpose:    purpose,
		GrantedAt:  now,
	}
	if ttl > 0 {
		record.ExpiresAt = now.Add(ttl)
	}
	if err := s.store.Save(ctx, record); err != nil {
		return Record{}, err
	}
	return record, nil
}

// Require returns an error when consent is missing, revoked or expired. The
// purpose is a plain string at the call site so consumers don't import this
// package's constants transitively.
func (s *Service) Require(ctx context.Context, childID id.ChildID, purpose string, now time.Time) error {
	consents, err := s.store.ListByChild(ctx, childID)
	if err != nil {
		return err
	}
	return EnsureConsent(consents, Purpose(purpose), now)
}

func (s *Service) Revoke(ctx context.Context, childID id.ChildID, purpose Purpose) error {
	return s.store.Revoke(ctx, childID, purpose, time.Now())
}

func (s *Service) ListByChild(ctx context.Context, childID id.ChildID) ([]Record, error) {
	return s.store.ListByChild(ctx, childID)
}
