package service

import (
	"context"

	"carelink/internal/audit"
	"carelink/internal/referral/models"
	id "carelink/pkg/domain"
	"carelink/pkg/requestcontext"
)

// ForceStatus is the operator escape hatch. The aggregate enforces the guards
// (substantive reason, COMPLETED protected both ways); this layer persists and
// records who forced what, with the reason, in the audit trail.
func (s *Service) ForceStatus(ctx context.Context, referralID id.ReferralID, newStatus models.Status, reason string) (*models.Referral, error) {
	ctx, span := s.tracer.Start(ctx, "referral.ForceStatus")
	defer span.End()

	r, err := s.load(ctx, referralID)
	if err != nil {
		return nil, err
	}
	from := r.Status
	if err := r.ForceStatus(newStatus, reason, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.update(ctx, r); err != nil {
		return nil, err
	}

	s.metrics.IncrementTransition(string(newStatus))
	s.auditor.Emit(ctx, audit.Event{
		Entity:   "referral",
		EntityID: r.ID.String(),
		Action:   "referral.status_forced",
		Detail:   string(from) + " -> " + string(newStatus) + ": " + reason,
	})
	s.logger.Warn("referral status forced",
		"referral_id", r.ID,
		"from", from,
		"to", newStatus,
		"actor_id", requestcontext.ActorID(ctx),
	)
	return r, nil
}
