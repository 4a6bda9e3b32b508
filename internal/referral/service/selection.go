package service

import (
	"context"

	"carelink/internal/audit"
	"carelink/internal/referral/models"
	id "carelink/pkg/domain"
	dErrors "carelink/pkg/domain-errors"
	"carelink/pkg/requestcontext"
)

// SelectRecommendedInstitution binds the operator's choice to the referral.
//
// The order of the guards is part of the contract:
//  1. the referral must exist (NOT_FOUND),
//  2. it must be RECOMMENDED; a PENDING referral is a transition error, not a
//     missing resource,
//  3. a recommendation batch must exist,
//  4. the chosen institution must appear in that batch,
//  5. only then are the recommendation and the referral written, in that
//     order, so a half-applied selection leaves the referral re-selectable.
func (s *Service) SelectRecommendedInstitution(ctx context.Context, referralID id.ReferralID, institutionID id.InstitutionID) (*models.Referral, error) {
	ctx, span := s.tracer.Start(ctx, "referral.SelectInstitution")
	defer span.End()

	r, err := s.load(ctx, referralID)
	if err != nil {
		return nil, err
	}
	if r.Status != models.StatusRecommended {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "institution selection is only allowed from RECOMMENDED, current status is %s", r.Status)
	}

	recs, err := s.recommendations.FindByReferral(ctx, referralID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no recommendations exist for this referral; request a recommendation first")
	}

	var chosen *models.Recommendation
	for _, rec := range recs {
		if rec.InstitutionID == institutionID {
			chosen = rec
			break
		}
	}
	if chosen == nil {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "institution %s is not in the recommended list", institutionID)
	}

	// A failed referral write after the recommendation write leaves the
	// referral re-selectable; clearing stale selections here keeps the
	// at-most-one invariant across such retries.
	for _, rec := range recs {
		if rec.Selected && rec.ID != chosen.ID {
			rec.Unselect()
			if err := s.recommendations.Save(ctx, rec); err != nil {
				return nil, err
			}
		}
	}

	chosen.Select()
	if err := s.recommendations.Save(ctx, chosen); err != nil {
		return nil, err
	}

	if err := r.SelectInstitution(institutionID, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.update(ctx, r); err != nil {
		return nil, err
	}

	s.metrics.IncrementTransition(string(models.StatusMatched))
	s.auditor.Emit(ctx, audit.Event{
		Entity:   "referral",
		EntityID: r.ID.String(),
		Action:   "referral.matched",
		Detail:   "institution " + institutionID.String(),
	})
	return r, nil
}
