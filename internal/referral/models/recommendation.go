package models

import (
	"time"

	id "carelink/pkg/domain"
	dErrors "carelink/pkg/domain-errors"
)

// Recommendation is one ranked AI-suggested candidate institution for a
// referral. A batch is written together when the recommender responds; rows
// are immutable afterwards except for the Selected flag.
//
// At most one recommendation per referral has Selected=true at any time. The
// selection service enforces this, not the entity: the entity cannot see its
// siblings.
type Recommendation struct {
	ID            id.RecommendationID
	ReferralID    id.ReferralID
	InstitutionID id.InstitutionID
	Score         float64 // 0..1, higher is better
	Reason        string
	Rank          int // 1 = best
	Selected      bool
	CreatedAt     time.Time
}

// NewRecommendation validates and constructs a single ranked suggestion.
func NewRecommendation(recID id.RecommendationID, referralID id.ReferralID, institutionID id.InstitutionID, score float64, reason string, rank int, now time.Time) (*Recommendation, error) {
	if referralID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "referral id is required")
	}
	if institutionID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "institution id is required")
	}
	if score < 0 || score > 1 {
		return nil, dErrors.Newf(dErrors.CodeValidation, "score must be within [0,1], got %g", score)
	}
	if rank < 1 {
		return nil, dErrors.Newf(dErrors.CodeValidation, "rank must be positive, got %d", rank)
	}
	return &Recommendation{
		ID:            recID,
		ReferralID:    referralID,
		InstitutionID: institutionID,
		Score:         score,
		Reason:        reason,
		Rank:          rank,
		CreatedAt:     now,
	}, nil
}

// Select marks this recommendation as the chosen one.
func (rec *Recommendation) Select() {
	rec.Selected = true
}

// Unselect withdraws a previous selection.
func (rec *Recommendation) Unselect() {
	rec.Selected = false
}
