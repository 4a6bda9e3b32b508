// Package ports declares the external collaborators the referral workflow
// consumes. Implementations live in adapters; services depend only on these
// interfaces so enrichment backends can be swapped or stubbed in tests.
package ports

import (
	"context"
	"time"

	id "carelink/pkg/domain"
)

// RecommendationCandidate is one ranked suggestion returned by the AI
// recommender.
type RecommendationCandidate struct {
	InstitutionID id.InstitutionID
	Score         float64
	Reason        string
	Rank          int
}

// RecommendationContext is what the recommender needs to rank institutions
// for a referral.
type RecommendationContext struct {
	ReferralID        id.ReferralID
	ChildID           id.ChildID
	CareType          string
	CenterName        string
	PsychologicalInfo string
	RequestMotivation string
	// LatestAssessment is backfilled from the assessment service when the
	// intake payload itself carried no test results.
	LatestAssessment *AssessmentResult
}

// Recommender asks the external AI service for ranked institution
// suggestions.
type Recommender interface {
	Recommend(ctx context.Context, rc RecommendationContext) ([]RecommendationCandidate, error)
}

// ReportGenerator kicks off the external integrated-report build for a
// referral. The result arrives later through a callback; Generate only
// acknowledges acceptance.
type ReportGenerator interface {
	Generate(ctx context.Context, referralID id.ReferralID, childID id.ChildID) error
}

// AssessmentResult is the latest scored psychological assessment for a child.
type AssessmentResult struct {
	ChildID  id.ChildID
	TestName string
	Score    float64
	Level    string
	Summary  string
	ScoredAt time.Time
}

// AssessmentLookup fetches the latest scored assessment for a child from the
// external assessment service.
type AssessmentLookup interface {
	LatestByChild(ctx context.Context, childID id.ChildID) (*AssessmentResult, error)
}
