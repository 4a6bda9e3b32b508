package handler

import (
	"carelink/internal/referral/models"
	"carelink/internal/referral/ports"
	id "carelink/pkg/domain"
)

// CreateReferralRequest is the intake payload.
type CreateReferralRequest struct {
	ChildID    string              `json:"childId"`
	GuardianID string              `json:"guardianId,omitempty"`
	Form       models.ReferralForm `json:"form"`
}

// UpdateFormRequest replaces the intake document.
type UpdateFormRequest struct {
	Form models.ReferralForm `json:"form"`
}

// RecommendationPayload is one ranked suggestion in the AI callback.
type RecommendationPayload struct {
	InstitutionID string  `json:"institutionId"`
	Score         float64 `json:"score"`
	Reason        string  `json:"reason,omitempty"`
	Rank          int     `json:"rank"`
}

// AttachRecommendationsRequest is the AI service callback body.
type AttachRecommendationsRequest struct {
	Recommendations []RecommendationPayload `json:"recommendations"`
}

func (r AttachRecommendationsRequest) Candidates() []ports.RecommendationCandidate {
	out := make([]ports.RecommendationCandidate, 0, len(r.Recommendations))
	for _, p := range r.Recommendations {
		out = append(out, ports.RecommendationCandidate{
			InstitutionID: id.InstitutionID(p.InstitutionID),
			Score:         p.Score,
			Reason:        p.Reason,
			Rank:          p.Rank,
		})
	}
	return out
}

// SelectInstitutionRequest binds the operator's choice.
type SelectInstitutionRequest struct {
	InstitutionID string `json:"institutionId"`
}

// MatchRequest is the legacy direct-match payload.
type MatchRequest struct {
	InstitutionID string `json:"institutionId"`
	CounselorID   string `json:"counselorId"`
}

// RejectRequest closes a referral without counseling.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// ForceStatusRequest is the operator escape hatch payload.
type ForceStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// IntegratedReportCallbackRequest is the generator's completion webhook body.
type IntegratedReportCallbackRequest struct {
	Status string `json:"status"` // "completed" or "failed"
	S3Key  string `json:"s3Key,omitempty"`
}
