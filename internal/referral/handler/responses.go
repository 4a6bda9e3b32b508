package handler

import (
	"time"

	"carelink/internal/referral/models"
)

// ReferralResponse is the wire shape of a referral.
type ReferralResponse struct {
	ID         string `json:"id"`
	ChildID    string `json:"childId"`
	GuardianID string `json:"guardianId,omitempty"`

	Status string              `json:"status"`
	Form   models.ReferralForm `json:"form"`

	CenterName  string    `json:"centerName"`
	CareType    string    `json:"careType"`
	RequestDate time.Time `json:"requestDate"`

	MatchedInstitutionID string `json:"matchedInstitutionId,omitempty"`
	MatchedCounselorID   string `json:"matchedCounselorId,omitempty"`

	IntegratedReportS3Key  string `json:"integratedReportS3Key,omitempty"`
	IntegratedReportStatus string `json:"integratedReportStatus,omitempty"`

	RejectionReason string `json:"rejectionReason,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func FromReferral(r *models.Referral) ReferralResponse {
	return ReferralResponse{
		ID:                     r.ID.String(),
		ChildID:                string(r.ChildID),
		GuardianID:             string(r.GuardianID),
		Status:                 string(r.Status),
		Form:                   r.Form,
		CenterName:             r.CenterName,
		CareType:               string(r.CareType),
		RequestDate:            r.RequestDate,
		MatchedInstitutionID:   string(r.MatchedInstitutionID),
		MatchedCounselorID:     string(r.MatchedCounselorID),
		IntegratedReportS3Key:  r.IntegratedReportS3Key,
		IntegratedReportStatus: string(r.IntegratedReportStatus),
		RejectionReason:        r.RejectionReason,
		Version:                r.Version,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

// RecommendationResponse is the wire shape of one ranked suggestion.
type RecommendationResponse struct {
	ID            string    `json:"id"`
	ReferralID    string    `json:"referralId"`
	InstitutionID string    `json:"institutionId"`
	Score         float64   `json:"score"`
	Reason        string    `json:"reason,omitempty"`
	Rank          int       `json:"rank"`
	Selected      bool      `json:"selected"`
	CreatedAt     time.Time `json:"createdAt"`
}

func FromRecommendation(rec *models.Recommendation) RecommendationResponse {
	return RecommendationResponse{
		ID:            rec.ID.String(),
		ReferralID:    rec.ReferralID.String(),
		InstitutionID: string(rec.InstitutionID),
		Score:         rec.Score,
		Reason:        rec.Reason,
		Rank:          rec.Rank,
		Selected:      rec.Selected,
		CreatedAt:     rec.CreatedAt,
	}
}

func FromRecommendations(recs []*models.Recommendation) []RecommendationResponse {
	out := make([]RecommendationResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, FromRecommendation(rec))
	}
	return out
}

// ListResponse pages referrals.
type ListResponse struct {
	Items []ReferralResponse `json:"items"`
	Total int                `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

func FromReferrals(rs []*models.Referral) []ReferralResponse {
	out := make([]ReferralResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, FromReferral(r))
	}
	return out
}
