package handler

import (
	"time"

	"carelink/internal/report/models"
)

// ReportResponse is the wire shape of a session report.
type ReportResponse struct {
	ID            string `json:"id"`
	ReferralID    string `json:"referralId"`
	ChildID       string `json:"childId"`
	CounselorID   string `json:"counselorId,omitempty"`
	InstitutionID string `json:"institutionId,omitempty"`

	SessionNumber int       `json:"sessionNumber"`
	ReportDate    time.Time `json:"reportDate"`

	CenterName         string   `json:"centerName,omitempty"`
	CounselorSignature string   `json:"counselorSignature,omitempty"`
	CounselReason      string   `json:"counselReason"`
	CounselContent     string   `json:"counselContent"`
	CenterFeedback     string   `json:"centerFeedback,omitempty"`
	HomeFeedback       string   `json:"homeFeedback,omitempty"`
	AttachmentURLs     []string `json:"attachmentUrls,omitempty"`

	Status           string     `json:"status"`
	SubmittedAt      *time.Time `json:"submittedAt,omitempty"`
	ReviewedAt       *time.Time `json:"reviewedAt,omitempty"`
	GuardianFeedback string     `json:"guardianFeedback,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func FromReport(r *models.SessionReport) ReportResponse {
	return ReportResponse{
		ID:                 r.ID.String(),
		ReferralID:         r.ReferralID.String(),
		ChildID:            string(r.ChildID),
		CounselorID:        string(r.CounselorID),
		InstitutionID:      string(r.InstitutionID),
		SessionNumber:      r.SessionNumber,
		ReportDate:         r.ReportDate,
		CenterName:         r.CenterName,
		CounselorSignature: r.CounselorSignature,
		CounselReason:      r.CounselReason,
		CounselContent:     r.CounselContent,
		CenterFeedback:     r.CenterFeedback,
		HomeFeedback:       r.HomeFeedback,
		AttachmentURLs:     r.AttachmentURLs,
		Status:             string(r.Status),
		SubmittedAt:        r.SubmittedAt,
		ReviewedAt:         r.ReviewedAt,
		GuardianFeedback:   r.GuardianFeedback,
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func FromReports(rs []*models.SessionReport) []ReportResponse {
	out := make([]ReportResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, FromReport(r))
	}
	return out
}

// ListResponse pages reports.
type ListResponse struct {
	Items []ReportResponse `json:"items"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}
