package handler

import (
	"time"

	"carelink/internal/report/models"
	id "carelink/pkg/domain"
)

// CreateReportRequest is the counselor's session write-up payload. A zero
// sessionNumber asks the service to take the next in sequence.
type CreateReportRequest struct {
	ReferralID    string `json:"referralId"`
	ChildID       string `json:"childId"`
	CounselorID   string `json:"counselorId,omitempty"`
	InstitutionID string `json:"institutionId,omitempty"`

	SessionNumber int       `json:"sessionNumber,omitempty"`
	ReportDate    time.Time `json:"reportDate"`

	CenterName         string   `json:"centerName,omitempty"`
	CounselorSignature string   `json:"counselorSignature,omitempty"`
	CounselReason      string   `json:"counselReason"`
	CounselContent     string   `json:"counselContent"`
	CenterFeedback     string   `json:"centerFeedback,omitempty"`
	HomeFeedback       string   `json:"homeFeedback,omitempty"`
	AttachmentURLs     []string `json:"attachmentUrls,omitempty"`
}

func (r CreateReportRequest) Params() models.NewParams {
	return models.NewParams{
		ReferralID:         id.ReferralID(r.ReferralID),
		ChildID:            id.ChildID(r.ChildID),
		CounselorID:        id.CounselorID(r.CounselorID),
		InstitutionID:      id.InstitutionID(r.InstitutionID),
		SessionNumber:      r.SessionNumber,
		ReportDate:         r.ReportDate,
		CenterName:         r.CenterName,
		CounselorSignature: r.CounselorSignature,
		CounselReason:      r.CounselReason,
		CounselContent:     r.CounselContent,
		CenterFeedback:     r.CenterFeedback,
		HomeFeedback:       r.HomeFeedback,
		AttachmentURLs:     r.AttachmentURLs,
	}
}

// ApproveRequest carries the guardian's feedback.
type ApproveRequest struct {
	Feedback string `json:"feedback"`
}
