package models

import (
	"strings"
	"time"

	id "carelink/pkg/domain"
	dErrors "carelink/pkg/domain-errors"
)

// Status is the session-report lifecycle state.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusReviewed  Status = "REVIEWED"
	StatusApproved  Status = "APPROVED"
)

// SessionReport is the aggregate root for a single counseling session
// write-up.
//
// Invariants:
//   - CounselReason and CounselContent are non-blank from construction on
//   - Status only moves forward along DRAFT → SUBMITTED → REVIEWED →
//     APPROVED; no skipping, no backward transition, no re-entry
//   - GuardianFeedback is set exactly once, at approval, and is non-blank
//     after trimming
//   - Transitions touch only the fields named by their effect; everything
//     else survives byte-identical
//
// SessionNumber uniqueness per referral is a cross-aggregate rule enforced by
// the creating service against the store, not by this type.
//
// CounselorID and InstitutionID are nullable legacy references from the
// direct-match era; reports created through the recommendation flow carry
// both.
type SessionReport struct {
	ID            id.ReportID
	ReferralID    id.ReferralID
	ChildID       id.ChildID
	CounselorID   id.CounselorID   // legacy: may be empty
	InstitutionID id.InstitutionID // legacy: may be empty

	SessionNumber int
	ReportDate    time.Time

	CenterName         string
	CounselorSignature string
	CounselReason      string
	CounselContent     string
	CenterFeedback     string
	HomeFeedback       string
	AttachmentURLs     []string

	Status           Status
	SubmittedAt      *time.Time
	ReviewedAt       *time.Time
	GuardianFeedback string

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewParams carries the construction inputs for a session report.
type NewParams struct {
	ID            id.ReportID
	ReferralID    id.ReferralID
	ChildID       id.ChildID
	CounselorID   id.CounselorID
	InstitutionID id.InstitutionID

	SessionNumber int
	ReportDate    time.Time

	CenterName         string
	CounselorSignature string
	CounselReason      string
	CounselContent     string
	CenterFeedback     string
	HomeFeedback       string
	AttachmentURLs     []string
}

// New validates the session content and constructs a DRAFT report.
func New(p NewParams, now time.Time) (*SessionReport, error) {
	if p.ID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "report id is required")
	}
	if p.ReferralID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "referral id is required")
	}
	if p.ChildID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "child id is required")
	}
	if p.SessionNumber < 1 {
		return nil, dErrors.Newf(dErrors.CodeValidation, "session number must be positive, got %d", p.SessionNumber)
	}
	if strings.TrimSpace(p.CounselReason) == "" {
		return nil, dErrors.New(dErrors.CodeMissingCounselContent, "counsel reason must not be blank")
	}
	if strings.TrimSpace(p.CounselContent) == "" {
		return nil, dErrors.New(dErrors.CodeMissingCounselContent, "counsel content must not be blank")
	}
	return &SessionReport{
		ID:                 p.ID,
		ReferralID:         p.ReferralID,
		ChildID:            p.ChildID,
		CounselorID:        p.CounselorID,
		InstitutionID:      p.InstitutionID,
		SessionNumber:      p.SessionNumber,
		ReportDate:         p.ReportDate,
		CenterName:         p.CenterName,
		CounselorSignature: p.CounselorSignature,
		CounselReason:      p.CounselReason,
		CounselContent:     p.CounselContent,
		CenterFeedback:     p.CenterFeedback,
		HomeFeedback:       p.HomeFeedback,
		AttachmentURLs:     p.AttachmentURLs,
		Status:             StatusDraft,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Restore rehydrates a report from storage without re-validation.
func Restore(r SessionReport) *SessionReport {
	return &r
}

// Submit hands the draft to the guardian-review pipeline.
func (r *SessionReport) Submit(now time.Time) error {
	if r.Status != StatusDraft {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "submission is only allowed from DRAFT, current status is %s", r.Status)
	}
	r.Status = StatusSubmitted
	r.SubmittedAt = &now
	r.UpdatedAt = now
	return nil
}

// MarkReviewed records that the guardian has read the submitted report.
func (r *SessionReport) MarkReviewed(now time.Time) error {
	if r.Status != StatusSubmitted {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "review is only allowed from SUBMITTED, current status is %s", r.Status)
	}
	r.Status = StatusReviewed
	r.ReviewedAt = &now
	r.UpdatedAt = now
	return nil
}

// Approve finalizes the report with the guardian's feedback. The state guard
// runs before the feedback guard so a blank-feedback call against the wrong
// state reports the transition error, matching caller expectations.
func (r *SessionReport) Approve(feedback string, now time.Time) error {
	if r.Status != StatusReviewed {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "approval is only allowed from REVIEWED, current status is %s", r.Status)
	}
	if strings.TrimSpace(feedback) == "" {
		return dErrors.New(dErrors.CodeInvalidFeedback, "guardian feedback must not be blank")
	}
	r.Status = StatusApproved
	r.GuardianFeedback = feedback
	r.UpdatedAt = now
	return nil
}
