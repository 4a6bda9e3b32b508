package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "carelink/pkg/domain"
	dErrors "carelink/pkg/domain-errors"
)

// Status is the referral lifecycle state.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusRecommended Status = "RECOMMENDED"
	StatusMatched     Status = "MATCHED"
	StatusInProgress  Status = "IN_PROGRESS"
	StatusCompleted   Status = "COMPLETED"
	StatusRejected    Status = "REJECTED"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRecommended, StatusMatched, StatusInProgress, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// IntegratedReportStatus tracks the externally generated combined PDF.
type IntegratedReportStatus string

const (
	IntegratedReportPending    IntegratedReportStatus = "pending"
	IntegratedReportProcessing IntegratedReportStatus = "processing"
	IntegratedReportCompleted  IntegratedReportStatus = "completed"
	IntegratedReportFailed     IntegratedReportStatus = "failed"
)

// Referral is the aggregate root for a counsel-request referral.
//
// Invariants:
//   - Form passes ReferralForm.Validate on every create/update
//   - CenterName, CareType and RequestDate always equal the corresponding
//     values inside Form; they are recomputed on mutation, never set directly
//   - Status moves only along PENDING → RECOMMENDED → MATCHED → IN_PROGRESS →
//     COMPLETED; REJECTED is reachable from any state except COMPLETED
//   - ForceStatus is the single escape hatch from the forward chain and can
//     never enter or leave COMPLETED
//   - CreatedAt is immutable; UpdatedAt is bumped on every successful mutation
//
// Version is a compare-and-swap counter: stores reject an update whose version
// does not match the stored row, surfacing CONCURRENT_MODIFICATION instead of
// silently losing one of two racing transitions.
type Referral struct {
	ID         id.ReferralID
	ChildID    id.ChildID
	GuardianID id.GuardianID // empty when the referral was filed by a facility

	Status Status
	Form   ReferralForm

	// Denormalized search fields, derived from Form.
	CenterName  string
	CareType    CareType
	RequestDate time.Time

	MatchedInstitutionID id.InstitutionID
	MatchedCounselorID   id.CounselorID

	IntegratedReportS3Key  string
	IntegratedReportStatus IntegratedReportStatus

	RejectionReason string

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New validates the form and constructs a PENDING referral.
func New(referralID id.ReferralID, childID id.ChildID, guardianID id.GuardianID, form ReferralForm, now time.Time) (*Referral, error) {
	if referralID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "referral id is required")
	}
	if childID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "child id is required")
	}
	if err := form.Validate(); err != nil {
		return nil, err
	}
	r := &Referral{
		ID:         referralID,
		ChildID:    childID,
		GuardianID: guardianID,
		Status:     StatusPending,
		Form:       form,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.deriveSearchFields()
	return r, nil
}

// Restore rehydrates a referral from storage without re-validation. The store
// is trusted; rows were validated when written.
func Restore(r Referral) *Referral {
	return &r
}

// MarkRecommended records that AI recommendations have been attached.
func (r *Referral) MarkRecommended(now time.Time) error {
	if r.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "recommendations are only accepted from PENDING, current status is %s", r.Status)
	}
	r.Status = StatusRecommended
	r.touch(now)
	return nil
}

// SelectInstitution binds the chosen institution and moves the referral to
// MATCHED. The selection service verifies the institution appears in the
// recommendation set before calling this.
func (r *Referral) SelectInstitution(institutionID id.InstitutionID, now time.Time) error {
	if strings.TrimSpace(string(institutionID)) == "" {
		return dErrors.New(dErrors.CodeValidation, "institution id is required")
	}
	if r.Status != StatusRecommended {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "institution selection is only allowed from RECOMMENDED, current status is %s", r.Status)
	}
	r.Status = StatusMatched
	r.MatchedInstitutionID = institutionID
	r.touch(now)
	return nil
}

// MatchWith is the legacy direct-match path that binds both institution and
// counselor straight from PENDING, skipping the recommendation step.
//
// Deprecated: new callers go through the recommendation flow and
// SelectInstitution. Kept bit-compatible until the last intake frontend
// migrates.
func (r *Referral) MatchWith(institutionID id.InstitutionID, counselorID id.CounselorID, now time.Time) error {
	if r.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "direct matching is only allowed from PENDING, current status is %s", r.Status)
	}
	r.Status = StatusMatched
	r.MatchedInstitutionID = institutionID
	r.MatchedCounselorID = counselorID
	r.touch(now)
	return nil
}

// StartCounseling moves a matched referral into active counseling.
func (r *Referral) StartCounseling(now time.Time) error {
	if r.Status != StatusMatched {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "counseling can only start from MATCHED, current status is %s", r.Status)
	}
	r.Status = StatusInProgress
	r.touch(now)
	return nil
}

// CompleteCounseling closes the referral. COMPLETED is terminal.
func (r *Referral) CompleteCounseling(now time.Time) error {
	if r.Status != StatusInProgress {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "counseling can only complete from IN_PROGRESS, current status is %s", r.Status)
	}
	r.Status = StatusCompleted
	r.touch(now)
	return nil
}

// Reject closes the referral without counseling. Allowed from any state
// except the terminal COMPLETED.
func (r *Referral) Reject(reason string, now time.Time) error {
	if r.Status == StatusCompleted {
		return dErrors.New(dErrors.CodeInvalidTransition, "a completed referral cannot be rejected")
	}
	r.Status = StatusRejected
	r.RejectionReason = strings.TrimSpace(reason)
	r.touch(now)
	return nil
}

// UpdateForm replaces the intake document while the referral is still
// PENDING. Re-validates and re-derives the search fields.
func (r *Referral) UpdateForm(form ReferralForm, now time.Time) error {
	if r.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "the form can only be updated while PENDING, current status is %s", r.Status)
	}
	if err := form.Validate(); err != nil {
		return err
	}
	r.Form = form
	r.deriveSearchFields()
	r.touch(now)
	return nil
}

// ForceStatus is the operator escape hatch. It bypasses the forward chain but
// treats COMPLETED as protected: a referral can neither enter nor leave
// completion through this path, and every use requires a substantive reason.
func (r *Referral) ForceStatus(newStatus Status, reason string, now time.Time) error {
	if !newStatus.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown status %q", newStatus)
	}
	if utf8.RuneCountInString(strings.TrimSpace(reason)) < 10 {
		return dErrors.New(dErrors.CodeValidation, "a reason of at least 10 characters is required to force a status")
	}
	if r.Status == StatusCompleted {
		return dErrors.New(dErrors.CodeInvalidTransition, "a completed referral cannot be forced to another status")
	}
	if newStatus == StatusCompleted {
		return dErrors.New(dErrors.CodeInvalidTransition, "completion cannot be forced; it is only reachable through the normal flow")
	}
	if newStatus == r.Status {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "referral is already %s", r.Status)
	}
	r.Status = newStatus
	r.touch(now)
	return nil
}

// AttachIntegratedReport records the externally generated combined document.
func (r *Referral) AttachIntegratedReport(s3Key string, now time.Time) {
	r.IntegratedReportS3Key = s3Key
	r.IntegratedReportStatus = IntegratedReportCompleted
	r.touch(now)
}

// SetIntegratedReportStatus tracks progress of the external generator.
func (r *Referral) SetIntegratedReportStatus(status IntegratedReportStatus, now time.Time) {
	r.IntegratedReportStatus = status
	r.touch(now)
}

func (r *Referral) deriveSearchFields() {
	r.CenterName = r.Form.CoverInfo.CenterName
	r.CareType = r.Form.BasicInfo.CareType
	r.RequestDate = r.Form.CoverInfo.RequestDate.Time()
}

func (r *Referral) touch(now time.Time) {
	r.UpdatedAt = now
}
