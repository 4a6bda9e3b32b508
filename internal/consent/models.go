package consent

import (
	"time"

	id "carelink/pkg/domain"
	dErrors "carelink/pkg/domain-errors"
)

// Purpose labels why a child's data is processed. Purpose binding allows
// selective revocation without affecting other flows.
type Purpose string

const (
	PurposeReferral         Purpose = "counseling_referral"
	PurposeAssessmentShare  Purpose = "assessment_sharing"
	PurposeReportGeneration Purpose = "report_generation"
)

// Valid reports whether p is one of the known purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeReferral, PurposeAssessmentShare, PurposeReportGeneration:
		return true
	}
	return false
}

// Record captures a guardian's decision for a specific purpose on behalf of a
// child.
type Record struct {
	ChildID    id.ChildID
	GuardianID id.GuardianID
	Purpose    Purpose
	GrantedAt  time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}

// IsActive returns true when consent is currently valid.
func (c Record) IsActive(now time.Time) bool {
	if c.RevokedAt != nil && c.RevokedAt.Before(now) {
		return false
	}
	return now.Before(c.ExpiresAt) || c.ExpiresAt.IsZero()
}

// EnsureConsent enforces that consent exists and is active for the purpose.
func EnsureConsent(consents []Record, purpose Purpose, now time.Time) error {
	for _, c := range consents {
		if c.Purpose == purpose && c.IsActive(now) {
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeMissingConsent, "consent not granted for purpose %s", purpose)
}
