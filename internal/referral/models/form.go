package models

import (
	"fmt"
	"strings"
	"time"

	dErrors "carelink/pkg/domain-errors"
)

// CareType classifies a child's funding/priority category.
type CareType string

const (
	CareTypePriority CareType = "PRIORITY"
	CareTypeGeneral  CareType = "GENERAL"
	CareTypeSpecial  CareType = "SPECIAL"
)

// RequestDate is the intake date as entered on the paper form. Kept as the
// raw year/month/day triple so the form round-trips byte-identically; Time()
// builds the derived value used for search.
type RequestDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

func (d RequestDate) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// CoverInfo is the cover sheet of the referral form.
type CoverInfo struct {
	RequestDate   RequestDate `json:"requestDate"`
	CenterName    string      `json:"centerName"`
	CounselorName string      `json:"counselorName"`
}

// ChildInfo identifies the child the referral is filed for.
type ChildInfo struct {
	Name   string `json:"name"`
	Gender string `json:"gender,omitempty"`
	Age    int    `json:"age,omitempty"`
	Grade  string `json:"grade,omitempty"`
}

// BasicInfo classifies the child and carries the optional priority reasons.
// PriorityReason must be present when CareType is PRIORITY.
type BasicInfo struct {
	ChildInfo      ChildInfo `json:"childInfo"`
	CareType       CareType  `json:"careType"`
	PriorityReason string    `json:"priorityReason,omitempty"`
	// ProtectedChild marks the optional protected-child sub-form used by some
	// care facilities. Opaque to the workflow.
	ProtectedChild map[string]any `json:"protectedChild,omitempty"`
}

// TestResult is an attached assessment summary. Two generations coexist: the
// legacy single-score format and the newer structured one; both are carried
// verbatim and never interpreted by the workflow.
type TestResult struct {
	TestName     string   `json:"testName"`
	Score        *float64 `json:"score,omitempty"`
	Level        string   `json:"level,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	SummaryLines []string `json:"summaryLines,omitempty"`
}

// ConsentInfo records the consent checkboxes ticked on the form itself. The
// authoritative consent ledger lives in internal/consent; this mirrors what
// the submitter declared at intake.
type ConsentInfo struct {
	DataProcessing  bool   `json:"dataProcessing"`
	GuardianName    string `json:"guardianName,omitempty"`
	GuardianContact string `json:"guardianContact,omitempty"`
}

// ReferralForm is the nested intake document. The aggregate treats it as an
// already-shaped value object and only reads the known paths validated below;
// optional government-form and legacy sub-fields pass through untouched.
type ReferralForm struct {
	CoverInfo         CoverInfo      `json:"coverInfo"`
	BasicInfo         BasicInfo      `json:"basicInfo"`
	PsychologicalInfo string         `json:"psychologicalInfo,omitempty"`
	RequestMotivation string         `json:"requestMotivation,omitempty"`
	TestResults       []TestResult   `json:"testResults,omitempty"`
	Consent           ConsentInfo    `json:"consent"`
	GovernmentForm    map[string]any `json:"governmentForm,omitempty"`
}

// Validate checks the form invariants in intake order and short-circuits on
// the first failing rule. No multi-error accumulation: the operator fixes one
// field at a time, matching the paper-form review flow.
func (f ReferralForm) Validate() error {
	if strings.TrimSpace(f.CoverInfo.CenterName) == "" {
		return dErrors.New(dErrors.CodeValidation, "coverInfo.centerName is required")
	}
	if strings.TrimSpace(f.CoverInfo.CounselorName) == "" {
		return dErrors.New(dErrors.CodeValidation, "coverInfo.counselorName is required")
	}
	if strings.TrimSpace(f.BasicInfo.ChildInfo.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "basicInfo.childInfo.name is required")
	}
	if m := f.CoverInfo.RequestDate.Month; m < 1 || m > 12 {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("requestDate.month must be between 1 and 12, got %d", m))
	}
	if d := f.CoverInfo.RequestDate.Day; d < 1 || d > 31 {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("requestDate.day must be between 1 and 31, got %d", d))
	}
	if f.BasicInfo.CareType == CareTypePriority && strings.TrimSpace(f.BasicInfo.PriorityReason) == "" {
		return dErrors.New(dErrors.CodeValidation, "priorityReason is required when careType is PRIORITY")
	}
	return nil
}
