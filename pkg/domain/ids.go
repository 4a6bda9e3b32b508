// Package domain holds identifier types shared across bounded contexts.
// IDs are opaque strings minted from UUIDs; external systems (the intake
// frontend, the AI recommender) also generate them, so the types never assume
// a particular format beyond being non-empty.
package domain

import "github.com/google/uuid"

type (
	ReferralID       string
	ReportID         string
	RecommendationID string
	ChildID          string
	GuardianID       string
	CounselorID      string
	InstitutionID    string
)

func NewReferralID() ReferralID             { return ReferralID(uuid.NewString()) }
func NewReportID() ReportID                 { return ReportID(uuid.NewString()) }
func NewRecommendationID() RecommendationID { return RecommendationID(uuid.NewString()) }

func (id ReferralID) String() string       { return string(id) }
func (id ReportID) String() string         { return string(id) }
func (id RecommendationID) String() string { return string(id) }
func (id ChildID) String() string          { return string(id) }
func (id GuardianID) String() string       { return string(id) }
func (id CounselorID) String() string      { return string(id) }
func (id InstitutionID) String() string    { return string(id) }
