// Package guardian implements the report workflow's guardian authorization
// against the consent ledger: a guardian may act on a child's reports when
// the ledger holds an active consent record naming them for that child.
// Revoked or expired records do not count.
package guardian

import (
	"context"

	"carelink/internal/consent"
	id "carelink/pkg/domain"
	dErrors "carelink/pkg/domain-errors"
	"carelink/pkg/requestcontext"
)

// ConsentLedger is the slice of the consent service this authorizer reads.
type ConsentLedger interface {
	ListByChild(ctx context.Context, childID id.ChildID) ([]consent.Record, error)
}

// LedgerAuthorizer authorizes guardians through the consent ledger.
type LedgerAuthorizer struct {
	ledger ConsentLedger
}

func NewLedgerAuthorizer(ledger ConsentLedger) *LedgerAuthorizer {
	return &LedgerAuthorizer{ledger: ledger}
}

func (a *LedgerAuthorizer) Authorize(ctx context.Context, guardianID id.GuardianID, childID id.ChildID) error {
	if guardianID == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "guardian identity is required")
	}
	records, err := a.ledger.ListByChild(ctx, childID)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	for _, record := range records {
		if record.GuardianID == guardianID && record.IsActive(now) {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeUnauthorized, "guardian is not registered for this child")
}
