// Package ports declares the collaborators the report workflow consumes.
package ports

import (
	"context"

	id "carelink/pkg/domain"
)

// GuardianAuthorizer answers whether a guardian may act on a child's reports.
// Review and approve both go through this check; ownership is never inferred
// from the report row alone.
type GuardianAuthorizer interface {
	Authorize(ctx context.Context, guardianID id.GuardianID, childID id.ChildID) error
}
