package consent

import (
	"context"
	"time"

	id "carelink/pkg/domain"
)

type Store interface {
	Save(ctx context.Context, consent Record) error
	ListByChild(ctx context.Context, childID id.ChildID) ([]Record, error)
	Revoke(ctx context.Context, childID id.ChildID, purpose Purpose, revokedAt time.Time) error
}
