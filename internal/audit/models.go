package audit

import (
	"context"
	"time"
)

// Event records one workflow action for the compliance trail. Kept
// transport-agnostic so stores and sinks (Postgres, Kafka) can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	Entity    string    `json:"entity"` // "referral" | "report" | "consent" | "psych_status"
	EntityID  string    `json:"entity_id"`
	Action    string    `json:"action"` // e.g. "created", "submitted", "status_forced"
	Detail    string    `json:"detail,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	Device    string    `json:"device,omitempty"`
}

// Store is the append-only persistence surface for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByEntity(ctx context.Context, entity, entityID string) ([]Event, error)
}

// Publisher is what domain services emit through. Emit must never block the
// caller's request path for long and must never fail the primary operation;
// implementations drop or log on overflow.
type Publisher interface {
	Emit(ctx context.Context, event Event)
}
