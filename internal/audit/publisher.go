package audit

import (
	"context"
	"log/slog"
	"time"

	"carelink/pkg/requestcontext"
)

// ChannelPublisher hands events to the background worker through a buffered
// channel. When the buffer is full the event is dropped and counted in the
// log rather than stalling a request: the audit trail is best-effort by
// contract, the workflow write is not.
type ChannelPublisher struct {
	inbox  chan<- Event
	logger *slog.Logger
}

func NewChannelPublisher(inbox chan<- Event, logger *slog.Logger) *ChannelPublisher {
	return &ChannelPublisher{inbox: inbox, logger: logger}
}

func (p *ChannelPublisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ActorID == "" {
		event.ActorID = requestcontext.ActorID(ctx)
	}
	if event.ActorRole == "" {
		event.ActorRole = string(requestcontext.ActorRole(ctx))
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.Device == "" {
		event.Device = requestcontext.Device(ctx)
	}

	select {
	case p.inbox <- event:
	default:
		p.logger.Warn("audit inbox full, dropping event",
			"entity", event.Entity,
			"entity_id", event.EntityID,
			"action", event.Action,
		)
	}
}

// NopPublisher discards events. Used in tests that don't assert on the trail.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, Event) {}
