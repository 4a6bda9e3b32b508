package audit

import (
	"context"
	"log/slog"
)

// Worker drains the audit inbox and persists events. Persistence failures are
// logged and skipped; the trail is best-effort and one bad event must not
// wedge the channel.
type Worker struct {
	store  Store
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

// Sink is an optional secondary fan-out (e.g. the Kafka sink) written after
// the store append.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

func NewWorker(store Store, sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.Error("audit append failed",
					"entity", event.Entity,
					"entity_id", event.EntityID,
					"action", event.Action,
					"error", err,
				)
				continue
			}
			if w.sink != nil {
				if err := w.sink.Publish(ctx, event); err != nil {
					w.logger.Warn("audit sink publish failed",
						"entity", event.Entity,
						"entity_id", event.EntityID,
						"error", err,
					)
				}
			}
		}
	}
}
