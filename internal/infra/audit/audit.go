// Package audit persists orchestration events for later review.
package audit

import (
	"context"

	"agentteam/internal/app/eventbus"
	domain "agentteam/internal/domain/agentteam"
	"agentteam/internal/shared/async"
	"agentteam/internal/shared/logging"
)

// Sink stores events. Write is called from a single goroutine per sink.
type Sink interface {
	Write(ctx context.Context, e domain.Event) error
	Close() error
}

// Attach subscribes sink to the global feed until ctx is done or the bus
// closes. Write failures are logged and do not stop the subscription.
func Attach(ctx context.Context, bus *eventbus.Bus, sink Sink, name string, logger logging.Logger) {
	logger = logging.OrNop(logger)
	sub := bus.Subscribe(eventbus.Filter{})
	async.Go(logger, "audit."+name, func() {
		defer func() {
			if err := sink.Close(); err != nil {
				logger.Warn("close audit sink %s: %v", name, err)
			}
		}()
		eventbus.Consume(ctx, sub, logger, func(e domain.Event) error {
			return sink.Write(ctx, e)
		})
	})
}
