package sink

import (
	"context"
	"fmt"
	"github.com/Avi18971911/flare/internal/collector/model"
	"github.com/Avi18971911/flare/internal/event_bus"
	"go.uber.org/zap"
	"time"
)

type EventIndexer interface {
	IndexEvents(ctx context.Context, batch model.EventBatch) error
}

type TraceIndexer interface {
	IndexTraces(ctx context.Context, batch model.TraceBatch) error
}

type TraceForwarder interface {
	ForwardTraces(ctx context.Context, batch model.TraceBatch) error
}

type Sinks struct {
	Events    EventIndexer
	Traces    TraceIndexer
	Forwarder TraceForwarder
}

// Subscribe wires the configured sinks to the collector topics. Nil sinks are skipped.
// Each delivery gets its own timeout derived from ctx.
func Subscribe(
	ctx context.Context,
	eventBus event_bus.FlareEventBus[model.EventBatch],
	traceBus event_bus.FlareEventBus[model.TraceBatch],
	sinks Sinks,
	timeout time.Duration,
	logger *zap.Logger,
) error {
	if sinks.Events != nil {
		err := eventBus.Subscribe(model.EventsTopic, func(batch model.EventBatch) error {
			sinkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			logger.Debug("Indexing event batch", zap.Int("events", len(batch.Events)))
			return sinks.Events.IndexEvents(sinkCtx, batch)
		}, true)
		if err != nil {
			return fmt.Errorf("failed to subscribe event indexer: %w", err)
		}
	}

	if sinks.Traces != nil {
		err := traceBus.Subscribe(model.TracesTopic, func(batch model.TraceBatch) error {
			sinkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			logger.Debug("Indexing trace batch", zap.Int("traces", len(batch.Traces)))
			return sinks.Traces.IndexTraces(sinkCtx, batch)
		}, true)
		if err != nil {
			return fmt.Errorf("failed to subscribe trace indexer: %w", err)
		}
	}

	if sinks.Forwarder != nil {
		err := traceBus.Subscribe(model.TracesTopic, func(batch model.TraceBatch) error {
			sinkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			logger.Debug("Forwarding trace batch", zap.Int("traces", len(batch.Traces)))
			return sinks.Forwarder.ForwardTraces(sinkCtx, batch)
		}, true)
		if err != nil {
			return fmt.Errorf("failed to subscribe trace forwarder: %w", err)
		}
	}

	return nil
}
