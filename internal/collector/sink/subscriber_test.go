package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Avi18971911/flare/internal/collector/handler"
	"github.com/Avi18971911/flare/internal/collector/model"
	"github.com/Avi18971911/flare/internal/event_bus"
	"github.com/asaskevich/EventBus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSinks struct {
	mu        sync.Mutex
	events    []model.EventBatch
	traces    []model.TraceBatch
	forwarded []model.TraceBatch
	err       error
}

func (r *recordingSinks) IndexEvents(ctx context.Context, batch model.EventBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, batch)
	return r.err
}

func (r *recordingSinks) IndexTraces(ctx context.Context, batch model.TraceBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = append(r.traces, batch)
	return r.err
}

func (r *recordingSinks) ForwardTraces(ctx context.Context, batch model.TraceBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing deadline")
	}
	r.forwarded = append(r.forwarded, batch)
	return r.err
}

func (r *recordingSinks) counts() (int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events), len(r.traces), len(r.forwarded)
}

func TestSubscribe(t *testing.T) {
	t.Run("should fan each batch out to every configured sink", func(t *testing.T) {
		bus := EventBus.New()
		events := event_bus.NewFlareEventBus[model.EventBatch](bus, nil, zap.NewNop())
		traces := event_bus.NewFlareEventBus[model.TraceBatch](bus, nil, zap.NewNop())
		rec := &recordingSinks{}

		err := Subscribe(
			context.Background(),
			events,
			traces,
			Sinks{Events: rec, Traces: rec, Forwarder: rec},
			time.Second,
			zap.NewNop(),
		)
		require.Nil(t, err)

		require.Nil(t, events.Publish(model.EventsTopic, model.EventBatch{Events: []model.EventDocument{{Message: "a"}}}))
		require.Nil(t, traces.Publish(model.TracesTopic, model.TraceBatch{Traces: []model.TraceDocument{{ID: "t"}}}))
		bus.WaitAsync()

		e, tr, f := rec.counts()
		assert.Equal(t, 1, e)
		assert.Equal(t, 1, tr)
		assert.Equal(t, 1, f)
	})

	t.Run("should skip sinks that are not configured", func(t *testing.T) {
		bus := EventBus.New()
		events := event_bus.NewFlareEventBus[model.EventBatch](bus, nil, zap.NewNop())
		traces := event_bus.NewFlareEventBus[model.TraceBatch](bus, nil, zap.NewNop())
		rec := &recordingSinks{}

		require.Nil(t, Subscribe(context.Background(), events, traces, Sinks{Forwarder: rec}, time.Second, zap.NewNop()))
		require.Nil(t, events.Publish(model.EventsTopic, model.EventBatch{Events: []model.EventDocument{{Message: "a"}}}))
		require.Nil(t, traces.Publish(model.TracesTopic, model.TraceBatch{Traces: []model.TraceDocument{{ID: "t"}}}))
		bus.WaitAsync()

		e, tr, f := rec.counts()
		assert.Equal(t, 0, e)
		assert.Equal(t, 0, tr)
		assert.Equal(t, 1, f)
		assert.False(t, bus.HasCallback(model.EventsTopic))
	})

	t.Run("should keep consuming after a sink error and count the failures", func(t *testing.T) {
		bus := EventBus.New()
		metrics := handler.NewCollectorMetrics(nil)
		events := event_bus.NewFlareEventBus[model.EventBatch](bus, metrics.SinkFailed, zap.NewNop())
		traces := event_bus.NewFlareEventBus[model.TraceBatch](bus, metrics.SinkFailed, zap.NewNop())
		rec := &recordingSinks{err: errors.New("index closed")}

		require.Nil(t, Subscribe(context.Background(), events, traces, Sinks{Events: rec}, time.Second, zap.NewNop()))
		for i := 0; i < 3; i++ {
			require.Nil(t, events.Publish(model.EventsTopic, model.EventBatch{Events: []model.EventDocument{{Message: "a"}}}))
		}
		bus.WaitAsync()

		e, _, _ := rec.counts()
		assert.Equal(t, 3, e)
		assert.Equal(t, 3.0, testutil.ToFloat64(metrics.SinkFailures.WithLabelValues(model.EventsTopic)))
		assert.Equal(t, 0.0, testutil.ToFloat64(metrics.SinkFailures.WithLabelValues(model.TracesTopic)))
	})
}
