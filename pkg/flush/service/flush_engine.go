package service

import (
	"context"
	"errors"
	"github.com/Avi18971911/flare/pkg/delivery"
	eventModel "github.com/Avi18971911/flare/pkg/event/model"
	"github.com/Avi18971911/flare/pkg/metrics"
	traceModel "github.com/Avi18971911/flare/pkg/trace/model"
	"github.com/Avi18971911/flare/pkg/write_buffer"
	"go.uber.org/zap"
	"sync"
	"time"
)

const DefaultFlushInterval = 5 * time.Second
const DefaultSenderWorkers = 2
const DefaultSendQueueSize = 16

type FlushEngineConfig struct {
	BufferCapacity int
	MaxBufferSize  int
	FlushInterval  time.Duration
	SenderWorkers  int
	SendQueueSize  int
}

type FlushEngine interface {
	AddEvent(event eventModel.ErrorEvent)
	RecordTrace(payload string)
	Flush()
	FlushSync(ctx context.Context)
	Close(ctx context.Context) error
}

// batch is a drained buffer snapshot. It is encoded by whoever sends it so
// that producers only pay for the drain.
type batch struct {
	kind   delivery.BatchKind
	events []eventModel.ErrorEvent
	traces []string
}

func (b batch) items() int {
	return len(b.events) + len(b.traces)
}

func (b batch) body() []byte {
	if b.kind == delivery.Traces {
		return traceModel.TracesBody(b.traces)
	}
	return eventModel.EventsBody(b.events)
}

// FlushEngineImpl owns the event and trace buffers and moves their contents to
// the collector. Sends triggered by Flush run on a fixed pool of workers;
// FlushSync and Close send on the caller's goroutine.
type FlushEngineImpl struct {
	events  *write_buffer.WriteBufferImpl[eventModel.ErrorEvent]
	traces  *write_buffer.WriteBufferImpl[string]
	sender  delivery.Sender
	metrics *metrics.Metrics
	logger  *zap.Logger

	queue   chan batch
	workers sync.WaitGroup

	ticker    *time.Ticker
	stopTimer chan struct{}
	timerDone chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func NewFlushEngineImpl(
	cfg FlushEngineConfig,
	sender delivery.Sender,
	m *metrics.Metrics,
	logger *zap.Logger,
) *FlushEngineImpl {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.SenderWorkers <= 0 {
		cfg.SenderWorkers = DefaultSenderWorkers
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = DefaultSendQueueSize
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	fe := &FlushEngineImpl{
		sender:    sender,
		metrics:   m,
		logger:    logger,
		queue:     make(chan batch, cfg.SendQueueSize),
		ticker:    time.NewTicker(cfg.FlushInterval),
		stopTimer: make(chan struct{}),
		timerDone: make(chan struct{}),
	}
	fe.events = write_buffer.NewWriteBufferImpl[eventModel.ErrorEvent](
		cfg.BufferCapacity,
		cfg.MaxBufferSize,
		fe.FlushEvents,
		func(eventModel.ErrorEvent) { fe.dropped(delivery.Events, metrics.ReasonBufferOverflow, 1) },
	)
	fe.traces = write_buffer.NewWriteBufferImpl[string](
		cfg.BufferCapacity,
		cfg.MaxBufferSize,
		fe.FlushTraces,
		func(string) { fe.dropped(delivery.Traces, metrics.ReasonBufferOverflow, 1) },
	)

	for i := 0; i < cfg.SenderWorkers; i++ {
		fe.workers.Add(1)
		go fe.runWorker()
	}
	go fe.runTimer()
	return fe
}

func (fe *FlushEngineImpl) AddEvent(event eventModel.ErrorEvent) {
	fe.metrics.EventsCaptured.Inc()
	fe.events.Add(event)
}

// RecordTrace buffers the serialized form of an ended trace.
func (fe *FlushEngineImpl) RecordTrace(payload string) {
	fe.metrics.TracesCompleted.Inc()
	fe.traces.Add(payload)
}

func (fe *FlushEngineImpl) Flush() {
	fe.FlushEvents()
	fe.FlushTraces()
}

// FlushEvents hands the buffered events to the sender pool. While the send
// queue is full the events stay buffered for a later flush or Close.
func (fe *FlushEngineImpl) FlushEvents() {
	if fe.queueFull() {
		return
	}
	if b, ok := fe.drainEvents(); ok {
		fe.enqueue(b)
	}
}

func (fe *FlushEngineImpl) FlushTraces() {
	if fe.queueFull() {
		return
	}
	if b, ok := fe.drainTraces(); ok {
		fe.enqueue(b)
	}
}

func (fe *FlushEngineImpl) FlushSync(ctx context.Context) {
	if b, ok := fe.drainEvents(); ok {
		fe.send(ctx, b)
	}
	if b, ok := fe.drainTraces(); ok {
		fe.send(ctx, b)
	}
}

// Close stops the periodic flush, sends whatever is buffered and waits for the
// workers to finish the batches already queued.
func (fe *FlushEngineImpl) Close(ctx context.Context) error {
	alreadyClosed := true
	fe.closeOnce.Do(func() {
		alreadyClosed = false
		close(fe.stopTimer)
		<-fe.timerDone

		fe.FlushSync(ctx)

		fe.mu.Lock()
		fe.closed = true
		close(fe.queue)
		fe.mu.Unlock()
	})
	if alreadyClosed {
		return ErrEngineClosed
	}

	done := make(chan struct{})
	go func() {
		fe.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (fe *FlushEngineImpl) drainEvents() (batch, bool) {
	events := fe.events.Drain()
	if len(events) == 0 {
		return batch{}, false
	}
	return batch{kind: delivery.Events, events: events}, true
}

func (fe *FlushEngineImpl) drainTraces() (batch, bool) {
	payloads := fe.traces.Drain()
	if len(payloads) == 0 {
		return batch{}, false
	}
	return batch{kind: delivery.Traces, traces: payloads}, true
}

func (fe *FlushEngineImpl) queueFull() bool {
	fe.mu.RLock()
	defer fe.mu.RUnlock()
	return !fe.closed && len(fe.queue) == cap(fe.queue)
}

// enqueue never blocks. The queue can only be full here when another flush
// filled the last slot between queueFull and the drain.
func (fe *FlushEngineImpl) enqueue(b batch) {
	fe.mu.RLock()
	defer fe.mu.RUnlock()
	if fe.closed {
		fe.dropped(b.kind, metrics.ReasonClosed, b.items())
		return
	}
	select {
	case fe.queue <- b:
	default:
		fe.dropped(b.kind, metrics.ReasonQueueFull, b.items())
	}
}

func (fe *FlushEngineImpl) send(ctx context.Context, b batch) {
	err := fe.sender.Send(ctx, b.kind, b.body())
	if err != nil {
		fe.metrics.BatchesFailed.WithLabelValues(string(b.kind)).Inc()
		fe.logger.Debug(
			"Failed to deliver telemetry batch, discarding it",
			zap.String("kind", string(b.kind)),
			zap.Int("items", b.items()),
			zap.Error(err),
		)
		return
	}
	fe.metrics.BatchesSent.WithLabelValues(string(b.kind)).Inc()
}

func (fe *FlushEngineImpl) runWorker() {
	defer fe.workers.Done()
	for b := range fe.queue {
		fe.send(context.Background(), b)
	}
}

func (fe *FlushEngineImpl) runTimer() {
	defer close(fe.timerDone)
	defer fe.ticker.Stop()
	for {
		select {
		case <-fe.ticker.C:
			fe.Flush()
		case <-fe.stopTimer:
			return
		}
	}
}

func (fe *FlushEngineImpl) dropped(kind delivery.BatchKind, reason string, items int) {
	fe.metrics.ItemsDropped.WithLabelValues(string(kind), reason).Add(float64(items))
	fe.logger.Debug(
		"Dropped telemetry before delivery",
		zap.String("kind", string(kind)),
		zap.String("reason", reason),
		zap.Int("items", items),
	)
}

var ErrEngineClosed = errors.New("flush engine is already closed")
