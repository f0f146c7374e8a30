package event_bus

import (
	"errors"
	"fmt"
	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"
	"sync"
)

var ErrBusClosed = errors.New("event bus is closed")

// FailureObserver is told about every handler that returned an error or panicked.
type FailureObserver func(topic string)

// FlareEventBus fans one batch type out to the handlers subscribed on a topic.
// Handlers receive the published value itself, so they must treat it as read only.
type FlareEventBus[T any] interface {
	Subscribe(topic string, handler func(batch T) error, transactional bool) error
	Publish(topic string, batch T) error
	Close()
}

type FlareEventBusImpl[T any] struct {
	eventBus  EventBus.Bus
	onFailure FailureObserver
	logger    *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewFlareEventBus wraps eventBus for batches of type T. Several typed buses can
// share one EventBus.Bus as long as each topic carries a single type.
func NewFlareEventBus[T any](
	eventBus EventBus.Bus,
	onFailure FailureObserver,
	logger *zap.Logger,
) *FlareEventBusImpl[T] {
	if onFailure == nil {
		onFailure = func(string) {}
	}
	return &FlareEventBusImpl[T]{
		eventBus:  eventBus,
		onFailure: onFailure,
		logger:    logger,
	}
}

// Subscribe runs handler asynchronously for every batch published on topic.
// Failures are logged and reported to the failure observer; nothing is redelivered.
func (ev *FlareEventBusImpl[T]) Subscribe(
	topic string,
	handler func(batch T) error,
	transactional bool,
) error {
	err := ev.eventBus.SubscribeAsync(
		topic,
		func(batch T) {
			if err := ev.handle(handler, batch); err != nil {
				ev.onFailure(topic)
				ev.logger.Error("Failed to handle batch published on topic",
					zap.String("topic", topic),
					zap.Error(err),
				)
			}
		},
		transactional,
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	return nil
}

func (ev *FlareEventBusImpl[T]) handle(handler func(batch T) error, batch T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(batch)
}

func (ev *FlareEventBusImpl[T]) Publish(topic string, batch T) error {
	ev.mu.RLock()
	defer ev.mu.RUnlock()
	if ev.closed {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, ErrBusClosed)
	}
	ev.eventBus.Publish(topic, batch)
	return nil
}

// Close rejects further publishes and waits for the handlers already running.
func (ev *FlareEventBusImpl[T]) Close() {
	ev.mu.Lock()
	ev.closed = true
	ev.mu.Unlock()
	ev.eventBus.WaitAsync()
}
