package delivery

import (
	"context"
	"errors"
	"fmt"
)

type BatchKind string

const (
	Events BatchKind = "events"
	Traces BatchKind = "traces"
)

const (
	EventsPath = "/v1/ingest/batch"
	TracesPath = "/v1/traces/batch"
)

const (
	SignatureHeader  = "X-Signature"
	ProjectKeyHeader = "X-Project-Key"
)

// Sender delivers one serialized batch. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, kind BatchKind, body []byte) error
}

func PathFor(kind BatchKind) (string, error) {
	switch kind {
	case Events:
		return EventsPath, nil
	case Traces:
		return TracesPath, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBatchKind, kind)
	}
}

type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("collector responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("collector responded with status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrDeliveryFailed
}

var (
	ErrDeliveryFailed   = errors.New("telemetry batch delivery failed")
	ErrUnknownBatchKind = errors.New("unknown batch kind")
)
