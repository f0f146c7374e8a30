package model

import (
	enc "github.com/Avi18971911/flare/pkg/json_encoder"
	"github.com/google/uuid"
	"strings"
	"sync"
	"time"
)

type TraceStatus string

const (
	TraceRunning   TraceStatus = "running"
	TraceCompleted TraceStatus = "completed"
	TraceError     TraceStatus = "error"
)

var now = time.Now

// Recorder receives the serialized form of a trace once it has ended.
type Recorder interface {
	RecordTrace(payload string)
}

type Trace struct {
	ID            string
	Name          string
	SessionID     *string
	UserID        *string
	Input         *string
	Metadata      enc.Object
	PromptName    *string
	PromptVersion *string
	StartedAt     time.Time

	recorder Recorder
	mu       sync.Mutex
	status   TraceStatus
	spans    []*Span
	output   *string
	endedAt  *time.Time
}

type TraceOption func(*Trace)

func WithSessionID(sessionID string) TraceOption {
	return func(t *Trace) { t.SessionID = &sessionID }
}

func WithUserID(userID string) TraceOption {
	return func(t *Trace) { t.UserID = &userID }
}

func WithTraceInput(input string) TraceOption {
	return func(t *Trace) { t.Input = &input }
}

func WithTraceMetadata(metadata enc.Object) TraceOption {
	return func(t *Trace) { t.Metadata = metadata }
}

func WithPrompt(name string, version string) TraceOption {
	return func(t *Trace) {
		t.PromptName = &name
		t.PromptVersion = &version
	}
}

func NewTrace(name string, recorder Recorder, opts ...TraceOption) *Trace {
	t := &Trace{
		ID:        uuid.NewString(),
		Name:      name,
		StartedAt: now(),
		recorder:  recorder,
		status:    TraceRunning,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartSpan creates a span and appends it to the trace. Spans started after
// End are kept in memory but never shipped.
func (t *Trace) StartSpan(spanType SpanType, name string, opts ...SpanOption) *Span {
	span := NewSpan(spanType, name, opts...)
	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.mu.Unlock()
	return span
}

func (t *Trace) Spans() []*Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	spans := make([]*Span, len(t.spans))
	copy(spans, t.spans)
	return spans
}

func (t *Trace) Status() TraceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Trace) EndedAt() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.endedAt == nil {
		return time.Time{}, false
	}
	return *t.endedAt, true
}

type traceEnd struct {
	status TraceStatus
	output *string
}

type TraceEndOption func(*traceEnd)

func WithTraceOutput(output string) TraceEndOption {
	return func(e *traceEnd) { e.output = &output }
}

func WithTraceStatus(status TraceStatus) TraceEndOption {
	return func(e *traceEnd) { e.status = status }
}

// End closes the trace and hands its serialized form to the recorder. It is
// terminal: calls after the first are ignored.
func (t *Trace) End(opts ...TraceEndOption) {
	e := traceEnd{status: TraceCompleted}
	for _, opt := range opts {
		opt(&e)
	}
	if e.status == TraceRunning {
		e.status = TraceCompleted
	}
	t.mu.Lock()
	if t.status != TraceRunning {
		t.mu.Unlock()
		return
	}
	endedAt := now()
	if endedAt.Before(t.StartedAt) {
		endedAt = t.StartedAt
	}
	t.status = e.status
	t.output = e.output
	t.endedAt = &endedAt
	t.mu.Unlock()

	payload := t.ToJSON()
	if t.recorder != nil {
		t.recorder.RecordTrace(payload)
	}
}

func (t *Trace) ToValue() enc.Object {
	t.mu.Lock()
	obj := enc.Object{
		enc.Field("id", enc.String(t.ID)),
		enc.Field("name", enc.String(t.Name)),
		enc.Field("status", enc.String(t.status)),
		enc.Field("started_at", enc.Int(t.StartedAt.UnixMilli())),
	}
	obj = appendOptionalString(obj, "session_id", t.SessionID)
	obj = appendOptionalString(obj, "user_id", t.UserID)
	obj = appendOptionalString(obj, "input", t.Input)
	obj = appendOptionalString(obj, "output", t.output)
	if t.Metadata != nil {
		obj = append(obj, enc.Field("metadata", t.Metadata))
	}
	obj = appendOptionalString(obj, "prompt_name", t.PromptName)
	obj = appendOptionalString(obj, "prompt_version", t.PromptVersion)
	if t.endedAt != nil {
		obj = append(obj, enc.Field("ended_at", enc.Int(t.endedAt.UnixMilli())))
	}
	spans := make([]*Span, len(t.spans))
	copy(spans, t.spans)
	t.mu.Unlock()

	list := make(enc.Array, len(spans))
	for i, span := range spans {
		list[i] = span.ToValue()
	}
	return append(obj, enc.Field("spans", list))
}

func (t *Trace) ToJSON() string {
	return enc.Encode(t.ToValue())
}

// TracesBody joins already serialized traces into {"traces":[...]}.
func TracesBody(payloads []string) []byte {
	var b strings.Builder
	b.WriteString(`{"traces":[`)
	for i, p := range payloads {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p)
	}
	b.WriteString(`]}`)
	return []byte(b.String())
}
