package model

import (
	enc "github.com/Avi18971911/flare/pkg/json_encoder"
	"github.com/google/uuid"
	"sync"
	"time"
)

type SpanType string

const (
	Generation SpanType = "generation"
	Tool       SpanType = "tool"
	Retrieval  SpanType = "retrieval"
	Custom     SpanType = "custom"
)

type SpanStatus string

const (
	SpanOK    SpanStatus = "ok"
	SpanError SpanStatus = "error"
)

// Span is one timed unit of work inside a trace. Identity fields are fixed at
// creation; outcome fields are written through SetUsage and End.
type Span struct {
	ID           string
	Type         SpanType
	Name         string
	Model        *string
	Provider     *string
	Input        *string
	Metadata     enc.Object
	ParentSpanID *string
	StartedAt    time.Time

	mu                 sync.Mutex
	ended              bool
	status             *SpanStatus
	inputTokens        *int64
	outputTokens       *int64
	cost               *float64
	latencyMs          *int64
	timeToFirstTokenMs *int64
	errorMessage       *string
	output             *string
}

type SpanOption func(*Span)

func WithModel(model string) SpanOption {
	return func(s *Span) { s.Model = &model }
}

func WithProvider(provider string) SpanOption {
	return func(s *Span) { s.Provider = &provider }
}

func WithSpanInput(input string) SpanOption {
	return func(s *Span) { s.Input = &input }
}

func WithSpanMetadata(metadata enc.Object) SpanOption {
	return func(s *Span) { s.Metadata = metadata }
}

// WithParentSpanID links the span under another span. The id is not checked
// against the spans of the trace.
func WithParentSpanID(parentSpanID string) SpanOption {
	return func(s *Span) { s.ParentSpanID = &parentSpanID }
}

func NewSpan(spanType SpanType, name string, opts ...SpanOption) *Span {
	s := &Span{
		ID:        uuid.NewString(),
		Type:      spanType,
		Name:      name,
		StartedAt: now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Usage struct {
	InputTokens        *int64
	OutputTokens       *int64
	Cost               *float64
	TimeToFirstTokenMs *int64
}

type UsageOption func(*Usage)

func WithInputTokens(n int64) UsageOption {
	return func(u *Usage) { u.InputTokens = &n }
}

func WithOutputTokens(n int64) UsageOption {
	return func(u *Usage) { u.OutputTokens = &n }
}

func WithCost(cost float64) UsageOption {
	return func(u *Usage) { u.Cost = &cost }
}

func WithTimeToFirstToken(d time.Duration) UsageOption {
	return func(u *Usage) {
		ms := d.Milliseconds()
		u.TimeToFirstTokenMs = &ms
	}
}

// SetUsage merges the given fields into the span. Fields not given keep their
// previous value.
func (s *Span) SetUsage(opts ...UsageOption) {
	var u Usage
	for _, opt := range opts {
		opt(&u)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.InputTokens != nil {
		s.inputTokens = u.InputTokens
	}
	if u.OutputTokens != nil {
		s.outputTokens = u.OutputTokens
	}
	if u.Cost != nil {
		s.cost = u.Cost
	}
	if u.TimeToFirstTokenMs != nil {
		s.timeToFirstTokenMs = u.TimeToFirstTokenMs
	}
}

func (s *Span) Usage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Usage{
		InputTokens:        s.inputTokens,
		OutputTokens:       s.outputTokens,
		Cost:               s.cost,
		TimeToFirstTokenMs: s.timeToFirstTokenMs,
	}
}

type spanEnd struct {
	status       *SpanStatus
	output       *string
	errorMessage *string
}

type SpanEndOption func(*spanEnd)

func WithOutput(output string) SpanEndOption {
	return func(e *spanEnd) { e.output = &output }
}

// WithErrorMessage marks the span as failed unless a status is given explicitly.
func WithErrorMessage(message string) SpanEndOption {
	return func(e *spanEnd) { e.errorMessage = &message }
}

func WithSpanStatus(status SpanStatus) SpanEndOption {
	return func(e *spanEnd) { e.status = &status }
}

// End records the outcome and latency of the span. Only the first call has an effect.
func (s *Span) End(opts ...SpanEndOption) {
	var e spanEnd
	for _, opt := range opts {
		opt(&e)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	status := SpanOK
	if e.errorMessage != nil {
		status = SpanError
	}
	if e.status != nil {
		status = *e.status
	}
	s.status = &status
	s.output = e.output
	s.errorMessage = e.errorMessage
	latency := now().Sub(s.StartedAt).Milliseconds()
	s.latencyMs = &latency
}

// Status reports SpanOK for a span that has not ended.
func (s *Span) Status() SpanStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil {
		return SpanOK
	}
	return *s.status
}

func (s *Span) ToValue() enc.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := SpanOK
	if s.status != nil {
		status = *s.status
	}
	obj := enc.Object{
		enc.Field("id", enc.String(s.ID)),
		enc.Field("span_type", enc.String(s.Type)),
		enc.Field("name", enc.String(s.Name)),
		enc.Field("started_at", enc.Int(s.StartedAt.UnixMilli())),
		enc.Field("status", enc.String(status)),
	}
	obj = appendOptionalString(obj, "parent_span_id", s.ParentSpanID)
	obj = appendOptionalString(obj, "model", s.Model)
	obj = appendOptionalString(obj, "provider", s.Provider)
	obj = appendOptionalInt(obj, "input_tokens", s.inputTokens)
	obj = appendOptionalInt(obj, "output_tokens", s.outputTokens)
	if s.cost != nil {
		obj = append(obj, enc.Field("cost", enc.Float(*s.cost)))
	}
	obj = appendOptionalInt(obj, "latency_ms", s.latencyMs)
	obj = appendOptionalInt(obj, "time_to_first_token_ms", s.timeToFirstTokenMs)
	obj = appendOptionalString(obj, "error_message", s.errorMessage)
	obj = appendOptionalString(obj, "input", s.Input)
	obj = appendOptionalString(obj, "output", s.output)
	if s.Metadata != nil {
		obj = append(obj, enc.Field("metadata", s.Metadata))
	}
	return obj
}

func appendOptionalString(obj enc.Object, key string, value *string) enc.Object {
	if value == nil {
		return obj
	}
	return append(obj, enc.Field(key, enc.String(*value)))
}

func appendOptionalInt(obj enc.Object, key string, value *int64) enc.Object {
	if value == nil {
		return obj
	}
	return append(obj, enc.Field(key, enc.Int(*value)))
}
