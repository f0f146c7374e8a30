package model

import "time"

const EventsTopic = "collector_events"
const TracesTopic = "collector_traces"

type EventDocument struct {
	Timestamp        int64          `json:"timestamp"`
	Source           string         `json:"source"`
	Environment      string         `json:"environment"`
	Release          string         `json:"release"`
	AppVersion       *string        `json:"app_version,omitempty"`
	BuildNumber      *string        `json:"build_number,omitempty"`
	RouteOrProcedure *string        `json:"route_or_procedure,omitempty"`
	Screen           *string        `json:"screen,omitempty"`
	ErrorType        string         `json:"error_type"`
	Message          string         `json:"message"`
	Stack            *string        `json:"stack,omitempty"`
	HTTPStatus       *int           `json:"http_status,omitempty"`
	RequestID        *string        `json:"request_id,omitempty"`
	UserIDHash       *string        `json:"user_id_hash,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	ProjectKey       string         `json:"project_key,omitempty"`
	ReceivedAt       time.Time      `json:"received_at"`
}

type SpanDocument struct {
	ID                 string         `json:"id"`
	SpanType           string         `json:"span_type"`
	Name               string         `json:"name"`
	StartedAt          int64          `json:"started_at"`
	Status             string         `json:"status"`
	ParentSpanID       *string        `json:"parent_span_id,omitempty"`
	Model              *string        `json:"model,omitempty"`
	Provider           *string        `json:"provider,omitempty"`
	InputTokens        *int64         `json:"input_tokens,omitempty"`
	OutputTokens       *int64         `json:"output_tokens,omitempty"`
	Cost               *float64       `json:"cost,omitempty"`
	LatencyMs          *int64         `json:"latency_ms,omitempty"`
	TimeToFirstTokenMs *int64         `json:"time_to_first_token_ms,omitempty"`
	ErrorMessage       *string        `json:"error_message,omitempty"`
	Input              *string        `json:"input,omitempty"`
	Output             *string        `json:"output,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

type TraceDocument struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Status        string         `json:"status"`
	StartedAt     int64          `json:"started_at"`
	SessionID     *string        `json:"session_id,omitempty"`
	UserID        *string        `json:"user_id,omitempty"`
	Input         *string        `json:"input,omitempty"`
	Output        *string        `json:"output,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	PromptName    *string        `json:"prompt_name,omitempty"`
	PromptVersion *string        `json:"prompt_version,omitempty"`
	EndedAt       *int64         `json:"ended_at,omitempty"`
	Spans         []SpanDocument `json:"spans"`
	ProjectKey    string         `json:"project_key,omitempty"`
	ReceivedAt    time.Time      `json:"received_at"`
}

type EventBatch struct {
	Events []EventDocument `json:"events"`
}

type TraceBatch struct {
	Traces []TraceDocument `json:"traces"`
}
