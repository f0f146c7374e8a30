package model

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	enc "github.com/Avi18971911/flare/pkg/json_encoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRecorder struct {
	mu       sync.Mutex
	payloads []string
}

func (r *recordingRecorder) RecordTrace(payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
}

func withFixedClock(t *testing.T, times ...time.Time) {
	original := now
	i := 0
	now = func() time.Time {
		ts := times[i]
		if i < len(times)-1 {
			i++
		}
		return ts
	}
	t.Cleanup(func() { now = original })
}

func decode(t *testing.T, payload string) map[string]any {
	var out map[string]any
	require.Nil(t, json.Unmarshal([]byte(payload), &out))
	return out
}

func TestSpan(t *testing.T) {
	t.Run("should serialize as ok before End is called", func(t *testing.T) {
		span := NewSpan(Tool, "search")
		assert.Equal(t, SpanOK, span.Status())
		assert.Contains(t, enc.Encode(span.ToValue()), `"status":"ok"`)
		assert.NotContains(t, enc.Encode(span.ToValue()), "latency_ms")
	})

	t.Run("should merge partial usage updates", func(t *testing.T) {
		span := NewSpan(Generation, "completion")
		span.SetUsage(WithInputTokens(50), WithOutputTokens(150), WithCost(0.01))
		span.SetUsage(WithInputTokens(75))

		usage := span.Usage()
		require.NotNil(t, usage.InputTokens)
		require.NotNil(t, usage.OutputTokens)
		require.NotNil(t, usage.Cost)
		assert.Equal(t, int64(75), *usage.InputTokens)
		assert.Equal(t, int64(150), *usage.OutputTokens)
		assert.Equal(t, 0.01, *usage.Cost)
		assert.Nil(t, usage.TimeToFirstTokenMs)
	})

	t.Run("should compute latency and status on End", func(t *testing.T) {
		start := time.UnixMilli(1_000)
		withFixedClock(t, start, start.Add(250*time.Millisecond))
		span := NewSpan(Generation, "completion", WithModel("gpt"), WithProvider("openai"))
		span.End(WithErrorMessage("rate limited"))

		expected := `{"id":"` + span.ID + `","span_type":"generation","name":"completion","started_at":1000,` +
			`"status":"error","model":"gpt","provider":"openai","latency_ms":250,"error_message":"rate limited"}`
		assert.Equal(t, expected, enc.Encode(span.ToValue()))
	})

	t.Run("should ignore a second End", func(t *testing.T) {
		span := NewSpan(Custom, "step")
		span.End(WithOutput("first"))
		span.End(WithSpanStatus(SpanError), WithOutput("second"))
		assert.Equal(t, SpanOK, span.Status())
		assert.Contains(t, enc.Encode(span.ToValue()), `"output":"first"`)
	})

	t.Run("should emit every optional key in wire order", func(t *testing.T) {
		start := time.UnixMilli(5_000)
		withFixedClock(t, start, start.Add(40*time.Millisecond))
		span := NewSpan(
			Retrieval,
			"lookup",
			WithParentSpanID("parent"),
			WithModel("m"),
			WithProvider("p"),
			WithSpanInput("q"),
			WithSpanMetadata(enc.Object{enc.Field("k", enc.Int(1))}),
		)
		span.SetUsage(WithInputTokens(1), WithOutputTokens(2), WithCost(0.5), WithTimeToFirstToken(12*time.Millisecond))
		span.End(WithOutput("a"), WithErrorMessage("e"), WithSpanStatus(SpanOK))

		expected := `{"id":"` + span.ID + `","span_type":"retrieval","name":"lookup","started_at":5000,"status":"ok",` +
			`"parent_span_id":"parent","model":"m","provider":"p","input_tokens":1,"output_tokens":2,"cost":0.5,` +
			`"latency_ms":40,"time_to_first_token_ms":12,"error_message":"e","input":"q","output":"a",` +
			`"metadata":{"k":1}}`
		assert.Equal(t, expected, enc.Encode(span.ToValue()))
	})
}

func TestTrace(t *testing.T) {
	t.Run("should end as completed and record once", func(t *testing.T) {
		recorder := &recordingRecorder{}
		trace := NewTrace("chat", recorder)
		trace.StartSpan(Generation, "llm").End()
		trace.End()
		trace.End(WithTraceStatus(TraceError))

		assert.Equal(t, TraceCompleted, trace.Status())
		endedAt, ok := trace.EndedAt()
		assert.True(t, ok)
		assert.False(t, endedAt.Before(trace.StartedAt))
		require.Len(t, recorder.payloads, 1)

		decoded := decode(t, recorder.payloads[0])
		assert.Equal(t, "completed", decoded["status"])
		assert.Len(t, decoded["spans"], 1)
	})

	t.Run("should record once when End races across goroutines", func(t *testing.T) {
		recorder := &recordingRecorder{}
		trace := NewTrace("chat", recorder)
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				if i%2 == 0 {
					trace.End(WithTraceStatus(TraceError))
					return
				}
				trace.End()
			}(i)
		}
		close(start)
		wg.Wait()

		recorder.mu.Lock()
		defer recorder.mu.Unlock()
		require.Len(t, recorder.payloads, 1)
		assert.Equal(t, string(trace.Status()), decode(t, recorder.payloads[0])["status"])
	})

	t.Run("should use the status passed to End", func(t *testing.T) {
		recorder := &recordingRecorder{}
		trace := NewTrace("chat", recorder)
		trace.End(WithTraceStatus(TraceError), WithTraceOutput("partial"))
		assert.Equal(t, TraceError, trace.Status())
		decoded := decode(t, recorder.payloads[0])
		assert.Equal(t, "error", decoded["status"])
		assert.Equal(t, "partial", decoded["output"])
	})

	t.Run("should serialize in wire order with nested spans", func(t *testing.T) {
		start := time.UnixMilli(10_000)
		withFixedClock(t, start)
		trace := NewTrace(
			"agent",
			nil,
			WithSessionID("s"),
			WithUserID("u"),
			WithTraceInput("hi"),
			WithTraceMetadata(enc.Object{enc.Field("team", enc.String("x"))}),
			WithPrompt("greeter", "3"),
		)
		span := trace.StartSpan(Tool, "calc")
		trace.End(WithTraceOutput("bye"))

		expected := `{"id":"` + trace.ID + `","name":"agent","status":"completed","started_at":10000,` +
			`"session_id":"s","user_id":"u","input":"hi","output":"bye","metadata":{"team":"x"},` +
			`"prompt_name":"greeter","prompt_version":"3","ended_at":10000,"spans":[` +
			`{"id":"` + span.ID + `","span_type":"tool","name":"calc","started_at":10000,"status":"ok"}]}`
		assert.Equal(t, expected, trace.ToJSON())
	})

	t.Run("should keep spans appended concurrently", func(t *testing.T) {
		trace := NewTrace("fanout", nil)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				trace.StartSpan(Custom, "work").End()
			}()
		}
		wg.Wait()
		assert.Len(t, trace.Spans(), 50)
	})

	t.Run("should render running and an empty span list before End", func(t *testing.T) {
		trace := NewTrace("pending", nil)
		payload := trace.ToJSON()
		assert.Contains(t, payload, `"status":"running"`)
		assert.True(t, strings.HasSuffix(payload, `"spans":[]}`))
		assert.NotContains(t, payload, "ended_at")
	})
}

func TestTracesBody(t *testing.T) {
	t.Run("should join payloads into a traces array", func(t *testing.T) {
		body := TracesBody([]string{`{"id":"a"}`, `{"id":"b"}`})
		assert.Equal(t, `{"traces":[{"id":"a"},{"id":"b"}]}`, string(body))
	})
}
