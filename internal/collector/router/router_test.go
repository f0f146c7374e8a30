package router

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Avi18971911/flare/internal/collector/config"
	"github.com/Avi18971911/flare/internal/collector/handler"
	"github.com/Avi18971911/flare/internal/collector/model"
	"github.com/Avi18971911/flare/pkg/delivery"
	"github.com/Avi18971911/flare/pkg/signer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "collector-secret"

type recordingPublisher[T any] struct {
	mu        sync.Mutex
	topics    []string
	published []T
	err       error
}

func (p *recordingPublisher[T]) Publish(topic string, arg T) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.published = append(p.published, arg)
	return nil
}

func (p *recordingPublisher[T]) snapshot() ([]string, []T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...), append([]T(nil), p.published...)
}

func (p *recordingPublisher[T]) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

type fixture struct {
	server   *httptest.Server
	events   *recordingPublisher[model.EventBatch]
	traces   *recordingPublisher[model.TraceBatch]
	metrics  *handler.CollectorMetrics
	registry *prometheus.Registry
}

func newFixture(t *testing.T, projectKeys ...string) *fixture {
	cfg := config.Default()
	cfg.Secret = testSecret
	cfg.ProjectKeys = projectKeys
	reg := prometheus.NewRegistry()
	f := &fixture{
		events:   &recordingPublisher[model.EventBatch]{},
		traces:   &recordingPublisher[model.TraceBatch]{},
		metrics:  handler.NewCollectorMetrics(reg),
		registry: reg,
	}
	f.server = httptest.NewServer(CreateRouter(cfg, f.events, f.traces, f.metrics, reg, zap.NewNop()))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) post(t *testing.T, path string, body string, signature string, projectKey string) *http.Response {
	req, err := http.NewRequest(http.MethodPost, f.server.URL+path, bytes.NewReader([]byte(body)))
	require.Nil(t, err)
	req.Header.Set(delivery.SignatureHeader, signature)
	if projectKey != "" {
		req.Header.Set(delivery.ProjectKeyHeader, projectKey)
	}
	res, err := http.DefaultClient.Do(req)
	require.Nil(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func sign(body string) string {
	return signer.Sign([]byte(body), []byte(testSecret))
}

func TestCreateRouter(t *testing.T) {
	eventBody := `{"events":[{"timestamp":1700000000000,"source":"go","environment":"test","release":"1.0",` +
		`"error_type":"Timeout","message":"upstream timed out","http_status":504}]}`
	traceBody := `{"traces":[{"id":"t-1","name":"rag","status":"completed","started_at":10,"ended_at":30,` +
		`"spans":[{"id":"s-1","span_type":"generation","name":"answer","started_at":12,"status":"ok","input_tokens":5}]}]}`

	t.Run("should accept a signed event batch and publish it", func(t *testing.T) {
		f := newFixture(t)
		res := f.post(t, delivery.EventsPath, eventBody, sign(eventBody), "web")

		assert.Equal(t, http.StatusAccepted, res.StatusCode)
		topics, published := f.events.snapshot()
		require.Len(t, published, 1)
		assert.Equal(t, []string{model.EventsTopic}, topics)
		event := published[0].Events[0]
		assert.Equal(t, "Timeout", event.ErrorType)
		assert.Equal(t, 504, *event.HTTPStatus)
		assert.Equal(t, "web", event.ProjectKey)
		assert.False(t, event.ReceivedAt.IsZero())
		assert.Equal(t, float64(1), testutil.ToFloat64(
			f.metrics.BatchesReceived.WithLabelValues("events", handler.OutcomeAccepted),
		))
	})

	t.Run("should accept a signed trace batch and publish it", func(t *testing.T) {
		f := newFixture(t)
		res := f.post(t, delivery.TracesPath, traceBody, sign(traceBody), "")

		assert.Equal(t, http.StatusAccepted, res.StatusCode)
		_, published := f.traces.snapshot()
		require.Len(t, published, 1)
		trace := published[0].Traces[0]
		assert.Equal(t, "rag", trace.Name)
		assert.Equal(t, int64(30), *trace.EndedAt)
		require.Len(t, trace.Spans, 1)
		assert.Equal(t, int64(5), *trace.Spans[0].InputTokens)
	})

	t.Run("should reject a bad signature with 401", func(t *testing.T) {
		f := newFixture(t)
		res := f.post(t, delivery.EventsPath, eventBody, signer.Sign([]byte(eventBody), []byte("wrong")), "")

		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
		_, published := f.events.snapshot()
		assert.Empty(t, published)
		assert.Equal(t, float64(1), testutil.ToFloat64(
			f.metrics.BatchesReceived.WithLabelValues("events", handler.OutcomeBadSignature),
		))
	})

	t.Run("should reject a body altered after signing", func(t *testing.T) {
		f := newFixture(t)
		tampered := strings.Replace(eventBody, "504", "500", 1)
		res := f.post(t, delivery.EventsPath, tampered, sign(eventBody), "")
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("should reject an unknown project key with 403", func(t *testing.T) {
		f := newFixture(t, "web")
		res := f.post(t, delivery.EventsPath, eventBody, sign(eventBody), "mobile")
		assert.Equal(t, http.StatusForbidden, res.StatusCode)
		_, published := f.events.snapshot()
		assert.Empty(t, published)
	})

	t.Run("should reject malformed json with 400", func(t *testing.T) {
		f := newFixture(t)
		body := `{"events":[`
		res := f.post(t, delivery.EventsPath, body, sign(body), "")
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		assert.Equal(t, float64(1), testutil.ToFloat64(
			f.metrics.BatchesReceived.WithLabelValues("events", handler.OutcomeMalformed),
		))
	})

	t.Run("should accept an empty batch without publishing", func(t *testing.T) {
		f := newFixture(t)
		body := `{"events":[]}`
		res := f.post(t, delivery.EventsPath, body, sign(body), "")
		assert.Equal(t, http.StatusAccepted, res.StatusCode)
		_, published := f.events.snapshot()
		assert.Empty(t, published)
	})

	t.Run("should answer 500 when publishing fails", func(t *testing.T) {
		f := newFixture(t)
		f.traces.fail(errors.New("bus closed"))
		res := f.post(t, delivery.TracesPath, traceBody, sign(traceBody), "")
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	})

	t.Run("should expose collector metrics", func(t *testing.T) {
		f := newFixture(t)
		f.post(t, delivery.EventsPath, eventBody, sign(eventBody), "")

		res, err := http.Get(f.server.URL + "/metrics")
		require.Nil(t, err)
		defer res.Body.Close()
		body, err := io.ReadAll(res.Body)
		require.Nil(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Contains(t, string(body), "flare_collector_batches_received_total")
	})
}
