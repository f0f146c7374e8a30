package sink

import (
	"context"
	"fmt"
	"github.com/Avi18971911/flare/internal/collector/model"
	"github.com/google/uuid"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	common "go.opentelemetry.io/proto/otlp/common/v1"
	resource "go.opentelemetry.io/proto/otlp/resource/v1"
	v1 "go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const scopeName = "flare"

type OTLPForwarder struct {
	client      protoTrace.TraceServiceClient
	serviceName string
	logger      *zap.Logger
}

func NewOTLPForwarder(conn grpc.ClientConnInterface, serviceName string, logger *zap.Logger) *OTLPForwarder {
	return &OTLPForwarder{
		client:      protoTrace.NewTraceServiceClient(conn),
		serviceName: serviceName,
		logger:      logger,
	}
}

// ForwardTraces exports the batch as one OTLP request, one resource per project key.
func (f *OTLPForwarder) ForwardTraces(ctx context.Context, batch model.TraceBatch) error {
	if len(batch.Traces) == 0 {
		return nil
	}
	req := ToExportRequest(batch, f.serviceName)
	res, err := f.client.Export(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to export traces over OTLP: %w", err)
	}
	if partial := res.GetPartialSuccess(); partial != nil && partial.GetRejectedSpans() > 0 {
		f.logger.Warn("OTLP endpoint rejected spans",
			zap.Int64("rejected_spans", partial.GetRejectedSpans()),
			zap.String("error_message", partial.GetErrorMessage()),
		)
	}
	return nil
}

func ToExportRequest(batch model.TraceBatch, serviceName string) *protoTrace.ExportTraceServiceRequest {
	byProject := map[string]*v1.ResourceSpans{}
	var order []string
	for _, trace := range batch.Traces {
		rs, ok := byProject[trace.ProjectKey]
		if !ok {
			rs = newResourceSpans(serviceName, trace.ProjectKey)
			byProject[trace.ProjectKey] = rs
			order = append(order, trace.ProjectKey)
		}
		rs.ScopeSpans[0].Spans = append(rs.ScopeSpans[0].Spans, toSpans(trace)...)
	}
	req := &protoTrace.ExportTraceServiceRequest{}
	for _, key := range order {
		req.ResourceSpans = append(req.ResourceSpans, byProject[key])
	}
	return req
}

func newResourceSpans(serviceName string, projectKey string) *v1.ResourceSpans {
	attributes := []*common.KeyValue{stringAttribute("service.name", serviceName)}
	if projectKey != "" {
		attributes = append(attributes, stringAttribute("flare.project_key", projectKey))
	}
	return &v1.ResourceSpans{
		Resource: &resource.Resource{Attributes: attributes},
		ScopeSpans: []*v1.ScopeSpans{
			{Scope: &common.InstrumentationScope{Name: scopeName}},
		},
	}
}

// toSpans emits a root span for the trace followed by its child spans.
// Spans without a parent hang off the root.
func toSpans(trace model.TraceDocument) []*v1.Span {
	traceID := idBytes(trace.ID)
	rootID := traceID[8:]
	end := trace.StartedAt
	if trace.EndedAt != nil {
		end = *trace.EndedAt
	}

	root := &v1.Span{
		TraceId:           traceID,
		SpanId:            rootID,
		Name:              trace.Name,
		Kind:              v1.Span_SPAN_KIND_INTERNAL,
		StartTimeUnixNano: millisToNanos(trace.StartedAt),
		EndTimeUnixNano:   millisToNanos(end),
		Status:            traceStatus(trace.Status),
	}
	if trace.SessionID != nil {
		root.Attributes = append(root.Attributes, stringAttribute("session.id", *trace.SessionID))
	}
	if trace.UserID != nil {
		root.Attributes = append(root.Attributes, stringAttribute("user.id", *trace.UserID))
	}
	if trace.PromptName != nil {
		root.Attributes = append(root.Attributes, stringAttribute("flare.prompt.name", *trace.PromptName))
	}
	if trace.PromptVersion != nil {
		root.Attributes = append(root.Attributes, stringAttribute("flare.prompt.version", *trace.PromptVersion))
	}

	spans := []*v1.Span{root}
	for _, span := range trace.Spans {
		parentID := rootID
		if span.ParentSpanID != nil {
			parentID = idBytes(*span.ParentSpanID)[:8]
		}
		spanEnd := span.StartedAt
		if span.LatencyMs != nil {
			spanEnd += *span.LatencyMs
		}
		spans = append(spans, &v1.Span{
			TraceId:           traceID,
			SpanId:            idBytes(span.ID)[:8],
			ParentSpanId:      parentID,
			Name:              span.Name,
			Kind:              spanKind(span.SpanType),
			StartTimeUnixNano: millisToNanos(span.StartedAt),
			EndTimeUnixNano:   millisToNanos(spanEnd),
			Attributes:        spanAttributes(span),
			Status:            spanStatus(span),
		})
	}
	return spans
}

func spanAttributes(span model.SpanDocument) []*common.KeyValue {
	attributes := []*common.KeyValue{stringAttribute("flare.span_type", span.SpanType)}
	if span.Model != nil {
		attributes = append(attributes, stringAttribute("gen_ai.request.model", *span.Model))
	}
	if span.Provider != nil {
		attributes = append(attributes, stringAttribute("gen_ai.system", *span.Provider))
	}
	if span.InputTokens != nil {
		attributes = append(attributes, intAttribute("gen_ai.usage.input_tokens", *span.InputTokens))
	}
	if span.OutputTokens != nil {
		attributes = append(attributes, intAttribute("gen_ai.usage.output_tokens", *span.OutputTokens))
	}
	if span.Cost != nil {
		attributes = append(attributes, &common.KeyValue{
			Key:   "flare.cost",
			Value: &common.AnyValue{Value: &common.AnyValue_DoubleValue{DoubleValue: *span.Cost}},
		})
	}
	if span.TimeToFirstTokenMs != nil {
		attributes = append(attributes, intAttribute("flare.time_to_first_token_ms", *span.TimeToFirstTokenMs))
	}
	return attributes
}

func spanKind(spanType string) v1.Span_SpanKind {
	switch spanType {
	case "generation", "tool", "retrieval":
		return v1.Span_SPAN_KIND_CLIENT
	default:
		return v1.Span_SPAN_KIND_INTERNAL
	}
}

func spanStatus(span model.SpanDocument) *v1.Status {
	if span.Status == "error" {
		status := &v1.Status{Code: v1.Status_STATUS_CODE_ERROR}
		if span.ErrorMessage != nil {
			status.Message = *span.ErrorMessage
		}
		return status
	}
	return &v1.Status{Code: v1.Status_STATUS_CODE_OK}
}

func traceStatus(status string) *v1.Status {
	switch status {
	case "completed":
		return &v1.Status{Code: v1.Status_STATUS_CODE_OK}
	case "error":
		return &v1.Status{Code: v1.Status_STATUS_CODE_ERROR}
	default:
		return &v1.Status{Code: v1.Status_STATUS_CODE_UNSET}
	}
}

// idBytes returns the 16 bytes of a uuid id. Ids that are not uuids are
// hashed into a stable name-based uuid so parent links still line up.
func idBytes(id string) []byte {
	parsed, err := uuid.Parse(id)
	if err != nil {
		parsed = uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
	}
	return parsed[:]
}

func millisToNanos(ms int64) uint64 {
	if ms < 0 {
		return 0
	}
	return uint64(ms) * 1_000_000
}

func stringAttribute(key string, value string) *common.KeyValue {
	return &common.KeyValue{
		Key:   key,
		Value: &common.AnyValue{Value: &common.AnyValue_StringValue{StringValue: value}},
	}
}

func intAttribute(key string, value int64) *common.KeyValue {
	return &common.KeyValue{
		Key:   key,
		Value: &common.AnyValue{Value: &common.AnyValue_IntValue{IntValue: value}},
	}
}
