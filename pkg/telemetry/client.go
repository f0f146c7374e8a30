package telemetry

import (
	"context"
	"fmt"
	"github.com/Avi18971911/flare/pkg/config"
	"github.com/Avi18971911/flare/pkg/delivery"
	"github.com/Avi18971911/flare/pkg/device_info"
	eventModel "github.com/Avi18971911/flare/pkg/event/model"
	flushService "github.com/Avi18971911/flare/pkg/flush/service"
	enc "github.com/Avi18971911/flare/pkg/json_encoder"
	"github.com/Avi18971911/flare/pkg/metrics"
	traceModel "github.com/Avi18971911/flare/pkg/trace/model"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"runtime/debug"
	"time"
)

// Client is created once by the host application and passed to the code that
// reports errors and traces. Close it on shutdown to send what is buffered.
type Client struct {
	cfg        config.Config
	engine     flushService.FlushEngine
	deviceInfo device_info.Provider
	closers    []func()
	logger     *zap.Logger
}

type clientOptions struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
	deviceInfo device_info.Provider
	sender     delivery.Sender
}

type Option func(*clientOptions)

func WithLogger(logger *zap.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *clientOptions) { o.registerer = reg }
}

// WithDeviceInfoProvider replaces the default runtime provider.
func WithDeviceInfoProvider(p device_info.Provider) Option {
	return func(o *clientOptions) { o.deviceInfo = p }
}

func WithSender(sender delivery.Sender) Option {
	return func(o *clientOptions) { o.sender = sender }
}

func New(cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	o := clientOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{cfg: cfg, logger: o.logger}
	if o.deviceInfo == nil {
		cached, err := device_info.NewCachedProvider(device_info.RuntimeProvider{}, cfg.DeviceInfoTTL, o.logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, cached.Close)
		o.deviceInfo = cached
	}
	c.deviceInfo = o.deviceInfo

	m := metrics.NewMetrics()
	if o.registerer != nil {
		if err := m.Register(o.registerer); err != nil {
			c.runClosers()
			return nil, err
		}
	}

	if o.sender == nil {
		o.sender = delivery.NewHTTPSender(delivery.HTTPSenderConfig{
			Endpoint:       cfg.Endpoint,
			Secret:         []byte(cfg.Secret),
			ProjectKey:     cfg.ProjectKey,
			ConnectTimeout: cfg.ConnectTimeout,
			ReadTimeout:    cfg.ReadTimeout,
		}, o.logger)
	}
	c.engine = flushService.NewFlushEngineImpl(
		flushService.FlushEngineConfig{
			BufferCapacity: cfg.BufferCapacity,
			MaxBufferSize:  cfg.MaxBufferSize,
			FlushInterval:  cfg.FlushInterval,
			SenderWorkers:  cfg.SenderWorkers,
			SendQueueSize:  cfg.SendQueueSize,
		},
		o.sender,
		m,
		o.logger,
	)
	return c, nil
}

// CaptureError records err with the stack of the calling goroutine.
func (c *Client) CaptureError(err error, opts ...CaptureOption) {
	if err == nil {
		return
	}
	co := captureOptions{errorType: fmt.Sprintf("%T", err), stack: string(debug.Stack())}
	for _, opt := range opts {
		opt(&co)
	}
	c.capture(err.Error(), co)
}

func (c *Client) CaptureMessage(errorType string, message string, opts ...CaptureOption) {
	co := captureOptions{errorType: errorType}
	for _, opt := range opts {
		opt(&co)
	}
	c.capture(message, co)
}

func (c *Client) capture(message string, co captureOptions) {
	event := eventModel.ErrorEvent{
		Timestamp:        time.Now().UnixMilli(),
		Source:           c.cfg.Source,
		Environment:      c.cfg.Environment,
		Release:          c.cfg.Release,
		AppVersion:       optional(c.cfg.AppVersion),
		BuildNumber:      optional(c.cfg.BuildNumber),
		RouteOrProcedure: co.route,
		Screen:           co.screen,
		ErrorType:        co.errorType,
		Message:          message,
		HTTPStatus:       co.httpStatus,
		RequestID:        co.requestID,
		UserIDHash:       co.userIDHash,
		Metadata:         c.metadata(co.metadata),
	}
	if co.stack != "" {
		stack := eventModel.TruncateStack(co.stack)
		event.Stack = &stack
	}
	c.engine.AddEvent(event)
}

// metadata puts user supplied keys over the device info.
func (c *Client) metadata(user enc.Object) enc.Object {
	device, ok := c.deviceInfo.DeviceInfo()
	if !ok {
		device = nil
	}
	return enc.Merge(device, user)
}

// StartTrace opens a trace that is queued for delivery when it ends.
func (c *Client) StartTrace(name string, opts ...traceModel.TraceOption) *traceModel.Trace {
	return traceModel.NewTrace(name, c.engine, opts...)
}

func (c *Client) Flush() {
	c.engine.Flush()
}

func (c *Client) FlushSync(ctx context.Context) {
	c.engine.FlushSync(ctx)
}

func (c *Client) Close(ctx context.Context) error {
	err := c.engine.Close(ctx)
	c.runClosers()
	if err != nil {
		return fmt.Errorf("error closing telemetry client: %w", err)
	}
	return nil
}

func (c *Client) runClosers() {
	for _, closer := range c.closers {
		closer()
	}
	c.closers = nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
