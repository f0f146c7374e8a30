package delivery

import (
	"bytes"
	"context"
	"fmt"
	"github.com/Avi18971911/flare/pkg/signer"
	"go.uber.org/zap"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const DefaultConnectTimeout = 10 * time.Second
const DefaultReadTimeout = 10 * time.Second

const maxErrorBodyBytes = 512

type HTTPSenderConfig struct {
	Endpoint       string
	Secret         []byte
	ProjectKey     string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

type HTTPSender struct {
	endpoint   string
	secret     []byte
	projectKey string
	client     *http.Client
	logger     *zap.Logger
}

func NewHTTPSender(cfg HTTPSenderConfig, logger *zap.Logger) *HTTPSender {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}
	return &HTTPSender{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		secret:     cfg.Secret,
		projectKey: cfg.ProjectKey,
		client: &http.Client{
			Transport: transport,
			Timeout:   connectTimeout + readTimeout,
		},
		logger: logger,
	}
}

func (s *HTTPSender) Send(ctx context.Context, kind BatchKind, body []byte) error {
	path, err := PathFor(kind)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signer.Sign(body, s.secret))
	if s.projectKey != "" {
		req.Header.Set(ProjectKeyHeader, s.projectKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	defer func(Body io.ReadCloser) {
		_, _ = io.Copy(io.Discard, Body)
		err := Body.Close()
		if err != nil {
			s.logger.Debug("Error encountered when closing response body", zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	return nil
}
