package handler

import (
	"bytes"
	"github.com/Avi18971911/flare/internal/collector/config"
	"github.com/Avi18971911/flare/pkg/delivery"
	"github.com/Avi18971911/flare/pkg/signer"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"io"
	"net/http"
)

const maxBatchBytes = 8 << 20

// SignatureMiddleware rejects requests whose X-Signature does not match the
// HMAC of the raw body, or whose project key is not allowed. The body is
// restored for the next handler.
func SignatureMiddleware(
	cfg config.Config,
	metrics *CollectorMetrics,
	logger *zap.Logger,
) mux.MiddlewareFunc {
	secret := []byte(cfg.Secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			kind := kindForPath(r.URL.Path)
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBytes))
			if err != nil {
				logger.Error("Error encountered when reading request body", zap.Error(err))
				metrics.observe(kind, OutcomeMalformed)
				HttpError(w, "Invalid request payload", http.StatusBadRequest, logger)
				return
			}
			closeBody(r.Body, logger)

			if !signer.Verify(body, secret, r.Header.Get(delivery.SignatureHeader)) {
				logger.Warn("Rejected batch with invalid signature", zap.String("path", r.URL.Path))
				metrics.observe(kind, OutcomeBadSignature)
				HttpError(w, "Invalid signature", http.StatusUnauthorized, logger)
				return
			}

			projectKey := r.Header.Get(delivery.ProjectKeyHeader)
			if !cfg.AllowsProjectKey(projectKey) {
				logger.Warn("Rejected batch for unknown project key", zap.String("project_key", projectKey))
				metrics.observe(kind, OutcomeUnknownProject)
				HttpError(w, "Unknown project key", http.StatusForbidden, logger)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

func kindForPath(path string) string {
	switch path {
	case delivery.EventsPath:
		return string(delivery.Events)
	case delivery.TracesPath:
		return string(delivery.Traces)
	default:
		return "unknown"
	}
}

func closeBody(body io.ReadCloser, logger *zap.Logger) {
	err := body.Close()
	if err != nil {
		logger.Error("Error encountered when closing request body", zap.Error(err))
	}
}
