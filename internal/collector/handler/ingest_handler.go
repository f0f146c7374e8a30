package handler

import (
	"encoding/json"
	"github.com/Avi18971911/flare/internal/collector/model"
	"github.com/Avi18971911/flare/pkg/delivery"
	"go.uber.org/zap"
	"net/http"
	"time"
)

type Publisher[T any] interface {
	Publish(topic string, arg T) error
}

type ErrorMessage struct {
	Message string `json:"message"`
}

type AcceptedResponse struct {
	Accepted int `json:"accepted"`
}

// EventsHandler accepts a verified {"events":[...]} batch and publishes it for the sinks.
func EventsHandler(
	bus Publisher[model.EventBatch],
	metrics *CollectorMetrics,
	logger *zap.Logger,
) http.HandlerFunc {
	kind := string(delivery.Events)
	return func(w http.ResponseWriter, r *http.Request) {
		defer closeBody(r.Body, logger)
		var batch model.EventBatch
		err := json.NewDecoder(r.Body).Decode(&batch)
		if err != nil {
			logger.Error("Error encountered when decoding event batch", zap.Error(err))
			metrics.observe(kind, OutcomeMalformed)
			HttpError(w, "Invalid request payload", http.StatusBadRequest, logger)
			return
		}

		projectKey := r.Header.Get(delivery.ProjectKeyHeader)
		receivedAt := time.Now().UTC()
		for i := range batch.Events {
			batch.Events[i].ProjectKey = projectKey
			batch.Events[i].ReceivedAt = receivedAt
		}

		if len(batch.Events) > 0 {
			err = bus.Publish(model.EventsTopic, batch)
			if err != nil {
				logger.Error("Error encountered when publishing event batch", zap.Error(err))
				metrics.observe(kind, OutcomePublishFailed)
				HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
				return
			}
		}
		metrics.observe(kind, OutcomeAccepted)
		accepted(w, len(batch.Events), logger)
	}
}

// TracesHandler accepts a verified {"traces":[...]} batch and publishes it for the sinks.
func TracesHandler(
	bus Publisher[model.TraceBatch],
	metrics *CollectorMetrics,
	logger *zap.Logger,
) http.HandlerFunc {
	kind := string(delivery.Traces)
	return func(w http.ResponseWriter, r *http.Request) {
		defer closeBody(r.Body, logger)
		var batch model.TraceBatch
		err := json.NewDecoder(r.Body).Decode(&batch)
		if err != nil {
			logger.Error("Error encountered when decoding trace batch", zap.Error(err))
			metrics.observe(kind, OutcomeMalformed)
			HttpError(w, "Invalid request payload", http.StatusBadRequest, logger)
			return
		}

		projectKey := r.Header.Get(delivery.ProjectKeyHeader)
		receivedAt := time.Now().UTC()
		for i := range batch.Traces {
			batch.Traces[i].ProjectKey = projectKey
			batch.Traces[i].ReceivedAt = receivedAt
		}

		if len(batch.Traces) > 0 {
			err = bus.Publish(model.TracesTopic, batch)
			if err != nil {
				logger.Error("Error encountered when publishing trace batch", zap.Error(err))
				metrics.observe(kind, OutcomePublishFailed)
				HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
				return
			}
		}
		metrics.observe(kind, OutcomeAccepted)
		accepted(w, len(batch.Traces), logger)
	}
}

func accepted(w http.ResponseWriter, count int, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	err := json.NewEncoder(w).Encode(AcceptedResponse{Accepted: count})
	if err != nil {
		logger.Error("Error encountered when encoding response", zap.Error(err))
	}
}

func HttpError(w http.ResponseWriter, message string, code int, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(ErrorMessage{Message: message})
	if err != nil {
		logger.Error("Error encountered when encoding error response", zap.Error(err))
	}
}
