package router

import (
	"github.com/Avi18971911/flare/internal/collector/config"
	"github.com/Avi18971911/flare/internal/collector/handler"
	"github.com/Avi18971911/flare/internal/collector/model"
	"github.com/Avi18971911/flare/pkg/delivery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"net/http"
)
import "github.com/gorilla/mux"

func CreateRouter(
	cfg config.Config,
	eventBus handler.Publisher[model.EventBatch],
	traceBus handler.Publisher[model.TraceBatch],
	metrics *handler.CollectorMetrics,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := mux.NewRouter()
	verified := handler.SignatureMiddleware(cfg, metrics, logger)

	r.Handle(
		delivery.EventsPath, verified(handler.EventsHandler(
			eventBus,
			metrics,
			logger,
		)),
	).Methods("POST")

	r.Handle(
		delivery.TracesPath, verified(handler.TracesHandler(
			traceBus,
			metrics,
			logger,
		)),
	).Methods("POST")

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	return r
}
