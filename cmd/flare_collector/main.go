package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/flare/internal/collector/config"
	"github.com/Avi18971911/flare/internal/collector/handler"
	"github.com/Avi18971911/flare/internal/collector/model"
	"github.com/Avi18971911/flare/internal/collector/router"
	"github.com/Avi18971911/flare/internal/collector/sink"
	"github.com/Avi18971911/flare/internal/event_bus"
	"github.com/asaskevich/EventBus"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const sinkTimeout = 30 * time.Second
const shutdownTimeout = 10 * time.Second

func main() {
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:   "flare_collector",
		Short: "Receive signed telemetry batches and fan them out to Elasticsearch and OTLP",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(debug)
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg := config.Default()
			if configPath != "" {
				cfg, err = config.Load(configPath)
				if err != nil {
					return err
				}
			}
			cfg.ApplyEnv()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid collector config: %w", err)
			}
			return run(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the collector YAML config")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable development logging")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := handler.NewCollectorMetrics(registry)

	bus := EventBus.New()
	eventBus := event_bus.NewFlareEventBus[model.EventBatch](bus, metrics.SinkFailed, logger)
	traceBus := event_bus.NewFlareEventBus[model.TraceBatch](bus, metrics.SinkFailed, logger)

	var sinks sink.Sinks
	if cfg.Elasticsearch.Enabled {
		es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Elasticsearch.Addresses})
		if err != nil {
			return fmt.Errorf("failed to create elasticsearch client: %w", err)
		}
		bs := sink.NewBootstrapper(es, logger)
		err = bs.BootstrapElasticsearch(ctx, cfg.Elasticsearch.EventsIndex, cfg.Elasticsearch.TracesIndex, 30, 5*time.Second)
		if err != nil {
			return fmt.Errorf("failed to bootstrap elasticsearch: %w", err)
		}
		esSink := sink.NewElasticsearchSink(
			es,
			cfg.Elasticsearch.EventsIndex,
			cfg.Elasticsearch.TracesIndex,
			sink.Async,
			logger,
		)
		sinks.Events = esSink
		sinks.Traces = esSink
	}

	if cfg.OTLP.Endpoint != "" {
		conn, err := grpc.NewClient(cfg.OTLP.Endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("failed to create OTLP connection: %w", err)
		}
		defer conn.Close()
		sinks.Forwarder = sink.NewOTLPForwarder(conn, cfg.OTLP.ServiceName, logger)
	}

	if err := sink.Subscribe(context.WithoutCancel(ctx), eventBus, traceBus, sinks, sinkTimeout, logger); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           router.CreateRouter(cfg, eventBus, traceBus, metrics, registry, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting collector", zap.String("address", cfg.ListenAddress))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("collector stopped serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down collector")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down collector cleanly", zap.Error(err))
	}
	eventBus.Close()
	traceBus.Close()
	return nil
}
