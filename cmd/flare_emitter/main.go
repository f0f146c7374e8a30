package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/flare/pkg/config"
	enc "github.com/Avi18971911/flare/pkg/json_encoder"
	"github.com/Avi18971911/flare/pkg/telemetry"
	traceModel "github.com/Avi18971911/flare/pkg/trace/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type emitterOptions struct {
	configPath string
	producers  int
	duration   time.Duration
	pause      time.Duration
	debug      bool
}

var errUpstreamTimeout = errors.New("upstream timed out")

func main() {
	opts := emitterOptions{}
	cmd := &cobra.Command{
		Use:   "flare_emitter",
		Short: "Generate concurrent synthetic errors and LLM traces against a collector",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to the client YAML config")
	cmd.Flags().IntVarP(&opts.producers, "producers", "p", 4, "number of concurrent producers")
	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 10*time.Second, "how long to produce telemetry")
	cmd.Flags().DurationVar(&opts.pause, "pause", 50*time.Millisecond, "pause between iterations of a producer")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "enable development logging")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts emitterOptions) error {
	logger, err := zap.NewProduction()
	if opts.debug {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	cfg := config.Default()
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			return err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	client, err := telemetry.New(cfg, telemetry.WithLogger(logger), telemetry.WithRegisterer(registry))
	if err != nil {
		return err
	}

	produceCtx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()
	g, gctx := errgroup.WithContext(produceCtx)
	for i := 0; i < opts.producers; i++ {
		producer := i
		g.Go(func() error {
			return produce(gctx, client, producer, opts.pause)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		logger.Error("Producer failed", zap.Error(err))
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer closeCancel()
	if err := client.Close(closeCtx); err != nil {
		return fmt.Errorf("failed to close telemetry client: %w", err)
	}

	captured, _ := metricValue(registry, "flare_events_captured_total")
	traces, _ := metricValue(registry, "flare_traces_completed_total")
	logger.Info("Emitter finished",
		zap.Float64("events_captured", captured),
		zap.Float64("traces_completed", traces),
	)
	return nil
}

func produce(ctx context.Context, client *telemetry.Client, producer int, pause time.Duration) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(producer)))
	route := fmt.Sprintf("/producer/%d", producer)
	for iteration := 0; ; iteration++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}

		if rng.Intn(4) == 0 {
			client.CaptureError(
				fmt.Errorf("iteration %d: %w", iteration, errUpstreamTimeout),
				telemetry.WithRoute(route),
				telemetry.WithHTTPStatus(504),
				telemetry.WithRequestID(fmt.Sprintf("req-%d-%d", producer, iteration)),
				telemetry.WithMetadata(enc.Object{enc.Field("producer", enc.Int(int64(producer)))}),
			)
			continue
		}
		emitTrace(client, rng, producer, iteration)
	}
}

func emitTrace(client *telemetry.Client, rng *rand.Rand, producer int, iteration int) {
	trace := client.StartTrace(
		"synthetic-rag",
		traceModel.WithSessionID(fmt.Sprintf("session-%d", producer)),
		traceModel.WithTraceInput(fmt.Sprintf("question %d", iteration)),
		traceModel.WithPrompt("rag-answer", "v1"),
	)
	retrieval := trace.StartSpan(traceModel.Retrieval, "vector-search")
	retrieval.End(traceModel.WithOutput(fmt.Sprintf("%d documents", 1+rng.Intn(5))))

	generation := trace.StartSpan(
		traceModel.Generation,
		"answer",
		traceModel.WithModel("synthetic-model"),
		traceModel.WithProvider("local"),
		traceModel.WithParentSpanID(retrieval.ID),
	)
	inputTokens := int64(50 + rng.Intn(200))
	outputTokens := int64(20 + rng.Intn(400))
	generation.SetUsage(
		traceModel.WithInputTokens(inputTokens),
		traceModel.WithOutputTokens(outputTokens),
		traceModel.WithCost(float64(inputTokens+outputTokens)*0.000002),
		traceModel.WithTimeToFirstToken(time.Duration(100+rng.Intn(400))*time.Millisecond),
	)
	if rng.Intn(10) == 0 {
		generation.End(traceModel.WithErrorMessage("rate limited"))
		trace.End(traceModel.WithTraceStatus(traceModel.TraceError))
		return
	}
	generation.End(traceModel.WithOutput("synthetic answer"))
	trace.End(traceModel.WithTraceOutput("synthetic answer"))
}

func metricValue(registry *prometheus.Registry, name string) (float64, error) {
	families, err := registry.Gather()
	if err != nil {
		return 0, err
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		total := 0.0
		for _, m := range family.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total, nil
	}
	return 0, nil
}
