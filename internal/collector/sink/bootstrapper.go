package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
	"net/http"
	"strings"
	"time"
)

var eventIndex = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 1,
	},
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"timestamp":          map[string]interface{}{"type": "date", "format": "epoch_millis"},
			"received_at":        map[string]interface{}{"type": "date"},
			"source":             map[string]interface{}{"type": "keyword"},
			"environment":        map[string]interface{}{"type": "keyword"},
			"release":            map[string]interface{}{"type": "keyword"},
			"route_or_procedure": map[string]interface{}{"type": "keyword"},
			"error_type":         map[string]interface{}{"type": "keyword"},
			"message":            map[string]interface{}{"type": "text"},
			"stack":              map[string]interface{}{"type": "text", "index": false},
			"http_status":        map[string]interface{}{"type": "integer"},
			"request_id":         map[string]interface{}{"type": "keyword"},
			"user_id_hash":       map[string]interface{}{"type": "keyword"},
			"project_key":        map[string]interface{}{"type": "keyword"},
			"metadata":           map[string]interface{}{"type": "flattened"},
		},
	},
}

var traceIndex = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 1,
	},
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"name":        map[string]interface{}{"type": "keyword"},
			"status":      map[string]interface{}{"type": "keyword"},
			"started_at":  map[string]interface{}{"type": "date", "format": "epoch_millis"},
			"ended_at":    map[string]interface{}{"type": "date", "format": "epoch_millis"},
			"received_at": map[string]interface{}{"type": "date"},
			"session_id":  map[string]interface{}{"type": "keyword"},
			"user_id":     map[string]interface{}{"type": "keyword"},
			"project_key": map[string]interface{}{"type": "keyword"},
			"metadata":    map[string]interface{}{"type": "flattened"},
			"spans": map[string]interface{}{
				"type": "nested",
				"properties": map[string]interface{}{
					"span_type":     map[string]interface{}{"type": "keyword"},
					"model":         map[string]interface{}{"type": "keyword"},
					"provider":      map[string]interface{}{"type": "keyword"},
					"status":        map[string]interface{}{"type": "keyword"},
					"input_tokens":  map[string]interface{}{"type": "long"},
					"output_tokens": map[string]interface{}{"type": "long"},
					"cost":          map[string]interface{}{"type": "double"},
					"latency_ms":    map[string]interface{}{"type": "long"},
					"metadata":      map[string]interface{}{"type": "flattened"},
				},
			},
		},
	},
}

type Bootstrapper struct {
	esClient *elasticsearch.Client
	logger   *zap.Logger
}

func NewBootstrapper(esClient *elasticsearch.Client, logger *zap.Logger) *Bootstrapper {
	return &Bootstrapper{
		esClient: esClient,
		logger:   logger,
	}
}

// BootstrapElasticsearch waits for the cluster and creates the event and trace
// indices. Indices that already exist are left untouched.
func (bs *Bootstrapper) BootstrapElasticsearch(
	ctx context.Context,
	eventsIndex string,
	tracesIndex string,
	retries int,
	delay time.Duration,
) error {
	if err := bs.waitForElasticsearch(ctx, retries, delay); err != nil {
		return fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}

	if err := bs.createIndex(ctx, eventsIndex, eventIndex); err != nil {
		return fmt.Errorf("error creating event index: %w", err)
	}

	if err := bs.createIndex(ctx, tracesIndex, traceIndex); err != nil {
		return fmt.Errorf("error creating trace index: %w", err)
	}

	return nil
}

func (bs *Bootstrapper) waitForElasticsearch(ctx context.Context, maxRetries int, delay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		res, err := bs.esClient.Info(bs.esClient.Info.WithContext(ctx))
		if err == nil {
			res.Body.Close()
			if res.StatusCode == http.StatusOK {
				bs.logger.Info("Elasticsearch is available")
				return nil
			}
		}
		bs.logger.Warn("Elasticsearch not available, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_retries", maxRetries),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("elasticsearch is not available after %d attempts", maxRetries)
}

func (bs *Bootstrapper) createIndex(ctx context.Context, indexName string, index map[string]interface{}) error {
	body, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("error marshaling index input during bootstrap: %w", err)
	}

	res, err := bs.esClient.Indices.Create(
		indexName,
		bs.esClient.Indices.Create.WithBody(strings.NewReader(string(body))),
		bs.esClient.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("error creating index during bootstrap %s: %w", indexName, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		detail := res.String()
		if strings.Contains(detail, "resource_already_exists_exception") {
			bs.logger.Info("Index already exists", zap.String("index_name", indexName))
			return nil
		}
		return fmt.Errorf("error response for index %s: %s", indexName, detail)
	}

	bs.logger.Info("Successfully created index", zap.String("index_name", indexName))
	return nil
}
