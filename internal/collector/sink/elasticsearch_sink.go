package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/Avi18971911/flare/internal/collector/model"
	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
)

type RefreshRate string

const (
	// Wait for the changes made by the request to be made visible by a refresh before replying.
	Wait RefreshRate = "wait_for"
	// Immediate refreshes the relevant shards right after the operation.
	Immediate RefreshRate = "true"
	// Async takes no refresh related actions.
	Async RefreshRate = "false"
)

var ErrBulkItemsFailed = errors.New("one or more bulk items failed")

type ElasticsearchSink struct {
	es          *elasticsearch.Client
	eventsIndex string
	tracesIndex string
	refreshRate RefreshRate
	logger      *zap.Logger
}

func NewElasticsearchSink(
	es *elasticsearch.Client,
	eventsIndex string,
	tracesIndex string,
	refreshRate RefreshRate,
	logger *zap.Logger,
) *ElasticsearchSink {
	return &ElasticsearchSink{
		es:          es,
		eventsIndex: eventsIndex,
		tracesIndex: tracesIndex,
		refreshRate: refreshRate,
		logger:      logger,
	}
}

func (s *ElasticsearchSink) IndexEvents(ctx context.Context, batch model.EventBatch) error {
	docs := make([]interface{}, len(batch.Events))
	for i, event := range batch.Events {
		docs[i] = event
	}
	return s.bulkIndex(ctx, docs, nil, s.eventsIndex)
}

// IndexTraces indexes each trace under its own id, so a redelivered trace overwrites itself.
func (s *ElasticsearchSink) IndexTraces(ctx context.Context, batch model.TraceBatch) error {
	docs := make([]interface{}, len(batch.Traces))
	ids := make([]string, len(batch.Traces))
	for i, trace := range batch.Traces {
		docs[i] = trace
		ids[i] = trace.ID
	}
	return s.bulkIndex(ctx, docs, ids, s.tracesIndex)
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

func (s *ElasticsearchSink) bulkIndex(
	ctx context.Context,
	docs []interface{},
	ids []string,
	index string,
) error {
	if len(docs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for i, doc := range docs {
		meta := map[string]interface{}{}
		if ids != nil && ids[i] != "" {
			meta["_id"] = ids[i]
		}
		metaJSON, err := json.Marshal(map[string]interface{}{"index": meta})
		if err != nil {
			return fmt.Errorf("error marshaling meta to bulk index: %w", err)
		}
		buf.Write(metaJSON)
		buf.WriteByte('\n')

		dataJSON, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("error marshaling data to bulk index: %w", err)
		}
		buf.Write(dataJSON)
		buf.WriteByte('\n')
	}

	res, err := s.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.es.Bulk.WithIndex(index),
		s.es.Bulk.WithContext(ctx),
		s.es.Bulk.WithRefresh(string(s.refreshRate)),
	)
	if err != nil {
		return fmt.Errorf("error bulk indexing: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index error: %s", res.String())
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("error decoding bulk index response: %w", err)
	}
	if !parsed.Errors {
		return nil
	}
	failed := 0
	var firstReason string
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Error == nil {
				continue
			}
			if failed == 0 {
				firstReason = result.Error.Type + ": " + result.Error.Reason
			}
			failed++
		}
	}
	s.logger.Error("Bulk index finished with failed items",
		zap.String("index", index),
		zap.Int("failed", failed),
		zap.Int("total", len(docs)),
	)
	return fmt.Errorf("%w: %d of %d in %s (%s)", ErrBulkItemsFailed, failed, len(docs), index, firstReason)
}
