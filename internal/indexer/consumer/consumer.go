// Package consumer applies item stream events from Kafka to the exact-match
// index. It is the index's single writer while the service runs.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/metrics"
)

type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// ItemEvent is one change on the item stream. Upserts carry the item;
// deletes only need ID.
type ItemEvent struct {
	Op        Op           `json:"op"`
	ID        string       `json:"id,omitempty"`
	Item      *item.Record `json:"item,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Writer is the subset of the index the consumer mutates.
type Writer interface {
	Add(it item.Item) (string, error)
	Remove(id string) bool
	Stats() index.Stats
}

// IndexConsumer wraps a Kafka consumer to drive index updates.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that applies each event to
// w. onChange, when set, runs after every event that changed the index.
// Malformed events are skipped so they are not redelivered.
func HandleMessage(w Writer, m *metrics.Metrics, onChange func(ctx context.Context)) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ItemEvent](value)
		if err != nil {
			logger.Error("failed to decode item event", "error", err, "key", string(key))
			return fmt.Errorf("%w: %w", kafka.ErrSkip, err)
		}

		changed, err := Apply(w, event)
		if err != nil {
			logger.Error("rejected item event", "op", event.Op, "key", string(key), "error", err)
			return fmt.Errorf("%w: %w", kafka.ErrSkip, err)
		}
		if !changed {
			logger.Debug("item event had no effect", "op", event.Op, "id", event.ID)
			return nil
		}

		if m != nil {
			m.ItemsIndexedTotal.WithLabelValues(string(event.Op)).Inc()
			stats := w.Stats()
			m.IndexDocuments.Set(float64(stats.Documents))
			m.IndexTerms.Set(float64(stats.Terms))
		}
		if onChange != nil {
			onChange(ctx)
		}
		logger.Debug("item event applied", "op", event.Op, "key", string(key))
		return nil
	}
}

// Apply performs one event against w and reports whether the index
// changed.
func Apply(w Writer, event ItemEvent) (bool, error) {
	switch event.Op {
	case OpUpsert:
		if event.Item == nil {
			return false, fmt.Errorf("upsert without item")
		}
		it, err := event.Item.Item()
		if err != nil {
			return false, err
		}
		if _, err := w.Add(it); err != nil {
			return false, err
		}
		return true, nil
	case OpDelete:
		id := event.ID
		if id == "" && event.Item != nil {
			if it, err := event.Item.Item(); err == nil {
				id = it.ID()
			}
		}
		if id == "" {
			return false, fmt.Errorf("delete without id")
		}
		return w.Remove(id), nil
	default:
		return false, fmt.Errorf("unknown op %q", event.Op)
	}
}
