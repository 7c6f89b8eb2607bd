package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/metrics"
)

// Publisher is the sink for batched events. *kafka.Producer satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers retrieval events off the request path, feeds the local
// Aggregator and publishes batches when flushSize events have queued or
// flushInterval has passed.
type Collector struct {
	publisher     Publisher
	aggregator    *Aggregator
	metrics       *metrics.Metrics
	eventCh       chan RetrievalEvent
	flushSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
}

// NewCollector creates a Collector. publisher may be nil, in which case
// events only reach the aggregator.
func NewCollector(publisher Publisher, aggregator *Aggregator, m *metrics.Metrics, bufferSize, flushSize int, flushInterval time.Duration) *Collector {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if flushSize <= 0 {
		flushSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		aggregator:    aggregator,
		metrics:       m,
		eventCh:       make(chan RetrievalEvent, bufferSize),
		flushSize:     flushSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the background loop. It runs until ctx is cancelled or
// Close is called, flushing what is buffered on the way out.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		batch := make([]kafka.Event, 0, c.flushSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.flush(context.Background(), batch)
					return
				}
				batch = c.add(ctx, batch, event)
			case <-ticker.C:
				batch = c.flush(ctx, batch)
			case <-ctx.Done():
				batch = c.drain(batch)
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx, batch)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"flush_size", c.flushSize,
		"flush_interval", c.flushInterval,
	)
}

// Track enqueues an event without blocking. Events are dropped when the
// buffer is full.
func (c *Collector) Track(event RetrievalEvent) {
	if event.Type == "" {
		event.Classify()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case c.eventCh <- event:
	default:
		if c.metrics != nil {
			c.metrics.AnalyticsEventsDropped.Inc()
		}
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the final flush.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) add(ctx context.Context, batch []kafka.Event, event RetrievalEvent) []kafka.Event {
	if c.aggregator != nil {
		c.aggregator.Record(event)
	}
	if c.publisher == nil {
		return batch
	}
	batch = append(batch, kafka.Event{Key: event.Query, Value: event})
	if len(batch) >= c.flushSize {
		return c.flush(ctx, batch)
	}
	return batch
}

func (c *Collector) drain(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			if c.aggregator != nil {
				c.aggregator.Record(event)
			}
			if c.publisher != nil {
				batch = append(batch, kafka.Event{Key: event.Query, Value: event})
			}
		default:
			return batch
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 || c.publisher == nil {
		return batch[:0]
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("batch flush failed", "batch_size", len(batch), "error", err)
		if c.metrics != nil {
			c.metrics.AnalyticsEventsDropped.Add(float64(len(batch)))
		}
	} else {
		c.logger.Debug("batch flushed", "events", len(batch))
	}
	return make([]kafka.Event, 0, c.flushSize)
}
