package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/empirewand/wandcore/internal/domain"
)

// MessagePublisher sends one message to a topic.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// EventPublisher buffers domain events and flushes them to Kafka from a
// single goroutine, so callers on the command path never wait on the broker.
type EventPublisher struct {
	producer  MessagePublisher
	topic     string
	logger    *slog.Logger
	events    chan domain.Event
	interval  time.Duration
	batchSize int
	done      chan struct{}
}

// NewEventPublisher creates a publisher writing to topic.
func NewEventPublisher(producer MessagePublisher, topic string, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{
		producer:  producer,
		topic:     topic,
		logger:    logger,
		events:    make(chan domain.Event, 1024),
		interval:  500 * time.Millisecond,
		batchSize: 100,
		done:      make(chan struct{}),
	}
}

// Emit queues an event. When the buffer is full the event is dropped and
// logged rather than blocking the caller.
func (p *EventPublisher) Emit(e domain.Event) {
	select {
	case p.events <- e:
	default:
		p.logger.Warn("event buffer full, dropping event", "event_id", e.EventID, "event_type", e.EventType)
	}
}

// Start begins flushing in a goroutine. Stops when ctx is cancelled, after
// draining what is already buffered.
func (p *EventPublisher) Start(ctx context.Context) {
	p.logger.Info("event publisher started", "topic", p.topic, "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				// Final drain uses a fresh context; ctx is already cancelled.
				drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				p.flush(drainCtx, len(p.events))
				cancel()
				p.logger.Info("event publisher stopped")
				return
			case <-ticker.C:
				p.flush(ctx, p.batchSize)
			}
		}
	}()
}

// Done is closed once the publisher goroutine has exited.
func (p *EventPublisher) Done() <-chan struct{} {
	return p.done
}

func (p *EventPublisher) flush(ctx context.Context, limit int) {
	published := 0
	for published < limit {
		select {
		case e := <-p.events:
			p.publish(ctx, e)
			published++
		default:
			limit = published
		}
	}
	if published > 0 {
		p.logger.Debug("event flush complete", "published", published)
	}
}

func (p *EventPublisher) publish(ctx context.Context, e domain.Event) {
	msg, err := json.Marshal(map[string]interface{}{
		"event_id":       e.EventID,
		"aggregate_type": e.AggregateType,
		"aggregate_id":   e.AggregateID,
		"event_type":     e.EventType,
		"payload":        e.Payload,
		"occurred_at":    e.OccurredAt,
	})
	if err != nil {
		p.logger.Error("encode event failed", "event_id", e.EventID, "error", err)
		return
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(e.PartitionKey), msg); err != nil {
		p.logger.Error("kafka publish failed", "event_id", e.EventID, "error", err)
	}
}
