package command

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/empirewand/wandcore/internal/domain"
	"github.com/empirewand/wandcore/internal/infra"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the consumer side of the intent topic.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Runner executes one intent.
type Runner interface {
	Dispatch(ctx context.Context, in Intent) Result
}

// Consumer feeds intents from a topic through a Runner and publishes each
// result keyed by player id. Intents are handled one at a time in offset
// order.
type Consumer struct {
	reader      MessageReader
	runner      Runner
	results     infra.MessagePublisher
	resultTopic string
	logger      *slog.Logger
	backoff     time.Duration
}

// NewConsumer creates an intent consumer.
func NewConsumer(reader MessageReader, runner Runner, results infra.MessagePublisher, resultTopic string, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:      reader,
		runner:      runner,
		results:     results,
		resultTopic: resultTopic,
		logger:      logger,
		backoff:     time.Second,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("intent consumer started", "result_topic", c.resultTopic)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("intent consumer stopped")
				return nil
			}
			c.logger.Error("fetch intent", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("commit intent", "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var in Intent
	if err := json.Unmarshal(msg.Value, &in); err != nil {
		c.logger.Warn("dropping malformed intent", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		c.publish(ctx, Failure(in, domain.ErrValidation("malformed intent")))
		return
	}
	if in.ID == "" {
		in.ID = string(msg.Key)
	}
	c.publish(ctx, c.runner.Dispatch(ctx, in))
}

func (c *Consumer) publish(ctx context.Context, res Result) {
	if res.PlayerID == "" {
		return
	}
	value, err := json.Marshal(res)
	if err != nil {
		c.logger.Error("marshal result", "intent_id", res.IntentID, "error", err)
		return
	}
	if err := c.results.Publish(ctx, c.resultTopic, []byte(res.PlayerID), value); err != nil {
		c.logger.Error("publish result", "intent_id", res.IntentID, "player_id", res.PlayerID, "error", err)
	}
}
