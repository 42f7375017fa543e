package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/synaptica-ai/pseudonym/pkg/common/config"
	"github.com/synaptica-ai/pseudonym/pkg/common/logger"
	"github.com/synaptica-ai/pseudonym/pkg/common/models"
)

type Consumer struct {
	reader      *kafka.Reader
	permanent   func(error) bool
	retryWait   time.Duration
	retryMaxGap time.Duration
}

type EventHandler func(ctx context.Context, event models.Event) error

type ConsumerOption func(*Consumer)

// WithPermanent classifies handler errors that retrying cannot fix. Such
// events are committed and skipped; every other failure is retried until
// the handler succeeds or the consumer stops.
func WithPermanent(fn func(error) bool) ConsumerOption {
	return func(c *Consumer) { c.permanent = fn }
}

// WithRetryInterval bounds the backoff between handler attempts.
func WithRetryInterval(initial, max time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.retryWait = initial
		c.retryMaxGap = max
	}
}

func NewConsumer(topic string, groupID string, opts ...ConsumerOption) *Consumer {
	cfg := config.Load()
	if groupID == "" {
		groupID = cfg.KafkaGroupID
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	return newConsumer(reader, opts...)
}

func newConsumer(reader *kafka.Reader, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:      reader,
		permanent:   func(error) bool { return false },
		retryWait:   500 * time.Millisecond,
		retryMaxGap: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Log.WithError(err).Error("Failed to fetch message")
			continue
		}

		event, err := decodeEvent(message)
		if err != nil {
			logger.Log.WithError(err).Error("Failed to unmarshal event")
			c.commit(ctx, message)
			continue
		}

		if !c.handle(ctx, event, handler) {
			// Uncommitted; the group redelivers it after a restart.
			return ctx.Err()
		}
		c.commit(ctx, message)
	}
}

// handle runs handler until it succeeds or fails permanently, and reports
// whether the message may be committed. It returns false only when ctx ends
// first.
func (c *Consumer) handle(ctx context.Context, event models.Event, handler EventHandler) bool {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryWait
	b.MaxInterval = c.retryMaxGap
	b.MaxElapsedTime = 0

	err := backoff.RetryNotify(
		func() error {
			err := handler(ctx, event)
			if err != nil && c.permanent(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		backoff.WithContext(b, ctx),
		func(err error, next time.Duration) {
			logger.WithFields(map[string]interface{}{
				"event_id": event.ID,
				"next":     next.String(),
			}).WithError(err).Warn("Retrying event")
		},
	)
	switch {
	case err == nil:
		return true
	case ctx.Err() != nil:
		return false
	default:
		logger.WithField("event_id", event.ID).WithError(err).Error("Skipping event that cannot be processed")
		return true
	}
}

func (c *Consumer) commit(ctx context.Context, message kafka.Message) {
	if err := c.reader.CommitMessages(ctx, message); err != nil {
		logger.Log.WithError(err).Error("Failed to commit message")
	}
}

func decodeEvent(message kafka.Message) (models.Event, error) {
	var event models.Event
	err := json.Unmarshal(message.Value, &event)
	return event, err
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
