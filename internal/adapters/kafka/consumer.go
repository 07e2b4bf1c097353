package kafka

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

// MessageReader is the part of kafka.Reader the consumer needs. Offsets are
// committed explicitly, so the reader must be configured with a group.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// PayloadHandler ingests one raw message value.
type PayloadHandler interface {
	HandlePayload(ctx context.Context, payload []byte) (domain.IngestResult, error)
}

// ReaderConfig mirrors the kafka section of the configuration file.
type ReaderConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
}

func NewReader(cfg ReaderConfig) *kafkago.Reader {
	minBytes, maxBytes := cfg.MinBytes, cfg.MaxBytes
	if minBytes <= 0 {
		minBytes = 1
	}
	if maxBytes <= 0 {
		maxBytes = 10e6
	}
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: minBytes,
		MaxBytes: maxBytes,
	})
}

// Consumer feeds every broker message through the ingestion adapter.
// A message is committed once it has been handled: either written to the
// buffer or rejected as malformed. A store failure holds the partition on
// that message and retries it after a backoff; later offsets are never
// committed past it.
type Consumer struct {
	reader  MessageReader
	handler PayloadHandler
	obs     ports.Observability
	backoff time.Duration
}

func NewConsumer(reader MessageReader, handler PayloadHandler, obs ports.Observability) *Consumer {
	return &Consumer{reader: reader, handler: handler, obs: obs, backoff: time.Second}
}

// Run consumes until ctx is cancelled or the reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka fetch: %w", err)
		}

		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafkago.Message) error {
	for {
		res, err := c.handler.HandlePayload(ctx, msg.Value)
		if err == nil {
			if res.Status == domain.StatusRejected {
				c.obs.LogInfo("kafka_message_rejected",
					ports.Field{Key: "offset", Value: msg.Offset},
					ports.Field{Key: "error", Value: res.Error},
				)
			}
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				return fmt.Errorf("kafka commit offset %d: %w", msg.Offset, err)
			}
			return nil
		}

		c.obs.LogError("kafka_ingest_failed", err,
			ports.Field{Key: "topic", Value: msg.Topic},
			ports.Field{Key: "partition", Value: msg.Partition},
			ports.Field{Key: "offset", Value: msg.Offset},
		)
		if err := sleepCtx(ctx, c.backoff); err != nil {
			return err
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
