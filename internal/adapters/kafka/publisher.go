package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ghalamif/FactoryBatch/internal/domain"
)

// MessageWriter is the part of kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

func NewWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafkago.RequireOne,
	}
}

// Publisher sends readings as bare JSON objects keyed by machine id, so one
// machine's readings stay on one partition.
type Publisher struct {
	w MessageWriter
}

func NewPublisher(w MessageWriter) *Publisher {
	return &Publisher{w: w}
}

func (p *Publisher) Publish(ctx context.Context, r domain.Reading) error {
	body, err := json.Marshal(wireReading{
		MachineID:   r.MachineID,
		Temperature: json.Number(domain.FormatDecimal(r.Temperature)),
		Vibration:   json.Number(domain.FormatDecimal(r.Vibration)),
		Timestamp:   r.Timestamp,
	})
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, kafkago.Message{Key: []byte(r.MachineID), Value: body}); err != nil {
		return fmt.Errorf("kafka publish %s: %w", r.MachineID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.w.Close()
}

type wireReading struct {
	MachineID   string      `json:"machine_id"`
	Temperature json.Number `json:"temperature"`
	Vibration   json.Number `json:"vibration"`
	Timestamp   string      `json:"timestamp"`
}
