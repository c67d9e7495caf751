package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/hetulpatel/dlrarb/internal/tick"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// PublishTick writes one tick result keyed by source.
func PublishTick(ctx context.Context, writer MessageWriter, res tick.Result) error {
	if writer == nil {
		return nil
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal tick %s: %w", res.TickID, err)
	}
	msg := kafka.Message{
		Key:   []byte(res.Source),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "tick_id", Value: []byte(res.TickID)},
			{Key: "best_fingerprint", Value: []byte(res.Fingerprint())},
		},
	}
	return writer.WriteMessages(ctx, msg)
}

// Publisher adapts a writer to the tick runner.
type Publisher struct {
	writer MessageWriter
}

// NewPublisher wraps writer.
func NewPublisher(writer MessageWriter) *Publisher {
	return &Publisher{writer: writer}
}

func (p *Publisher) PublishTick(ctx context.Context, res tick.Result) error {
	return PublishTick(ctx, p.writer, res)
}
