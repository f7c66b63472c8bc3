// Package kafka publishes completed flow estimates to a sink topic for
// downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/river-flow-service/internal/engine"
)

// Publisher produces flow results to a Kafka topic.
// It implements engine.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the given sink topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes one flow result and writes it to the sink topic. The
// message key is the dam ID, so per-dam ordering is preserved.
func (p *Publisher) Publish(ctx context.Context, r *engine.Result) error {
	msg, err := serializeToMessage(r)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a flow result into a Kafka message.
func serializeToMessage(r *engine.Result) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize flow result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.DamID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "dam_id", Value: []byte(r.DamID)},
			{Key: "data_fresh", Value: []byte(strconv.FormatBool(r.DataFresh))},
			{Key: "computed_at", Value: []byte(r.ComputedAt.Format(time.RFC3339))},
		},
	}, nil
}
