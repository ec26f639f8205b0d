// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"github.com/tis-trainee/notifications/internal/observability"
)

// Producer wraps a confluent-kafka-go producer with tracing/logging, used
// by the broadcaster (M), the outbox sender (N) and the dead-letter path.
type Producer struct {
	producer *kafka.Producer
	logger   *observability.Logger
}

// NewProducer dials the Kafka bootstrap servers and starts the delivery
// report loop.
func NewProducer(bootstrapServers []string, logger *observability.Logger) (*Producer, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": joinServers(bootstrapServers),
		"acks":              "all",
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := &Producer{producer: producer, logger: logger}
	go p.handleDeliveryReports()

	return p, nil
}

// Publish sends value to topic with the given headers, blocking until the
// broker acknowledges delivery. Trace headers are added automatically when
// the context carries a recording span.
func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	start := time.Now()

	kafkaHeaders := make([]kafka.Header, 0, len(headers)+2)
	for k, v := range headers {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: k, Value: []byte(v)})
	}

	if traceID := observability.TraceID(ctx); traceID != "" {
		kafkaHeaders = append(kafkaHeaders,
			kafka.Header{Key: HeaderTraceID, Value: []byte(traceID)},
			kafka.Header{Key: HeaderSpanID, Value: []byte(observability.SpanID(ctx))},
		)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          value,
		Headers:        kafkaHeaders,
	}

	deliveryChan := make(chan kafka.Event, 1)
	if err := p.producer.Produce(msg, deliveryChan); err != nil {
		return fmt.Errorf("produce message: %w", err)
	}

	ev := <-deliveryChan
	m, ok := ev.(*kafka.Message)
	if !ok {
		return fmt.Errorf("unexpected delivery event type %T", ev)
	}
	if m.TopicPartition.Error != nil {
		return fmt.Errorf("delivery failed: %w", m.TopicPartition.Error)
	}

	p.logger.DebugContext(ctx, "event published",
		zap.String("topic", topic),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (p *Producer) handleDeliveryReports() {
	for e := range p.producer.Events() {
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			p.logger.Error("async delivery failed",
				zap.String("topic", *m.TopicPartition.Topic),
				zap.Error(m.TopicPartition.Error),
			)
		}
	}
}

// Flush blocks until every in-flight message is delivered or timeoutMs
// elapses, returning the number of messages still outstanding.
func (p *Producer) Flush(timeoutMs int) int {
	return p.producer.Flush(timeoutMs)
}

// Close releases the underlying Kafka client.
func (p *Producer) Close() error {
	p.producer.Close()
	return nil
}

func joinServers(servers []string) string {
	out := ""
	for i, s := range servers {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
