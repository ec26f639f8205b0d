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

// Handler processes one inbound message. Returning an error causes the
// consumer to retry via re-delivery rather than commit the offset; per
// §5 "every handler is idempotent under re-execution".
type Handler func(ctx context.Context, msg *Message) error

// Consumer wraps a confluent-kafka-go consumer bound to a single topic.
type Consumer struct {
	consumer            *kafka.Consumer
	logger               *observability.Logger
	topic                string
	maxDeliveryAttempts  int
	deadLetterProducer   *Producer
	deadLetterTopic      string
	running              bool
}

// ConsumerConfig configures a single-topic consumer, including the
// dead-letter destination used once HeaderDeliveryCount exceeds
// MaxDeliveryAttempts.
type ConsumerConfig struct {
	BootstrapServers    []string
	ConsumerGroup       string
	Topic               string
	MaxDeliveryAttempts int
	DeadLetterTopic     string
}

// NewConsumer dials Kafka and subscribes to cfg.Topic.
func NewConsumer(cfg ConsumerConfig, logger *observability.Logger, deadLetterProducer *Producer) (*Consumer, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  joinServers(cfg.BootstrapServers),
		"group.id":           cfg.ConsumerGroup,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	if err := consumer.Subscribe(cfg.Topic, nil); err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", cfg.Topic, err)
	}

	maxAttempts := cfg.MaxDeliveryAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	return &Consumer{
		consumer:            consumer,
		logger:               logger,
		topic:                cfg.Topic,
		maxDeliveryAttempts:  maxAttempts,
		deadLetterProducer:   deadLetterProducer,
		deadLetterTopic:      cfg.DeadLetterTopic,
	}, nil
}

// Run consumes until ctx is cancelled. Handler errors re-queue the message
// (offset is not committed); once a message's delivery count exceeds
// maxDeliveryAttempts it is routed to the dead-letter topic instead and the
// offset is committed so the poison message stops blocking the partition.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	c.running = true
	c.logger.Info("consumer starting", zap.String("topic", c.topic))

	for c.running {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		kafkaMsg, err := c.consumer.ReadMessage(200 * time.Millisecond)
		if err != nil {
			if kafkaErr, ok := err.(kafka.Error); ok && kafkaErr.Code() == kafka.ErrTimedOut {
				continue
			}
			c.logger.Error("read message failed", zap.String("topic", c.topic), zap.Error(err))
			continue
		}

		msg := toMessage(kafkaMsg)

		if msg.DeliveryCount() > c.maxDeliveryAttempts {
			c.deadLetter(ctx, msg)
			c.commit(kafkaMsg)
			continue
		}

		if err := handler(ctx, msg); err != nil {
			c.logger.Warn("handler failed, message will be redelivered",
				zap.String("topic", c.topic),
				zap.Int("delivery_count", msg.DeliveryCount()),
				zap.Error(err),
			)
			continue
		}

		c.commit(kafkaMsg)
	}

	return nil
}

func (c *Consumer) commit(kafkaMsg *kafka.Message) {
	if _, err := c.consumer.CommitMessage(kafkaMsg); err != nil {
		c.logger.Error("commit offset failed", zap.Error(err))
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg *Message) {
	c.logger.Error("message exceeded max delivery attempts, routing to dead letter",
		zap.String("topic", c.topic),
		zap.Int("delivery_count", msg.DeliveryCount()),
	)
	if c.deadLetterProducer == nil || c.deadLetterTopic == "" {
		return
	}
	if err := c.deadLetterProducer.Publish(ctx, c.deadLetterTopic, msg.Key, msg.Value, msg.Headers); err != nil {
		c.logger.Error("failed to publish to dead letter topic", zap.Error(err))
	}
}

// Stop ends the consume loop after the current poll returns.
func (c *Consumer) Stop() {
	c.running = false
}

// Close releases the underlying Kafka client.
func (c *Consumer) Close() error {
	return c.consumer.Close()
}

func toMessage(kafkaMsg *kafka.Message) *Message {
	headers := make(map[string]string, len(kafkaMsg.Headers))
	for _, h := range kafkaMsg.Headers {
		headers[h.Key] = string(h.Value)
	}

	return &Message{
		Topic:     *kafkaMsg.TopicPartition.Topic,
		Key:       string(kafkaMsg.Key),
		Value:     kafkaMsg.Value,
		Headers:   headers,
		Partition: kafkaMsg.TopicPartition.Partition,
		Offset:    int64(kafkaMsg.TopicPartition.Offset),
	}
}
