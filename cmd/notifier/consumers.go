// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tis-trainee/notifications/internal/config"
	"github.com/tis-trainee/notifications/internal/events"
	"github.com/tis-trainee/notifications/internal/intake"
	"github.com/tis-trainee/notifications/internal/observability"
)

// queueBinding pairs one configured queue name with the Dispatcher method
// that owns it.
type queueBinding struct {
	name  string
	topic string
	h     events.Handler
}

// startConsumers builds and runs one Consumer per queue in §6.1, each
// bound to its Dispatcher method, and returns the live consumers so the
// caller can stop them on shutdown.
func startConsumers(cfg *config.Config, logger *observability.Logger, deadLetterProducer *events.Producer, d *intake.Dispatcher) ([]*events.Consumer, error) {
	bindings := []queueBinding{
		{"account-confirmed", cfg.Queues.AccountConfirmed, d.HandleAccountConfirmed},
		{"account-updated", cfg.Queues.AccountUpdated, d.HandleAccountUpdated},
		{"coj-published", cfg.Queues.CojPublished, d.HandleCojPublished},
		{"contact-details-updated", cfg.Queues.ContactDetailsUpdated, d.HandleContactDetailsUpdated},
		{"email-event", cfg.Queues.EmailEvent, d.HandleEmailEvent},
		{"form-updated", cfg.Queues.FormUpdated, d.HandleFormUpdated},
		{"gmc-rejected", cfg.Queues.GmcRejected, d.HandleGmcRejected},
		{"gmc-updated", cfg.Queues.GmcUpdated, d.HandleGmcUpdated},
		{"ltft-updated", cfg.Queues.LtftUpdated, d.HandleLTFTUpdated},
		{"ltft-updated-tpd", cfg.Queues.LtftUpdatedTpd, d.HandleLTFTUpdatedTPD},
		{"placement-updated", cfg.Queues.PlacementUpdated, d.HandlePlacementUpdated},
		{"placement-deleted", cfg.Queues.PlacementDeleted, d.HandlePlacementDeleted},
		{"programme-membership-updated", cfg.Queues.ProgrammeMembershipUpdated, d.HandleProgrammeMembershipUpdated},
		{"programme-membership-deleted", cfg.Queues.ProgrammeMembershipDeleted, d.HandleProgrammeMembershipDeleted},
		{"outbox", cfg.Queues.Outbox, d.HandleOutbox},
	}

	consumers := make([]*events.Consumer, 0, len(bindings))
	for _, b := range bindings {
		if b.topic == "" {
			logger.Warn("queue not configured, skipping listener", zap.String("queue", b.name))
			continue
		}

		consumer, err := events.NewConsumer(events.ConsumerConfig{
			BootstrapServers:    cfg.Kafka.BootstrapServers,
			ConsumerGroup:       cfg.Kafka.ConsumerGroup,
			Topic:               b.topic,
			MaxDeliveryAttempts: cfg.Queues.MaxDeliveryAttempts,
			DeadLetterTopic:     events.DeadLetterTopic,
		}, logger, deadLetterProducer)
		if err != nil {
			for _, c := range consumers {
				c.Close() //nolint:errcheck
			}
			return nil, fmt.Errorf("start consumer for %s: %w", b.topic, err)
		}

		handler, topic := b.h, b.topic
		go func(c *events.Consumer) {
			if err := c.Run(context.Background(), handler); err != nil {
				logger.Error("consumer stopped", zap.String("topic", topic), zap.Error(err))
			}
		}(consumer)

		consumers = append(consumers, consumer)
	}

	return consumers, nil
}
