// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package broadcast implements §4.M: publishing a flat view of a History
// row (or an id-only delete marker) to the outbound topic so downstream
// consumers stay eventually consistent without querying History directly.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tis-trainee/notifications/internal/events"
	"github.com/tis-trainee/notifications/internal/history"
	"github.com/tis-trainee/notifications/internal/observability"
)

// view is the flattened wire representation of a History row; it exists
// separately from history.Row so storage-only fields never leak onto the
// topic and the shape can evolve independently of the table schema.
type view struct {
	ID               int64                  `json:"id"`
	Reference        *history.Reference     `json:"reference,omitempty"`
	NotificationKind string                 `json:"notificationKind"`
	TraineeID        string                 `json:"traineeId"`
	Channel          history.Channel        `json:"channel"`
	Contact          string                 `json:"contact,omitempty"`
	Status           history.Status         `json:"status"`
	StatusDetail     string                 `json:"statusDetail,omitempty"`
	SentAt           time.Time              `json:"sentAt"`
	ReadAt           *time.Time             `json:"readAt,omitempty"`
	Variables        map[string]interface{} `json:"variables,omitempty"`
}

type deleteView struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}

// Publisher implements sender.Broadcaster against a Kafka producer.
type Publisher struct {
	producer *events.Producer
	topic    string
	logger   *observability.Logger
}

// New builds a Publisher against the configured outbound topic.
func New(producer *events.Producer, topic string, logger *observability.Logger) *Publisher {
	if topic == "" {
		topic = events.BroadcastTopic
	}
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

// Publish implements sender.Broadcaster.
func (p *Publisher) Publish(ctx context.Context, row *history.Row) error {
	v := view{
		ID:               row.ID,
		Reference:        row.ReferenceOf(),
		NotificationKind: row.NotificationKind,
		TraineeID:        row.RecipientTraineeID,
		Channel:          row.RecipientChannel,
		Contact:          row.RecipientContact,
		Status:           row.Status,
		StatusDetail:     row.StatusDetail,
		SentAt:           row.SentAt,
		ReadAt:           row.ReadAt,
		Variables:        row.Template.Value.Variables,
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal broadcast view for %d: %w", row.ID, err)
	}

	key := fmt.Sprintf("%d", row.ID)
	if err := p.producer.Publish(ctx, p.topic, key, payload, nil); err != nil {
		return fmt.Errorf("publish history %d: %w", row.ID, err)
	}
	return nil
}

// PublishDelete publishes an id-only delete marker (§4.M).
func (p *Publisher) PublishDelete(ctx context.Context, id int64) error {
	payload, err := json.Marshal(deleteView{ID: id, Deleted: true})
	if err != nil {
		return fmt.Errorf("marshal delete marker for %d: %w", id, err)
	}

	key := fmt.Sprintf("%d", id)
	if err := p.producer.Publish(ctx, p.topic, key, payload, nil); err != nil {
		return fmt.Errorf("publish delete %d: %w", id, err)
	}
	return nil
}
