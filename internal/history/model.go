// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package history is the durable record of every scheduled, sent, failed
// or read notification (§3.1, §4.A). It is the primary ordering anchor
// for idempotency and the sole source of truth for pending in-app rows.
package history

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Channel is the delivery channel of a History row.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelInApp Channel = "IN_APP"
)

// Status is the §3.3 state-machine status of a History row.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusPending   Status = "PENDING"
	StatusSent      Status = "SENT"
	StatusFailed    Status = "FAILED"
	StatusRead      Status = "READ"
	StatusArchived  Status = "ARCHIVED"
	StatusUnread    Status = "UNREAD"
	StatusDeleted   Status = "DELETED"
)

// ValidStatusesFor returns the allowed status set for a channel (§3.3).
func ValidStatusesFor(channel Channel) map[Status]bool {
	switch channel {
	case ChannelEmail:
		return map[Status]bool{
			StatusScheduled: true,
			StatusPending:   true,
			StatusSent:      true,
			StatusFailed:    true,
		}
	case ChannelInApp:
		return map[Status]bool{
			StatusScheduled: true,
			StatusUnread:    true,
			StatusRead:      true,
			StatusArchived:  true,
		}
	default:
		return nil
	}
}

// JSON is a generic JSONB column, mirroring the teacher's
// dictamesh/pkg/notifications/models.JSONB but parameterised so it can
// hold either a map or a Reference/Recipient/Template struct.
type JSON[T any] struct {
	Value T
}

// Value implements driver.Valuer.
func (j JSON[T]) Value() (driver.Value, error) {
	return json.Marshal(j.Value)
}

// Scan implements sql.Scanner.
func (j *JSON[T]) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, &j.Value)
}

// Reference identifies the business entity that triggered a notification.
type Reference struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Recipient describes who a notification is for and how to reach them.
type Recipient struct {
	TraineeID string  `json:"traineeId"`
	Channel   Channel `json:"channel"`
	Contact   string  `json:"contact"`
}

// Template names the rendered template, its version, and the variable
// map used to render it.
type Template struct {
	Name      string                 `json:"name"`
	Version   string                 `json:"version"`
	Variables map[string]interface{} `json:"variables"`
}

// Attachment is a pointer to a file in the object store.
type Attachment struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// Row is the GORM binding of §3.1 History. The id is a Postgres
// bigserial, giving the "monotonic object id" the spec calls for
// directly rather than via a UUID (see DESIGN.md).
type Row struct {
	ID int64 `gorm:"primaryKey;autoIncrement"`

	Reference *JSON[Reference] `gorm:"type:jsonb"`

	NotificationKind string `gorm:"type:varchar(100);not null;index:idx_history_recipient_kind"`

	RecipientTraineeID string  `gorm:"type:varchar(64);not null;index:idx_history_recipient_kind"`
	RecipientChannel   Channel `gorm:"type:varchar(20);not null"`
	RecipientContact   string  `gorm:"type:varchar(255)"`

	Template JSON[Template] `gorm:"type:jsonb"`

	Attachments JSON[[]Attachment] `gorm:"type:jsonb"`

	SentAt time.Time  `gorm:"not null;index:idx_history_status_sentat"`
	ReadAt *time.Time

	Status       Status `gorm:"type:varchar(20);not null;index:idx_history_status_sentat"`
	StatusDetail string `gorm:"type:text"`

	LatestStatusEventAt *time.Time

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

// TableName overrides GORM's pluralisation.
func (Row) TableName() string {
	return "notification_history"
}

// ReferenceOf returns the row's reference, or nil if it has none.
func (r *Row) ReferenceOf() *Reference {
	if r.Reference == nil {
		return nil
	}
	return &r.Reference.Value
}
