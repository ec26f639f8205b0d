// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package feedback implements §4.L: turning provider delivery events and
// contact-details updates into History status transitions.
package feedback

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tis-trainee/notifications/internal/events"
	"github.com/tis-trainee/notifications/internal/history"
	"github.com/tis-trainee/notifications/internal/observability"
	"github.com/tis-trainee/notifications/internal/sender"
)

// MailHeader is one entry of the SES-style mail.headers array.
type MailHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// BounceDetail is the SES bounce sub-object.
type BounceDetail struct {
	BounceType    string `json:"bounceType"`
	BounceSubType string `json:"bounceSubType"`
}

// ComplaintDetail is the SES complaint sub-object.
type ComplaintDetail struct {
	ComplaintFeedbackType string `json:"complaintFeedbackType"`
}

// ProviderEvent is the §6.1 "email-event" payload shape.
type ProviderEvent struct {
	NotificationType string `json:"notificationType"`
	Mail             struct {
		Headers []MailHeader `json:"headers"`
	} `json:"mail"`
	Bounce    *BounceDetail    `json:"bounce,omitempty"`
	Complaint *ComplaintDetail `json:"complaint,omitempty"`
}

// notificationID extracts the History id from the mail.headers array.
func (e ProviderEvent) notificationID() string {
	for _, h := range e.Mail.Headers {
		if h.Name == events.HeaderNotificationID {
			return h.Value
		}
	}
	return ""
}

// classify implements §4.L's bounce taxonomy and the delivery/complaint
// mapping. A zero Status means the event is recognised but does not
// drive a transition (e.g. a bounce sub-type outside the documented
// taxonomy).
func classify(e ProviderEvent) (history.Status, string) {
	switch e.NotificationType {
	case "Bounce":
		if e.Bounce == nil {
			return "", ""
		}
		switch e.Bounce.BounceType {
		case "Permanent":
			return history.StatusFailed, fmt.Sprintf("Bounce: Permanent - %s", e.Bounce.BounceSubType)
		case "Transient":
			if e.Bounce.BounceSubType == "General" {
				return history.StatusFailed, fmt.Sprintf("Bounce: Transient - %s", e.Bounce.BounceSubType)
			}
		}
		return "", ""
	case "Complaint":
		feedbackType := ""
		if e.Complaint != nil {
			feedbackType = e.Complaint.ComplaintFeedbackType
		}
		return history.StatusFailed, fmt.Sprintf("Complaint: %s", feedbackType)
	case "Delivery":
		return history.StatusSent, ""
	case "Open":
		return history.StatusRead, ""
	default:
		return "", ""
	}
}

// Handler implements §4.L.
type Handler struct {
	store  history.Store
	sender *sender.Sender
	logger *observability.Logger
}

// New builds a feedback Handler.
func New(store history.Store, snd *sender.Sender, logger *observability.Logger) *Handler {
	return &Handler{store: store, sender: snd, logger: logger}
}

// HandleProviderEvent implements §4.L's main path: compute the
// (newStatus, detail, eventAt) triple and apply it through the
// idempotency-gated updateStatusIfNewer.
func (h *Handler) HandleProviderEvent(ctx context.Context, evt ProviderEvent, eventAt time.Time) error {
	raw := evt.notificationID()
	if raw == "" {
		h.logger.WarnContext(ctx, "provider event missing NotificationId header", zap.String("notificationType", evt.NotificationType))
		return nil
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("parse NotificationId %q: %w", raw, err)
	}

	status, detail := classify(evt)
	if status == "" {
		h.logger.InfoContext(ctx, "provider event ignored", zap.String("notificationType", evt.NotificationType), zap.Int64("historyId", id))
		return nil
	}

	applied, err := h.store.UpdateStatusIfNewer(ctx, id, eventAt, status, detail)
	if err != nil {
		return fmt.Errorf("update status for %d: %w", id, err)
	}
	if applied == 0 {
		h.logger.DebugContext(ctx, "stale provider event dropped", zap.Int64("historyId", id), zap.Time("eventAt", eventAt))
	}
	return nil
}

// HandleContactDetailsUpdated implements §4.L's contact-details-update
// listener: every FAILED email row for the trainee whose recorded
// contact differs from the new address is resent.
func (h *Handler) HandleContactDetailsUpdated(ctx context.Context, traineeID, newEmail string) error {
	rows, err := h.store.FindAllByRecipientAndStatus(ctx, traineeID, history.StatusFailed)
	if err != nil {
		return fmt.Errorf("list failed rows for %s: %w", traineeID, err)
	}

	for _, row := range rows {
		if row.RecipientChannel != history.ChannelEmail || row.RecipientContact == newEmail {
			continue
		}
		if _, err := h.sender.Resend(ctx, row, newEmail); err != nil {
			h.logger.ErrorContext(ctx, "resend on contact update failed", zap.Int64("historyId", row.ID), zap.Error(err))
		}
	}
	return nil
}
