// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package sender

import (
	"context"
	"fmt"
	"time"

	"github.com/tis-trainee/notifications/internal/config"
	"github.com/tis-trainee/notifications/internal/history"
	"github.com/tis-trainee/notifications/internal/objectstore"
	"github.com/tis-trainee/notifications/internal/render"
)

// Broadcaster is the subset of internal/broadcast.Publisher the sender
// needs; declared locally so the sender does not import internal/broadcast.
type Broadcaster interface {
	Publish(ctx context.Context, row *history.Row) error
}

// Sender implements the §4.E message sender for both channels.
type Sender struct {
	store       history.Store
	renderer    render.Renderer
	localizer   *render.Localizer
	objects     *objectstore.Store
	broadcaster Broadcaster

	smtp config.SMTPConfig
	from string

	emailEnabled bool
	inAppEnabled bool

	templateVersion func(kind, channel string) string
}

// New wires every collaborator the sender needs.
func New(
	store history.Store,
	renderer render.Renderer,
	localizer *render.Localizer,
	objects *objectstore.Store,
	broadcaster Broadcaster,
	emailCfg config.EmailConfig,
	inAppEnabled bool,
	templateVersion func(kind, channel string) string,
) *Sender {
	return &Sender{
		store:           store,
		renderer:        renderer,
		localizer:       localizer,
		objects:         objects,
		broadcaster:     broadcaster,
		smtp:            emailCfg.SMTP,
		from:            emailCfg.From,
		emailEnabled:    emailCfg.Enabled,
		inAppEnabled:    inAppEnabled,
		templateVersion: templateVersion,
	}
}

// SendEmailInput is everything needed to send (or schedule) one EMAIL
// notification.
type SendEmailInput struct {
	TraineeID   string
	Reference   *history.Reference
	Kind        string
	Recipient   string
	Variables   map[string]interface{}
	Attachments []history.Attachment
	SentAt      time.Time

	// SuppressSend implements the planners' §4.H/§4.I "meetsCriteria"
	// gate: a row is still written (for reporting) but no mail leaves
	// the system.
	SuppressSend bool
}

// SendEmail implements the EMAIL path of §4.E: renders subject/content,
// downloads attachments, sends over SMTP, and writes a History row. A
// missing recipient address is recorded as a FAILED row; render,
// attachment, compose and SMTP errors are returned without writing a row.
func (s *Sender) SendEmail(ctx context.Context, in SendEmailInput) (*history.Row, error) {
	variables := withHashedEmail(in.Variables, in.Recipient)

	row, err := s.replaceInPlaceRow(ctx, in.TraineeID, in.Reference, in.Kind, history.ChannelEmail, in.Recipient, in.SentAt)
	if err != nil {
		return nil, err
	}

	if in.Recipient == "" {
		return s.finish(ctx, row, history.StatusFailed, "No email address available.", in.Kind, "1", variables, in.Attachments)
	}

	if in.SuppressSend {
		return s.finish(ctx, row, history.StatusPending, "suppressed: meetsCriteria gate", in.Kind, s.templateVersion(in.Kind, string(history.ChannelEmail)), variables, in.Attachments)
	}

	version := s.templateVersion(in.Kind, string(history.ChannelEmail))
	path := s.renderer.TemplatePath(string(history.ChannelEmail), in.Kind, version)
	localized := s.localizer.LocalizeVariables(variables)

	rendered, err := s.renderer.Process(ctx, path, []string{"subject", "content"}, localized)
	if err != nil {
		return nil, fmt.Errorf("render template %s: %w", path, err)
	}

	attachments, err := s.downloadAttachments(ctx, in.Attachments)
	if err != nil {
		return nil, fmt.Errorf("download attachments: %w", err)
	}

	msg, err := compose(composeOptions{
		From:           s.from,
		To:             in.Recipient,
		Subject:        rendered["subject"],
		HTMLBody:       rendered["content"],
		NotificationID: row.ID,
		Attachments:    attachments,
	})
	if err != nil {
		return nil, fmt.Errorf("compose message: %w", err)
	}

	if err := sendMail(ctx, s.smtp, s.from, in.Recipient, msg.Bytes); err != nil {
		return nil, fmt.Errorf("send mail: %w", err)
	}

	return s.finish(ctx, row, history.StatusPending, "", in.Kind, version, variables, in.Attachments)
}

// CreateNotifications implements the IN_APP path of §4.E: writes a row
// without any transport. suppressSend rows are still written, for
// reporting consistency.
func (s *Sender) CreateNotifications(
	ctx context.Context,
	traineeID string,
	ref *history.Reference,
	kind string,
	variables map[string]interface{},
	suppressSend bool,
	sentAt time.Time,
) (*history.Row, error) {
	status := history.StatusUnread
	if sentAt.After(time.Now()) {
		status = history.StatusScheduled
	}

	version := s.templateVersion(kind, string(history.ChannelInApp))

	row := &history.Row{
		NotificationKind:   kind,
		RecipientTraineeID: traineeID,
		RecipientChannel:   history.ChannelInApp,
		Template: history.JSON[history.Template]{Value: history.Template{
			Name:      kind,
			Version:   version,
			Variables: variables,
		}},
		SentAt: sentAt,
		Status: status,
	}
	if ref != nil {
		row.Reference = &history.JSON[history.Reference]{Value: *ref}
	}
	if suppressSend {
		row.StatusDetail = "suppressed: meetsCriteria gate"
	}

	if err := s.store.Save(ctx, row); err != nil {
		return nil, fmt.Errorf("save in-app history: %w", err)
	}
	s.broadcastBestEffort(ctx, row)

	return row, nil
}

// Resend implements the §4.E resend API: re-renders from the stored
// template+variables with an added `originallySentOn` variable, sends to
// the new address, and writes a new row keyed by the original id.
func (s *Sender) Resend(ctx context.Context, original *history.Row, newEmail string) (*history.Row, error) {
	variables := make(map[string]interface{}, len(original.Template.Value.Variables)+2)
	for k, v := range original.Template.Value.Variables {
		variables[k] = v
	}
	variables["originallySentOn"] = original.SentAt
	variables["hashedEmail"] = hashedEmail(newEmail)

	path := s.renderer.TemplatePath(string(history.ChannelEmail), original.NotificationKind, original.Template.Value.Version)
	localized := s.localizer.LocalizeVariables(variables)

	rendered, err := s.renderer.Process(ctx, path, []string{"subject", "content"}, localized)
	if err != nil {
		return nil, fmt.Errorf("render resend template %s: %w", path, err)
	}

	attachments, err := s.downloadAttachments(ctx, original.Attachments.Value)
	if err != nil {
		return nil, fmt.Errorf("download attachments: %w", err)
	}

	msg, err := compose(composeOptions{
		From:           s.from,
		To:             newEmail,
		Subject:        rendered["subject"],
		HTMLBody:       rendered["content"],
		NotificationID: original.ID,
		Attachments:    attachments,
	})
	if err != nil {
		return nil, fmt.Errorf("compose resend message: %w", err)
	}

	if err := sendMail(ctx, s.smtp, s.from, newEmail, msg.Bytes); err != nil {
		return nil, fmt.Errorf("send resend mail: %w", err)
	}

	now := time.Now()
	row := &history.Row{
		ID:                 original.ID,
		Reference:          original.Reference,
		NotificationKind:   original.NotificationKind,
		RecipientTraineeID: original.RecipientTraineeID,
		RecipientChannel:   history.ChannelEmail,
		RecipientContact:   newEmail,
		Template: history.JSON[history.Template]{Value: history.Template{
			Name:      original.NotificationKind,
			Version:   original.Template.Value.Version,
			Variables: variables,
		}},
		Attachments:         original.Attachments,
		SentAt:              now,
		Status:              history.StatusPending,
		StatusDetail:        fmt.Sprintf("lastRetry: %s", now.Format(time.RFC3339)),
		LatestStatusEventAt: timePtr(now),
	}

	if err := s.store.Save(ctx, row); err != nil {
		return nil, fmt.Errorf("save resend history: %w", err)
	}
	s.broadcastBestEffort(ctx, row)

	return row, nil
}

// replaceInPlaceRow implements §4.E's "before any save" rule: if a
// SCHEDULED email row already exists for (trainee, ref, kind), the new
// row reuses that row's id; afterwards every other SCHEDULED row for the
// tuple is deleted.
func (s *Sender) replaceInPlaceRow(ctx context.Context, traineeID string, ref *history.Reference, kind string, channel history.Channel, contact string, sentAt time.Time) (*history.Row, error) {
	row := &history.Row{
		NotificationKind:   kind,
		RecipientTraineeID: traineeID,
		RecipientChannel:   channel,
		RecipientContact:   contact,
		SentAt:             sentAt,
		Status:             history.StatusPending,
	}
	if ref != nil {
		row.Reference = &history.JSON[history.Reference]{Value: *ref}

		existing, err := s.store.FindScheduledByReferenceAndKind(ctx, traineeID, string(ref.Kind), ref.ID, kind)
		if err != nil {
			return nil, fmt.Errorf("find scheduled rows for replace-in-place: %w", err)
		}
		if len(existing) > 0 {
			row.ID = existing[0].ID
			for _, stale := range existing[1:] {
				if err := s.store.DeleteByIDAndRecipient(ctx, stale.ID, traineeID); err != nil {
					return nil, fmt.Errorf("delete stale scheduled row %d: %w", stale.ID, err)
				}
			}
		}
	}
	return row, nil
}

func (s *Sender) finish(
	ctx context.Context,
	row *history.Row,
	status history.Status,
	detail string,
	kind string,
	version string,
	variables map[string]interface{},
	attachments []history.Attachment,
) (*history.Row, error) {
	row.Status = status
	row.StatusDetail = detail
	row.Template = history.JSON[history.Template]{Value: history.Template{Name: kind, Version: version, Variables: variables}}
	row.Attachments = history.JSON[[]history.Attachment]{Value: attachments}

	if err := s.store.Save(ctx, row); err != nil {
		return nil, fmt.Errorf("save history row: %w", err)
	}
	s.broadcastBestEffort(ctx, row)

	return row, nil
}

func (s *Sender) downloadAttachments(ctx context.Context, attachments []history.Attachment) ([]*objectstore.Object, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	out := make([]*objectstore.Object, 0, len(attachments))
	for _, a := range attachments {
		obj, err := s.objects.Download(ctx, a.Bucket, a.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// broadcastBestEffort logs but never rolls back a save on broadcast
// failure (§4.M: "eventually consistent downstream").
func (s *Sender) broadcastBestEffort(ctx context.Context, row *history.Row) {
	if s.broadcaster == nil {
		return
	}
	_ = s.broadcaster.Publish(ctx, row)
}

func withHashedEmail(variables map[string]interface{}, recipient string) map[string]interface{} {
	out := make(map[string]interface{}, len(variables)+1)
	for k, v := range variables {
		out[k] = v
	}
	if _, exists := out["hashedEmail"]; !exists {
		out["hashedEmail"] = hashedEmail(recipient)
	}
	return out
}

func timePtr(t time.Time) *time.Time { return &t }
