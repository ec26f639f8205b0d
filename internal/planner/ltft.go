// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package planner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tis-trainee/notifications/internal/contacts"
	"github.com/tis-trainee/notifications/internal/domain"
	"github.com/tis-trainee/notifications/internal/history"
	"github.com/tis-trainee/notifications/internal/observability"
	"github.com/tis-trainee/notifications/internal/recipient"
	"github.com/tis-trainee/notifications/internal/sender"
)

// ltftTraineeContactTypes are the deanery contact types surfaced to the
// trainee on every LTFT notification (§4.J).
var ltftTraineeContactTypes = map[string]bool{
	"LTFT":                         true,
	"LTFT_SUPPORT":                 true,
	"SUPPORTED_RETURN_TO_TRAINING": true,
	"TSS_SUPPORT":                  true,
}

// reasonPhrases is the §4.J closed table for stateDetail.reason.
var reasonPhrases = map[string]string{
	"other":            "other reason",
	"changePercentage": "Change WTE percentage",
	"changeStartDate":  "Change start date",
	"changeOfCircs":    "Change of circumstances",
}

// reasonPhrase passes unknown reasons through unchanged.
func reasonPhrase(reason string) string {
	if phrase, ok := reasonPhrases[reason]; ok {
		return phrase
	}
	return reason
}

// mapLTFTKind implements §4.J's state→kind table.
func mapLTFTKind(state string, modifiedByRole string) string {
	switch state {
	case "APPROVED":
		return domain.KindLTFTApproved
	case "SUBMITTED":
		return domain.KindLTFTSubmitted
	case "UNSUBMITTED":
		if modifiedByRole == "ADMIN" {
			return domain.KindLTFTAdminUnsubmitted
		}
		return domain.KindLTFTUnsubmitted
	case "WITHDRAWN":
		return domain.KindLTFTWithdrawn
	case "REJECTED":
		return domain.KindLTFTRejected
	default:
		return domain.KindLTFTUpdated
	}
}

// LTFTPlanner implements §4.J.
type LTFTPlanner struct {
	contacts   *contacts.Resolver
	recipients *recipient.Resolver
	sender     *sender.Sender
	logger     *observability.Logger
}

// NewLTFTPlanner builds an LTFTPlanner.
func NewLTFTPlanner(contactsResolver *contacts.Resolver, recipients *recipient.Resolver, snd *sender.Sender, logger *observability.Logger) *LTFTPlanner {
	return &LTFTPlanner{contacts: contactsResolver, recipients: recipients, sender: snd, logger: logger}
}

func humanize(evt domain.LTFTEvent) domain.LTFTEvent {
	evt.Status.Current.Detail.Reason = reasonPhrase(evt.Status.Current.Detail.Reason)
	return evt
}

// PlanTrainee implements §4.J's primary queue listener: notify the
// trainee themselves, with their managing deanery's LTFT-related contacts
// attached as template variables.
func (p *LTFTPlanner) PlanTrainee(ctx context.Context, traineeID string, evt domain.LTFTEvent) error {
	mapped := humanize(evt)
	kind := mapLTFTKind(evt.Status.Current.State, evt.Status.Current.ModifiedBy.Role)

	rec, err := p.recipients.Resolve(ctx, traineeID)
	if err != nil {
		if err == recipient.ErrNoAccount {
			p.logger.InfoContext(ctx, "no-contact", zap.String("traineeId", traineeID))
			return nil
		}
		return fmt.Errorf("resolve recipient for %s: %w", traineeID, err)
	}

	all, err := p.contacts.Scope().ContactList(ctx, evt.Content.ProgrammeMembership.ManagingDeanery)
	if err != nil {
		return fmt.Errorf("fetch deanery contacts: %w", err)
	}
	filtered := make([]contacts.Contact, 0, len(all))
	for _, c := range all {
		if ltftTraineeContactTypes[c.Type] {
			filtered = append(filtered, c)
		}
	}

	variables := map[string]interface{}{
		"var":      mapped,
		"contacts": contacts.ClassifyAll(filtered),
	}

	ref := &history.Reference{Kind: string(domain.ReferenceLTFT), ID: evt.FormRef}
	_, err = p.sender.SendEmail(ctx, sender.SendEmailInput{
		TraineeID: traineeID,
		Reference: ref,
		Kind:      kind,
		Recipient: rec.Email,
		Variables: variables,
		SentAt:    time.Now(),
	})
	return err
}

// PlanTPD implements §4.J's secondary TPD queue listener; it only fires
// for APPROVED and SUBMITTED transitions.
func (p *LTFTPlanner) PlanTPD(ctx context.Context, traineeID string, evt domain.LTFTEvent) error {
	var kind string
	switch evt.Status.Current.State {
	case "APPROVED":
		kind = domain.KindLTFTApprovedTPD
	case "SUBMITTED":
		kind = domain.KindLTFTSubmittedTPD
	default:
		return nil
	}

	mapped := humanize(evt)

	variables := map[string]interface{}{"var": mapped}
	if rec, err := p.recipients.Resolve(ctx, traineeID); err == nil {
		variables["givenName"] = rec.GivenName
		variables["familyName"] = rec.FamilyName
	} else if err != recipient.ErrNoAccount {
		return fmt.Errorf("resolve trainee for TPD notification: %w", err)
	}

	ref := &history.Reference{Kind: string(domain.ReferenceLTFT), ID: evt.FormRef}
	_, err := p.sender.SendEmail(ctx, sender.SendEmailInput{
		TraineeID: traineeID,
		Reference: ref,
		Kind:      kind,
		Recipient: evt.Discussions.TpdEmail,
		Variables: variables,
		SentAt:    time.Now(),
	})
	return err
}
