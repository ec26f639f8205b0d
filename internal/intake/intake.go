// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package intake implements §4.K: one listener per inbound queue named in
// §6.1. Each listener deserialises its payload tolerantly and delegates
// to the relevant planner (H/I/J) or directly to the sender (E) — it owns
// no decision logic of its own. The programme-membership, placement,
// LTFT-updated and contact-details listeners log each event; the
// LTFT-TPD, email-event, outbox and account/coj/form/gmc listeners do not.
package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tis-trainee/notifications/internal/domain"
	"github.com/tis-trainee/notifications/internal/events"
	"github.com/tis-trainee/notifications/internal/feedback"
	"github.com/tis-trainee/notifications/internal/history"
	"github.com/tis-trainee/notifications/internal/observability"
	"github.com/tis-trainee/notifications/internal/outbox"
	"github.com/tis-trainee/notifications/internal/planner"
	"github.com/tis-trainee/notifications/internal/recipient"
	"github.com/tis-trainee/notifications/internal/sender"
)

// Dispatcher wires the listeners in this package to their backing
// collaborators. Each exported method is a events.Handler bound to one
// named queue in internal/config.QueueConfig.
type Dispatcher struct {
	programme  *planner.ProgrammePlanner
	placement  *planner.PlacementPlanner
	ltft       *planner.LTFTPlanner
	feedback   *feedback.Handler
	recipients *recipient.Resolver
	sender     *sender.Sender
	outbox     *outbox.Outbox
	logger     *observability.Logger
}

// New builds a Dispatcher from the already-constructed components.
func New(
	programme *planner.ProgrammePlanner,
	placement *planner.PlacementPlanner,
	ltft *planner.LTFTPlanner,
	feedbackHandler *feedback.Handler,
	recipients *recipient.Resolver,
	snd *sender.Sender,
	ob *outbox.Outbox,
	logger *observability.Logger,
) *Dispatcher {
	return &Dispatcher{
		programme:  programme,
		placement:  placement,
		ltft:       ltft,
		feedback:   feedbackHandler,
		recipients: recipients,
		sender:     snd,
		outbox:     ob,
		logger:     logger,
	}
}

// HandleProgrammeMembershipUpdated implements the
// programme-membership-updated listener, delegating to H.
func (d *Dispatcher) HandleProgrammeMembershipUpdated(ctx context.Context, msg *events.Message) error {
	var pm domain.ProgrammeMembership
	if err := json.Unmarshal(msg.Value, &pm); err != nil {
		return fmt.Errorf("decode programme membership event: %w", err)
	}
	d.logger.InfoContext(ctx, "programme membership updated", zap.String("tisId", pm.TisID))

	if err := d.programme.Plan(ctx, pm); err != nil {
		return fmt.Errorf("plan programme membership %s: %w", pm.TisID, err)
	}
	return nil
}

// HandleProgrammeMembershipDeleted implements the
// programme-membership-deleted listener (§8 scenario 2).
func (d *Dispatcher) HandleProgrammeMembershipDeleted(ctx context.Context, msg *events.Message) error {
	var pm domain.ProgrammeMembership
	if err := json.Unmarshal(msg.Value, &pm); err != nil {
		return fmt.Errorf("decode programme membership delete event: %w", err)
	}
	d.logger.InfoContext(ctx, "programme membership deleted", zap.String("tisId", pm.TisID))

	if err := d.programme.Delete(ctx, pm); err != nil {
		return fmt.Errorf("delete programme membership %s: %w", pm.TisID, err)
	}
	return nil
}

// HandlePlacementUpdated implements the placement-updated listener,
// delegating to I.
func (d *Dispatcher) HandlePlacementUpdated(ctx context.Context, msg *events.Message) error {
	var p domain.Placement
	if err := json.Unmarshal(msg.Value, &p); err != nil {
		return fmt.Errorf("decode placement event: %w", err)
	}
	d.logger.InfoContext(ctx, "placement updated", zap.String("tisId", p.TisID))

	if err := d.placement.Plan(ctx, p); err != nil {
		return fmt.Errorf("plan placement %s: %w", p.TisID, err)
	}
	return nil
}

// HandlePlacementDeleted implements the placement-deleted listener.
func (d *Dispatcher) HandlePlacementDeleted(ctx context.Context, msg *events.Message) error {
	var p domain.Placement
	if err := json.Unmarshal(msg.Value, &p); err != nil {
		return fmt.Errorf("decode placement delete event: %w", err)
	}
	d.logger.InfoContext(ctx, "placement deleted", zap.String("tisId", p.TisID))

	if err := d.placement.Delete(ctx, p); err != nil {
		return fmt.Errorf("delete placement %s: %w", p.TisID, err)
	}
	return nil
}

// HandleLTFTUpdated implements the primary ltft-updated listener (§4.J
// trainee channel).
func (d *Dispatcher) HandleLTFTUpdated(ctx context.Context, msg *events.Message) error {
	var evt domain.LTFTEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode ltft event: %w", err)
	}
	d.logger.InfoContext(ctx, "ltft updated", zap.String("formRef", evt.FormRef), zap.String("state", evt.Status.Current.State))

	if err := d.ltft.PlanTrainee(ctx, evt.TraineeID, evt); err != nil {
		return fmt.Errorf("plan ltft trainee notification for %s: %w", evt.FormRef, err)
	}
	return nil
}

// HandleLTFTUpdatedTPD implements the secondary ltft-updated-tpd listener
// (§4.J TPD channel).
func (d *Dispatcher) HandleLTFTUpdatedTPD(ctx context.Context, msg *events.Message) error {
	var evt domain.LTFTEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode ltft tpd event: %w", err)
	}

	if err := d.ltft.PlanTPD(ctx, evt.TraineeID, evt); err != nil {
		return fmt.Errorf("plan ltft tpd notification for %s: %w", evt.FormRef, err)
	}
	return nil
}

// HandleEmailEvent implements the email-event (provider feedback)
// listener, delegating to L.
func (d *Dispatcher) HandleEmailEvent(ctx context.Context, msg *events.Message) error {
	var evt feedback.ProviderEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode provider event: %w", err)
	}

	eventAt := time.Now()
	if err := d.feedback.HandleProviderEvent(ctx, evt, eventAt); err != nil {
		return fmt.Errorf("handle provider event: %w", err)
	}
	return nil
}

// HandleContactDetailsUpdated implements the contact-details-updated
// listener, delegating to L's resend flow.
func (d *Dispatcher) HandleContactDetailsUpdated(ctx context.Context, msg *events.Message) error {
	var evt domain.AccountEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode contact details event: %w", err)
	}
	d.logger.InfoContext(ctx, "contact details updated", zap.String("traineeId", evt.TraineeID))

	if err := d.feedback.HandleContactDetailsUpdated(ctx, evt.TraineeID, evt.Email); err != nil {
		return fmt.Errorf("handle contact details update for %s: %w", evt.TraineeID, err)
	}
	return nil
}

// HandleOutbox implements the outbox listener: an external request to
// re-dispatch specific History ids to the broadcast topic, by id.
func (d *Dispatcher) HandleOutbox(ctx context.Context, msg *events.Message) error {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("decode outbox request: %w", err)
	}

	failed, err := d.outbox.SendToOutbox(ctx, req.IDs)
	if err != nil {
		return fmt.Errorf("send to outbox: %w", err)
	}
	if len(failed) > 0 {
		d.logger.WarnContext(ctx, "outbox batch had failures", zap.Int64s("failedIds", failed))
	}
	return nil
}

// directSend resolves a recipient and fires a single EMAIL notification
// with no scheduling or exclusion gate, for the lightly-specified
// listeners below (§4.K, §9 Open Questions).
func (d *Dispatcher) directSend(ctx context.Context, traineeID string, ref *history.Reference, kind string, variables map[string]interface{}) error {
	rec, err := d.recipients.Resolve(ctx, traineeID)
	if err != nil {
		if err == recipient.ErrNoAccount {
			d.logger.InfoContext(ctx, "no-contact", zap.String("traineeId", traineeID), zap.String("kind", kind))
			return nil
		}
		return fmt.Errorf("resolve recipient for %s: %w", traineeID, err)
	}

	_, err = d.sender.SendEmail(ctx, sender.SendEmailInput{
		TraineeID: traineeID,
		Reference: ref,
		Kind:      kind,
		Recipient: rec.Email,
		Variables: variables,
		SentAt:    time.Now(),
	})
	return err
}

// HandleAccountConfirmed implements the account-confirmed listener.
func (d *Dispatcher) HandleAccountConfirmed(ctx context.Context, msg *events.Message) error {
	var evt domain.AccountEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode account confirmed event: %w", err)
	}
	return d.directSend(ctx, evt.TraineeID, nil, domain.KindAccountConfirmed, map[string]interface{}{})
}

// HandleAccountUpdated implements the account-updated listener.
func (d *Dispatcher) HandleAccountUpdated(ctx context.Context, msg *events.Message) error {
	var evt domain.AccountEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode account updated event: %w", err)
	}
	return d.directSend(ctx, evt.TraineeID, nil, domain.KindAccountUpdated, map[string]interface{}{})
}

// HandleCojPublished implements the coj-published listener.
func (d *Dispatcher) HandleCojPublished(ctx context.Context, msg *events.Message) error {
	var evt domain.COJEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode coj published event: %w", err)
	}
	ref := &history.Reference{Kind: string(domain.ReferenceProgrammeMembership), ID: evt.ProgrammeMembershipID}
	return d.directSend(ctx, evt.TraineeID, ref, domain.KindCojPublished, map[string]interface{}{"syncedAt": evt.SyncedAt})
}

// HandleFormUpdated implements the form-updated listener.
func (d *Dispatcher) HandleFormUpdated(ctx context.Context, msg *events.Message) error {
	var evt domain.FormEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode form updated event: %w", err)
	}
	ref := &history.Reference{Kind: string(domain.ReferenceForm), ID: evt.FormID}
	return d.directSend(ctx, evt.TraineeID, ref, domain.KindFormUpdated, map[string]interface{}{"formName": evt.FormName, "status": evt.Status})
}

// HandleGmcUpdated implements the gmc-updated listener.
func (d *Dispatcher) HandleGmcUpdated(ctx context.Context, msg *events.Message) error {
	var evt domain.GMCEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode gmc updated event: %w", err)
	}
	return d.directSend(ctx, evt.TraineeID, nil, domain.KindGmcUpdated, map[string]interface{}{"gmcNumber": evt.GmcNumber, "status": evt.Status})
}

// HandleGmcRejected implements the gmc-rejected listener.
func (d *Dispatcher) HandleGmcRejected(ctx context.Context, msg *events.Message) error {
	var evt domain.GMCEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode gmc rejected event: %w", err)
	}
	return d.directSend(ctx, evt.TraineeID, nil, domain.KindGmcRejected, map[string]interface{}{"gmcNumber": evt.GmcNumber, "status": evt.Status})
}
