// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package executor implements §4.G: the callback a fired scheduler.Job
// runs. It is deliberately thin — all decision logic lives in the
// planners (H/I/J); this package only resolves a recipient, merges in
// recipient-derived variables, and dispatches a send.
package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tis-trainee/notifications/internal/domain"
	"github.com/tis-trainee/notifications/internal/history"
	"github.com/tis-trainee/notifications/internal/observability"
	"github.com/tis-trainee/notifications/internal/recipient"
	"github.com/tis-trainee/notifications/internal/scheduler"
	"github.com/tis-trainee/notifications/internal/sender"
)

// InPilotFunc is the §4.G "justLogEmail" policy hook: whether (owner,
// specialty, startDate) is enrolled in the placement-week-12 pilot.
// Currently a stub returning false everywhere, pending the real rollout
// list (see DESIGN.md Open Questions).
type InPilotFunc func(owner, specialty string, startDate time.Time) bool

// NeverInPilot is the default InPilotFunc (§4.G: "a policy hook,
// currently returning false").
func NeverInPilot(string, string, time.Time) bool { return false }

// Executor wires the recipient resolver and message sender behind the
// scheduler.Executor signature.
type Executor struct {
	recipients *recipient.Resolver
	sender     *sender.Sender
	logger     *observability.Logger
	tracer     *observability.Tracer
	inPilot    InPilotFunc
}

// New builds an Executor. inPilot may be nil, in which case NeverInPilot
// is used.
func New(recipients *recipient.Resolver, sender *sender.Sender, logger *observability.Logger, tracer *observability.Tracer, inPilot InPilotFunc) *Executor {
	if inPilot == nil {
		inPilot = NeverInPilot
	}
	return &Executor{recipients: recipients, sender: sender, logger: logger, tracer: tracer, inPilot: inPilot}
}

// Fire satisfies scheduler.Executor.
func (e *Executor) Fire(ctx context.Context, job scheduler.Job) error {
	ctx, span := e.tracer.StartSpan(ctx, "executor.fire")
	defer span.End()

	data := job.Data
	kind, _ := data["notificationType"].(string)

	var (
		traineeID string
		ref       *history.Reference
		variables = map[string]interface{}{}
	)

	if v, ok := data["variables"].(map[string]interface{}); ok {
		for k, val := range v {
			variables[k] = val
		}
	}

	switch kind {
	case domain.KindPlacementUpdatedWeek12:
		traineeID, _ = data["personId"].(string)
		owner, _ := data["owner"].(string)
		specialty, _ := data["specialty"].(string)
		startDate := parseTime(data["startDate"])
		tisID, _ := data["tisId"].(string)

		ref = &history.Reference{Kind: string(domain.ReferencePlacement), ID: tisID}
		putIfAbsent(variables, "justLogEmail", !e.inPilot(owner, specialty, startDate))

	default:
		// Every other programme-update kind shares the same field shape.
		traineeID, _ = data["personId"].(string)
		programmeName, _ := data["programmeName"].(string)
		tisID, _ := data["tisId"].(string)

		ref = &history.Reference{Kind: string(domain.ReferenceProgrammeMembership), ID: tisID}
		putIfAbsent(variables, "programmeName", programmeName)
	}

	if traineeID == "" {
		e.logger.WarnContext(ctx, "job fired with no personId", zap.String("jobId", job.ID), zap.String("notificationType", kind))
		return nil
	}

	rec, err := e.recipients.Resolve(ctx, traineeID)
	if err != nil {
		if err == recipient.ErrNoAccount {
			e.logger.InfoContext(ctx, "no-contact", zap.String("jobId", job.ID), zap.String("traineeId", traineeID))
			return nil
		}
		return fmt.Errorf("resolve recipient for %s: %w", traineeID, err)
	}

	putIfAbsent(variables, "givenName", rec.GivenName)
	putIfAbsent(variables, "familyName", rec.FamilyName)
	putIfAbsent(variables, "title", rec.Title)
	putIfAbsent(variables, "gmcNumber", rec.GMCNumber)

	suppressSend, _ := data["suppressSend"].(bool)

	row, err := e.sender.SendEmail(ctx, sender.SendEmailInput{
		TraineeID:    traineeID,
		Reference:    ref,
		Kind:         kind,
		Recipient:    rec.Email,
		Variables:    variables,
		SentAt:       time.Now(),
		SuppressSend: suppressSend,
	})
	if err != nil {
		return fmt.Errorf("send %s to %s: %w", kind, traineeID, err)
	}

	e.logger.InfoContext(ctx, "sent", zap.String("jobId", job.ID), zap.Int64("historyId", row.ID), zap.Time("sentAt", row.SentAt))
	return nil
}

// putIfAbsent sets variables[key] = value only if key is not already
// present (§4.G "non-overwriting putIfAbsent": planner-supplied values
// always win over recipient-derived defaults).
func putIfAbsent(variables map[string]interface{}, key string, value interface{}) {
	if _, exists := variables[key]; exists {
		return
	}
	variables[key] = value
}

func parseTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}
		}
		return parsed
	default:
		return time.Time{}
	}
}
