// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package planner implements §4.H, §4.I and §4.J: the per-entity
// exclusion, scheduling, and dedup logic that turns an inbound snapshot
// into zero or more scheduled Jobs and zero or more in-app History rows.
package planner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tis-trainee/notifications/internal/domain"
	"github.com/tis-trainee/notifications/internal/history"
	"github.com/tis-trainee/notifications/internal/observability"
	"github.com/tis-trainee/notifications/internal/scheduler"
	"github.com/tis-trainee/notifications/internal/sender"
)

// defaultMisfireWindowSeconds bounds how late a scheduled trigger may
// fire before the scheduler discards it (§4.F); a day is generous enough
// to absorb a deploy window without risking a stale send.
const defaultMisfireWindowSeconds = 24 * 60 * 60

// allDedupKinds is the closed set scanned for "already sent" across both
// channels (§4.H step 4).
var allDedupKinds = func() []string {
	kinds := make([]string, 0, len(domain.ProgrammeUpdateKinds)+len(domain.InAppKinds))
	for _, m := range domain.ProgrammeUpdateKinds {
		kinds = append(kinds, m.Kind)
	}
	kinds = append(kinds, domain.InAppKinds...)
	return kinds
}()

// CriteriaFunc gates whether a programme membership's notifications are
// actually sent (§4.H step 7); it is per-deployment policy, not part of
// the core decision engine.
type CriteriaFunc func(pm domain.ProgrammeMembership) bool

// AlwaysMeetsCriteria is the default CriteriaFunc.
func AlwaysMeetsCriteria(domain.ProgrammeMembership) bool { return true }

// ProgrammePlanner implements §4.H.
type ProgrammePlanner struct {
	store         history.Store
	scheduler     *scheduler.Scheduler
	sender        *sender.Sender
	logger        *observability.Logger
	timezone      *time.Location
	meetsCriteria CriteriaFunc
}

// NewProgrammePlanner builds a ProgrammePlanner. meetsCriteria may be nil,
// in which case every membership is sent.
func NewProgrammePlanner(store history.Store, sched *scheduler.Scheduler, snd *sender.Sender, logger *observability.Logger, timezone *time.Location, meetsCriteria CriteriaFunc) *ProgrammePlanner {
	if meetsCriteria == nil {
		meetsCriteria = AlwaysMeetsCriteria
	}
	return &ProgrammePlanner{store: store, scheduler: sched, sender: snd, logger: logger, timezone: timezone, meetsCriteria: meetsCriteria}
}

// isProgrammeExcluded implements §4.H step 1.
func isProgrammeExcluded(pm domain.ProgrammeMembership) bool {
	if pm.Curricula == nil {
		return true
	}
	hasMedical := false
	for _, c := range pm.Curricula {
		if c.Specialty == "PUBLIC HEALTH MEDICINE" || c.Specialty == "FOUNDATION" {
			return true
		}
		if c.SubType == "MEDICAL_CURRICULUM" || c.SubType == "MEDICAL_SPR" {
			hasMedical = true
		}
	}
	return !hasMedical
}

// Plan implements §4.H end to end.
func (p *ProgrammePlanner) Plan(ctx context.Context, pm domain.ProgrammeMembership) error {
	ref := &history.Reference{Kind: string(domain.ReferenceProgrammeMembership), ID: pm.TisID}

	if err := p.pruneExisting(ctx, pm, ref); err != nil {
		return fmt.Errorf("prune existing schedule for %s: %w", pm.TisID, err)
	}

	if isProgrammeExcluded(pm) {
		p.logger.InfoContext(ctx, "programme membership excluded", zap.String("tisId", pm.TisID))
		return nil
	}

	sentKinds, err := p.store.FindLatestByReferenceAndKinds(ctx, pm.PersonID, ref.Kind, ref.ID, allDedupKinds)
	if err != nil {
		return fmt.Errorf("scan already-sent kinds for %s: %w", pm.TisID, err)
	}

	suppress := !p.meetsCriteria(pm)

	if err := p.planDirect(ctx, pm, sentKinds, suppress); err != nil {
		return fmt.Errorf("plan email milestones for %s: %w", pm.TisID, err)
	}
	if err := p.planInApp(ctx, pm, ref, sentKinds, suppress); err != nil {
		return fmt.Errorf("plan in-app rows for %s: %w", pm.TisID, err)
	}
	return nil
}

// Delete implements the "programme-membership-deleted" path (§8 scenario
// 2): every Job for this PM is removed and every SCHEDULED History row
// for it is deleted; already-sent rows are retained untouched.
func (p *ProgrammePlanner) Delete(ctx context.Context, pm domain.ProgrammeMembership) error {
	ref := &history.Reference{Kind: string(domain.ReferenceProgrammeMembership), ID: pm.TisID}
	if err := p.pruneExisting(ctx, pm, ref); err != nil {
		return fmt.Errorf("prune deleted programme membership %s: %w", pm.TisID, err)
	}
	return nil
}

// pruneExisting implements §4.H step 2: delete SCHEDULED rows and remove
// any still-pending scheduler jobs for every email milestone — a changed
// snapshot always invalidates the previous plan.
func (p *ProgrammePlanner) pruneExisting(ctx context.Context, pm domain.ProgrammeMembership, ref *history.Reference) error {
	if _, err := p.store.DeleteScheduledByReference(ctx, pm.PersonID, ref.Kind, ref.ID); err != nil {
		return err
	}
	for _, milestone := range domain.ProgrammeUpdateKinds {
		jobID := programmeJobID(milestone.Kind, pm.TisID)
		if err := p.scheduler.Remove(ctx, jobID); err != nil {
			return err
		}
	}
	return nil
}

// planDirect implements §4.H step 5: schedule every un-sent milestone
// whose anchor is still in the future, plus at most the single newest
// un-sent milestone whose anchor has already passed — earlier missed
// milestones are dominated and dropped (see DESIGN.md Open Questions).
func (p *ProgrammePlanner) planDirect(ctx context.Context, pm domain.ProgrammeMembership, sentKinds map[string]*history.Row, suppress bool) error {
	now := time.Now()

	anchors := make([]time.Time, len(domain.ProgrammeUpdateKinds))
	unsent := make([]bool, len(domain.ProgrammeUpdateKinds))
	newestPastUnsent := -1

	for i, milestone := range domain.ProgrammeUpdateKinds {
		anchors[i] = pm.StartDate.AddDate(0, 0, -milestone.DaysBefore)
		if sentKinds[milestone.Kind] != nil {
			continue
		}
		unsent[i] = true
		if !anchors[i].After(now) {
			newestPastUnsent = i
		}
	}

	for i, milestone := range domain.ProgrammeUpdateKinds {
		if !unsent[i] {
			continue
		}
		isPast := !anchors[i].After(now)
		if isPast && i != newestPastUnsent {
			continue
		}

		fireAt := scheduler.GetScheduleDate(now, pm.StartDate, milestone.DaysBefore, p.timezone)
		jobID := programmeJobID(milestone.Kind, pm.TisID)
		data := map[string]interface{}{
			"notificationType": milestone.Kind,
			"personId":         pm.PersonID,
			"programmeName":    pm.ProgrammeName,
			"startDate":        pm.StartDate.Format(time.RFC3339),
			"tisId":            pm.TisID,
			"suppressSend":     suppress,
		}
		if err := p.scheduler.Schedule(ctx, jobID, data, fireAt, defaultMisfireWindowSeconds); err != nil {
			return err
		}
	}
	return nil
}

// planInApp implements §4.H step 6.
func (p *ProgrammePlanner) planInApp(ctx context.Context, pm domain.ProgrammeMembership, ref *history.Reference, sentKinds map[string]*history.Row, suppress bool) error {
	for _, kind := range domain.InAppKinds {
		if sentKinds[kind] != nil {
			continue
		}

		sentAt := time.Now()
		if kind == domain.KindDayOne {
			sentAt = time.Date(pm.StartDate.Year(), pm.StartDate.Month(), pm.StartDate.Day(), 0, 0, 0, 0, p.timezone)
		}

		variables := map[string]interface{}{
			"programmeName": pm.ProgrammeName,
		}
		if _, err := p.sender.CreateNotifications(ctx, pm.PersonID, ref, kind, variables, suppress, sentAt); err != nil {
			return err
		}
	}
	return nil
}

func programmeJobID(kind, tisID string) string {
	return fmt.Sprintf("%s-%s", kind, tisID)
}
