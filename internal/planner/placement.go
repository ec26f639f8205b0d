// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tis-trainee/notifications/internal/domain"
	"github.com/tis-trainee/notifications/internal/history"
	"github.com/tis-trainee/notifications/internal/observability"
	"github.com/tis-trainee/notifications/internal/scheduler"
)

// placementDaysBefore is the single milestone §4.I schedules.
const placementDaysBefore = 84

var placementAllowedTypes = map[string]bool{
	"in post":                  true,
	"in post - acting up":      true,
	"in post - extension":      true,
}

// PlacementPlanner implements §4.I: same shape as H, one milestone.
type PlacementPlanner struct {
	store     history.Store
	scheduler *scheduler.Scheduler
	logger    *observability.Logger
	timezone  *time.Location
}

// NewPlacementPlanner builds a PlacementPlanner.
func NewPlacementPlanner(store history.Store, sched *scheduler.Scheduler, logger *observability.Logger, timezone *time.Location) *PlacementPlanner {
	return &PlacementPlanner{store: store, scheduler: sched, logger: logger, timezone: timezone}
}

// isPlacementExcluded implements §4.I's exclusion rule.
func isPlacementExcluded(placement domain.Placement) bool {
	return !placementAllowedTypes[strings.ToLower(placement.PlacementType)]
}

// Delete implements the "placement-deleted" path: every Job and every
// SCHEDULED History row for this placement is removed; already-sent rows
// are retained.
func (p *PlacementPlanner) Delete(ctx context.Context, placement domain.Placement) error {
	return p.prune(ctx, placement)
}

func (p *PlacementPlanner) prune(ctx context.Context, placement domain.Placement) error {
	ref := &history.Reference{Kind: string(domain.ReferencePlacement), ID: placement.TisID}
	jobID := programmeJobID(domain.KindPlacementUpdatedWeek12, placement.TisID)

	if _, err := p.store.DeleteScheduledByReference(ctx, placement.PersonID, ref.Kind, ref.ID); err != nil {
		return fmt.Errorf("prune scheduled rows for %s: %w", placement.TisID, err)
	}
	if err := p.scheduler.Remove(ctx, jobID); err != nil {
		return fmt.Errorf("remove scheduled job for %s: %w", placement.TisID, err)
	}
	return nil
}

// Plan implements §4.I end to end.
func (p *PlacementPlanner) Plan(ctx context.Context, placement domain.Placement) error {
	ref := &history.Reference{Kind: string(domain.ReferencePlacement), ID: placement.TisID}

	if err := p.prune(ctx, placement); err != nil {
		return err
	}

	if isPlacementExcluded(placement) {
		p.logger.InfoContext(ctx, "placement excluded", zap.String("tisId", placement.TisID), zap.String("placementType", placement.PlacementType))
		return nil
	}

	sent, err := p.store.FindLatestByReferenceAndKinds(ctx, placement.PersonID, ref.Kind, ref.ID, []string{domain.KindPlacementUpdatedWeek12})
	if err != nil {
		return fmt.Errorf("scan already-sent for %s: %w", placement.TisID, err)
	}
	if sent[domain.KindPlacementUpdatedWeek12] != nil {
		return nil
	}

	jobID := programmeJobID(domain.KindPlacementUpdatedWeek12, placement.TisID)
	now := time.Now()
	fireAt := scheduler.GetScheduleDate(now, placement.StartDate, placementDaysBefore, p.timezone)
	data := map[string]interface{}{
		"notificationType": domain.KindPlacementUpdatedWeek12,
		"personId":         placement.PersonID,
		"owner":            placement.Owner,
		"specialty":        placement.Specialty,
		"startDate":        placement.StartDate.Format(time.RFC3339),
		"tisId":            placement.TisID,
	}
	return p.scheduler.Schedule(ctx, jobID, data, fireAt, defaultMisfireWindowSeconds)
}
