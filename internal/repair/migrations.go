// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package repair

import (
	"context"
	"fmt"
	"time"

	"github.com/tis-trainee/notifications/internal/broadcast"
	"github.com/tis-trainee/notifications/internal/history"
	"github.com/tis-trainee/notifications/internal/scheduler"
	"github.com/tis-trainee/notifications/internal/sender"
)

// DeleteObsoleteKind builds a §4.O "delete rows by type" migration for a
// notification kind dropped from the product (e.g. a renamed or retired
// milestone).
func DeleteObsoleteKind(id, kind string, store history.Store) Migration {
	return Migration{
		ID: id,
		Execute: func(ctx context.Context) (int64, error) {
			n, err := store.DeleteByNotificationKind(ctx, kind)
			if err != nil {
				return 0, fmt.Errorf("delete obsolete kind %s: %w", kind, err)
			}
			return n, nil
		},
	}
}

// RewriteKind builds a §4.O "rewrite enum values" migration, e.g.
// LTFT_SUBMITTED_TRAINEE -> LTFT_SUBMITTED, via a bulk conditional
// update.
func RewriteKind(id, from, to string, store history.Store) Migration {
	return Migration{
		ID: id,
		Execute: func(ctx context.Context) (int64, error) {
			n, err := store.RewriteNotificationKind(ctx, from, to)
			if err != nil {
				return 0, fmt.Errorf("rewrite kind %s -> %s: %w", from, to, err)
			}
			return n, nil
		},
	}
}

// BackfillStatus builds a §4.O "backfill status on legacy rows" migration:
// any pre-status-column row (null or empty status) is marked newStatus.
func BackfillStatus(id string, newStatus history.Status, store history.Store) Migration {
	return Migration{
		ID: id,
		Execute: func(ctx context.Context) (int64, error) {
			n, err := store.BackfillNullStatus(ctx, newStatus)
			if err != nil {
				return 0, fmt.Errorf("backfill status to %s: %w", newStatus, err)
			}
			return n, nil
		},
	}
}

// BroadcastAll builds a §4.O "broadcast existing rows" migration: a full
// History scan, publishing each row so downstream consumers can rebuild
// their projection from scratch.
func BroadcastAll(id string, store history.Store, publisher *broadcast.Publisher) Migration {
	return Migration{
		ID: id,
		Execute: func(ctx context.Context) (int64, error) {
			ids, err := store.AllIDs(ctx)
			if err != nil {
				return 0, fmt.Errorf("list all history ids: %w", err)
			}

			var published int64
			for _, id := range ids {
				row, err := store.FindByID(ctx, id)
				if err != nil {
					return published, fmt.Errorf("load history %d: %w", id, err)
				}
				if row == nil {
					continue
				}
				if err := publisher.Publish(ctx, row); err != nil {
					return published, fmt.Errorf("publish history %d: %w", id, err)
				}
				published++
			}
			return published, nil
		},
	}
}

// ResendWindow describes the recipient-domain and time window a resend
// repair targets (§4.O "resend previously-failed emails matching a
// recipient-domain and time window").
type ResendWindow struct {
	Kind       string
	Domain     string
	From       time.Time
	To         time.Time
	Scheduled  bool // true routes through the scheduler reschedule path rather than an immediate resend
	Misfire    int  // misfire window seconds used for the scheduled path; §4.O names "a 1-day misfire window"
}

// ResendFailed builds a §4.O resend migration. For "instant" kinds it
// calls Resend directly; for "scheduled" kinds it reschedules the job
// with a 1-day misfire window and deletes the source row once the
// reschedule succeeds, matching the spec's distinct handling for the two
// kinds of failure.
func ResendFailed(id string, window ResendWindow, store history.Store, snd *sender.Sender, sched *scheduler.Scheduler) Migration {
	return Migration{
		ID: id,
		Execute: func(ctx context.Context) (int64, error) {
			rows, err := store.FindByKindStatusAndContactDomain(ctx, window.Kind, history.StatusFailed, window.Domain, window.From, window.To)
			if err != nil {
				return 0, fmt.Errorf("find failed rows for resend: %w", err)
			}

			var repaired int64
			for _, row := range rows {
				if window.Scheduled {
					misfire := window.Misfire
					if misfire <= 0 {
						misfire = 24 * 60 * 60
					}
					jobID := fmt.Sprintf("%s-resend-%d", row.NotificationKind, row.ID)
					data := map[string]interface{}{
						"notificationType": row.NotificationKind,
						"personId":         row.RecipientTraineeID,
						"variables":        row.Template.Value.Variables,
					}
					if ref := row.ReferenceOf(); ref != nil {
						data["tisId"] = ref.ID
					}
					if err := sched.Schedule(ctx, jobID, data, time.Now(), misfire); err != nil {
						return repaired, fmt.Errorf("reschedule %d: %w", row.ID, err)
					}
					if err := store.DeleteByIDAndRecipient(ctx, row.ID, row.RecipientTraineeID); err != nil {
						return repaired, fmt.Errorf("delete resent source row %d: %w", row.ID, err)
					}
					repaired++
					continue
				}

				if _, err := snd.Resend(ctx, row, row.RecipientContact); err != nil {
					return repaired, fmt.Errorf("resend %d: %w", row.ID, err)
				}
				repaired++
			}
			return repaired, nil
		},
	}
}

// ResetPastDueScheduled builds the §4.O "reset" migration: any SCHEDULED
// email row that missed its own fire window (sentAt before cutoff,
// meaning the programme or milestone it anchored to has already started)
// is marked FAILED, since firing it now would be misleading.
func ResetPastDueScheduled(id string, cutoff time.Time, store history.Store) Migration {
	const detail = "Missed Schedule: Programme already started"
	return Migration{
		ID: id,
		Execute: func(ctx context.Context) (int64, error) {
			n, err := store.ResetPastDueScheduled(ctx, cutoff, detail)
			if err != nil {
				return 0, fmt.Errorf("reset past-due scheduled rows: %w", err)
			}
			return n, nil
		},
	}
}
