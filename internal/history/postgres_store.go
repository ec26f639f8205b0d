// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PostgresStore is the GORM-backed implementation of Store, adapted from
// dictamesh/pkg/database.Database's use of GORM for mapped queries.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore wraps an already-connected *gorm.DB.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save is idempotent on id: re-saving with the same id overwrites
// deterministically via GORM's upsert-by-primary-key Save semantics.
func (s *PostgresStore) Save(ctx context.Context, row *Row) error {
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("save history row: %w", err)
	}
	return nil
}

// UpdateStatus performs an unconditional status update, used by callers
// that already hold the authoritative new state (e.g. user-driven
// read/archive actions).
func (s *PostgresStore) UpdateStatus(ctx context.Context, id int64, status Status, detail string) error {
	res := s.db.WithContext(ctx).Model(&Row{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "status_detail": detail})
	if res.Error != nil {
		return fmt.Errorf("update status: %w", res.Error)
	}
	return nil
}

// UpdateStatusIfNewer is the conditional update described in §4.A: it
// matches `id ∧ (latestStatusEventAt = null ∨ latestStatusEventAt <= eventAt)`
// and returns the affected row count so callers know whether to
// re-broadcast.
func (s *PostgresStore) UpdateStatusIfNewer(ctx context.Context, id int64, eventAt time.Time, status Status, detail string) (int, error) {
	res := s.db.WithContext(ctx).Model(&Row{}).
		Where("id = ? AND (latest_status_event_at IS NULL OR latest_status_event_at <= ?)", id, eventAt).
		Updates(map[string]interface{}{
			"status":                 status,
			"status_detail":          detail,
			"latest_status_event_at": eventAt,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("update status if newer: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// FindByID looks up a single row.
func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*Row, error) {
	var row Row
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find by id: %w", err)
	}
	return &row, nil
}

// FindByIDAndRecipient enforces row ownership by (id, traineeId) per §3.4.
func (s *PostgresStore) FindByIDAndRecipient(ctx context.Context, id int64, traineeID string) (*Row, error) {
	var row Row
	err := s.db.WithContext(ctx).
		First(&row, "id = ? AND recipient_trainee_id = ?", id, traineeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find by id and recipient: %w", err)
	}
	return &row, nil
}

// FindAllByRecipientOrderedBySentAtDesc lists a trainee's full history.
func (s *PostgresStore) FindAllByRecipientOrderedBySentAtDesc(ctx context.Context, traineeID string) ([]*Row, error) {
	var rows []*Row
	err := s.db.WithContext(ctx).
		Where("recipient_trainee_id = ?", traineeID).
		Order("sent_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find all by recipient: %w", err)
	}
	return rows, nil
}

// FindAllByRecipientAndStatus filters a trainee's history by status.
func (s *PostgresStore) FindAllByRecipientAndStatus(ctx context.Context, traineeID string, status Status) ([]*Row, error) {
	var rows []*Row
	err := s.db.WithContext(ctx).
		Where("recipient_trainee_id = ? AND status = ?", traineeID, status).
		Order("sent_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find all by recipient and status: %w", err)
	}
	return rows, nil
}

// FindByReference satisfies §3.2 invariant 5: a row whose reference is
// non-null is looked up by (trainee, ref.kind, ref.id) in
// O(recipient-history-size) via the recipient index plus a JSONB filter.
func (s *PostgresStore) FindByReference(ctx context.Context, traineeID, refKind, refID string) ([]*Row, error) {
	var rows []*Row
	err := s.db.WithContext(ctx).
		Where("recipient_trainee_id = ? AND reference->>'kind' = ? AND reference->>'id' = ?", traineeID, refKind, refID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find by reference: %w", err)
	}
	return rows, nil
}

// FindScheduledByReferenceAndKind finds SCHEDULED rows for a specific
// (trainee, ref, kind) tuple — used by the sender's replace-in-place and
// garbage-collection logic (§4.E).
func (s *PostgresStore) FindScheduledByReferenceAndKind(ctx context.Context, traineeID, refKind, refID, kind string) ([]*Row, error) {
	var rows []*Row
	err := s.db.WithContext(ctx).
		Where("recipient_trainee_id = ? AND reference->>'kind' = ? AND reference->>'id' = ? AND notification_kind = ? AND status = ?",
			traineeID, refKind, refID, kind, StatusScheduled).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find scheduled by reference and kind: %w", err)
	}
	return rows, nil
}

// FindLatestByReferenceAndKinds builds the "already-sent" map the
// programme-membership planner (§4.H step 4) needs: the most recent row
// per notification kind for a given reference.
func (s *PostgresStore) FindLatestByReferenceAndKinds(ctx context.Context, traineeID, refKind, refID string, kinds []string) (map[string]*Row, error) {
	rows, err := s.FindByReference(ctx, traineeID, refKind, refID)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}

	latest := make(map[string]*Row)
	for _, row := range rows {
		if !wanted[row.NotificationKind] {
			continue
		}
		existing, ok := latest[row.NotificationKind]
		if !ok || row.SentAt.After(existing.SentAt) {
			latest[row.NotificationKind] = row
		}
	}

	return latest, nil
}

// DeleteByIDAndRecipient removes a single row the caller owns.
func (s *PostgresStore) DeleteByIDAndRecipient(ctx context.Context, id int64, traineeID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND recipient_trainee_id = ?", id, traineeID).
		Delete(&Row{})
	if res.Error != nil {
		return fmt.Errorf("delete by id and recipient: %w", res.Error)
	}
	return nil
}

// DeleteScheduledByReference garbage-collects every SCHEDULED row for a
// reference (§3.2 invariant 4, §4.H step 2 / §4.I). It returns the
// deleted ids so the caller can broadcast deletes.
func (s *PostgresStore) DeleteScheduledByReference(ctx context.Context, traineeID, refKind, refID string) ([]int64, error) {
	var rows []*Row
	err := s.db.WithContext(ctx).
		Where("recipient_trainee_id = ? AND reference->>'kind' = ? AND reference->>'id' = ? AND status = ?",
			traineeID, refKind, refID, StatusScheduled).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find scheduled for delete: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	if err := s.db.WithContext(ctx).Delete(&Row{}, "id IN ?", ids).Error; err != nil {
		return nil, fmt.Errorf("delete scheduled by reference: %w", err)
	}

	return ids, nil
}

// FindIDsByStatusAndSentAtLessThanEqual supports repair jobs that scan
// stale rows (§4.O).
func (s *PostgresStore) FindIDsByStatusAndSentAtLessThanEqual(ctx context.Context, status Status, at time.Time) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&Row{}).
		Where("status = ? AND sent_at <= ?", status, at).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("find ids by status and sent_at: %w", err)
	}
	return ids, nil
}

// DeleteByNotificationKind removes every row of an obsolete kind (§4.O
// "delete rows by type").
func (s *PostgresStore) DeleteByNotificationKind(ctx context.Context, kind string) (int64, error) {
	res := s.db.WithContext(ctx).Where("notification_kind = ?", kind).Delete(&Row{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete by notification kind %s: %w", kind, res.Error)
	}
	return res.RowsAffected, nil
}

// RewriteNotificationKind bulk-renames an enum value (§4.O "rewrite enum
// values"), e.g. LTFT_SUBMITTED_TRAINEE -> LTFT_SUBMITTED.
func (s *PostgresStore) RewriteNotificationKind(ctx context.Context, from, to string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Row{}).
		Where("notification_kind = ?", from).
		Update("notification_kind", to)
	if res.Error != nil {
		return 0, fmt.Errorf("rewrite notification kind %s -> %s: %w", from, to, res.Error)
	}
	return res.RowsAffected, nil
}

// BackfillNullStatus sets a status on every legacy row that predates the
// status column (§4.O "backfill status on legacy rows").
func (s *PostgresStore) BackfillNullStatus(ctx context.Context, newStatus Status) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Row{}).
		Where("status IS NULL OR status = ''").
		Update("status", newStatus)
	if res.Error != nil {
		return 0, fmt.Errorf("backfill null status: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// AllIDs supports the §4.O "broadcast existing rows" full-scan migration.
func (s *PostgresStore) AllIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&Row{}).Order("id").Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list all ids: %w", err)
	}
	return ids, nil
}

// FindByKindStatusAndContactDomain supports the §4.O "resend previously
// failed emails matching a recipient-domain and time window" migration.
func (s *PostgresStore) FindByKindStatusAndContactDomain(ctx context.Context, kind string, status Status, domain string, from, to time.Time) ([]*Row, error) {
	var rows []*Row
	err := s.db.WithContext(ctx).
		Where("notification_kind = ? AND status = ? AND recipient_contact LIKE ? AND sent_at BETWEEN ? AND ?",
			kind, status, "%@"+domain, from, to).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find by kind/status/domain: %w", err)
	}
	return rows, nil
}

// ResetPastDueScheduled implements §4.O "reset scheduled emails that are
// past due without firing": every EMAIL row still SCHEDULED whose sentAt
// has already passed the cutoff becomes FAILED with the given detail.
func (s *PostgresStore) ResetPastDueScheduled(ctx context.Context, cutoff time.Time, detail string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Row{}).
		Where("status = ? AND recipient_channel = ? AND sent_at < ?", StatusScheduled, ChannelEmail, cutoff).
		Updates(map[string]interface{}{"status": StatusFailed, "status_detail": detail})
	if res.Error != nil {
		return 0, fmt.Errorf("reset past-due scheduled: %w", res.Error)
	}
	return res.RowsAffected, nil
}
