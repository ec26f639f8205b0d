// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package repair implements §4.O: one-shot, ordered data-repair jobs that
// run once per deploy against the History store. Each migration is
// registered with an id; the Runner records completed ids in the
// migrations_applied ledger (internal/storage/migrations/sql) so restarts
// never re-run a migration that already succeeded.
package repair

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tis-trainee/notifications/internal/observability"
)

// Migration is a named, ordered, single-execution unit (§9 "model as a
// simple ordered registry of {id, execute(), rollback()} entries").
// Rollback is explicit no-op for every migration in this registry: data
// repairs are forward-only, matching §4.O "each... is a named, ordered,
// single-execution unit with an explicit no-op rollback".
type Migration struct {
	ID      string
	Execute func(ctx context.Context) (rowsAffected int64, err error)
}

// Rollback is intentionally a no-op for every migration below; repairs
// are forward-only and re-running one safely is never needed once it has
// applied, so nothing restores prior state.
func (m Migration) Rollback(context.Context) error { return nil }

// Runner applies a fixed, ordered list of migrations, skipping any id
// already present in the ledger.
type Runner struct {
	db      *gorm.DB
	logger  *observability.Logger
	entries []Migration
}

// NewRunner builds a Runner over db's migrations_applied ledger table.
func NewRunner(db *gorm.DB, logger *observability.Logger) *Runner {
	return &Runner{db: db, logger: logger}
}

// Register appends a migration to the end of the run order. Order
// matters: migrations are applied in registration order on every call to
// RunAll.
func (r *Runner) Register(m Migration) {
	r.entries = append(r.entries, m)
}

type ledgerRow struct {
	ID           string    `gorm:"column:id;primaryKey"`
	AppliedAt    time.Time `gorm:"column:applied_at"`
	RowsAffected int64     `gorm:"column:rows_affected"`
}

func (ledgerRow) TableName() string { return "migrations_applied" }

// RunAll applies every registered migration not already in the ledger.
// A migration whose Execute returns an error is logged and skipped —
// §4.O "each migration wraps its bulk step in try/catch... failures must
// not crash startup" — so one broken repair never blocks the others or
// the service from starting.
func (r *Runner) RunAll(ctx context.Context) {
	for _, m := range r.entries {
		var existing ledgerRow
		err := r.db.WithContext(ctx).First(&existing, "id = ?", m.ID).Error
		if err == nil {
			r.logger.InfoContext(ctx, "migration already applied, skipping", zap.String("migration", m.ID))
			continue
		}

		rowsAffected, runErr := m.Execute(ctx)
		if runErr != nil {
			r.logger.ErrorContext(ctx, "migration failed, leaving unapplied", zap.String("migration", m.ID), zap.Error(runErr))
			continue
		}

		ledger := ledgerRow{ID: m.ID, AppliedAt: time.Now(), RowsAffected: rowsAffected}
		if saveErr := r.db.WithContext(ctx).Save(&ledger).Error; saveErr != nil {
			r.logger.ErrorContext(ctx, "failed to record migration in ledger", zap.String("migration", m.ID), zap.Error(saveErr))
			continue
		}

		r.logger.InfoContext(ctx, "migration applied", zap.String("migration", m.ID), zap.Int64("rowsAffected", rowsAffected))
	}
}

// ErrMigrationFailed wraps an individual migration's failure for callers
// that want to distinguish a repair error from an unrelated one.
func ErrMigrationFailed(id string, err error) error {
	return fmt.Errorf("migration %s: %w", id, err)
}
