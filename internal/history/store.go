// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package history

import (
	"context"
	"time"
)

// Store is the §4.A contract. Implementations must be side-effect free
// with respect to broadcasting: callers (internal/broadcast) are
// responsible for publishing after a successful mutation.
type Store interface {
	Save(ctx context.Context, row *Row) error
	UpdateStatus(ctx context.Context, id int64, status Status, detail string) error
	UpdateStatusIfNewer(ctx context.Context, id int64, eventAt time.Time, status Status, detail string) (int, error)
	FindByID(ctx context.Context, id int64) (*Row, error)
	FindByIDAndRecipient(ctx context.Context, id int64, traineeID string) (*Row, error)
	FindAllByRecipientOrderedBySentAtDesc(ctx context.Context, traineeID string) ([]*Row, error)
	FindAllByRecipientAndStatus(ctx context.Context, traineeID string, status Status) ([]*Row, error)
	FindByReference(ctx context.Context, traineeID string, refKind, refID string) ([]*Row, error)
	FindScheduledByReferenceAndKind(ctx context.Context, traineeID, refKind, refID, kind string) ([]*Row, error)
	FindLatestByReferenceAndKinds(ctx context.Context, traineeID, refKind, refID string, kinds []string) (map[string]*Row, error)
	DeleteByIDAndRecipient(ctx context.Context, id int64, traineeID string) error
	DeleteScheduledByReference(ctx context.Context, traineeID, refKind, refID string) ([]int64, error)
	FindIDsByStatusAndSentAtLessThanEqual(ctx context.Context, status Status, at time.Time) ([]int64, error)

	// The operations below back the one-shot repair jobs in
	// internal/repair (§4.O); they are bulk variants deliberately kept
	// off the hot path's methods above.
	DeleteByNotificationKind(ctx context.Context, kind string) (int64, error)
	RewriteNotificationKind(ctx context.Context, from, to string) (int64, error)
	BackfillNullStatus(ctx context.Context, newStatus Status) (int64, error)
	AllIDs(ctx context.Context) ([]int64, error)
	FindByKindStatusAndContactDomain(ctx context.Context, kind string, status Status, domain string, from, to time.Time) ([]*Row, error)
	ResetPastDueScheduled(ctx context.Context, cutoff time.Time, detail string) (int64, error)
}
