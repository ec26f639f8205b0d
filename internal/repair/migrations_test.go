// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package repair

import (
	"context"
	"testing"
	"time"

	"github.com/tis-trainee/notifications/internal/history"
)

// fakeStore is an in-memory history.Store used to exercise migrations
// without a database, in the same spirit as the hand-built fakes the rest
// of this repo uses for store-dependent business logic.
type fakeStore struct {
	rows map[int64]*history.Row
}

func newFakeStore(rows ...*history.Row) *fakeStore {
	f := &fakeStore{rows: make(map[int64]*history.Row)}
	for _, r := range rows {
		f.rows[r.ID] = r
	}
	return f
}

func (f *fakeStore) Save(ctx context.Context, row *history.Row) error {
	f.rows[row.ID] = row
	return nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id int64, status history.Status, detail string) error {
	if row, ok := f.rows[id]; ok {
		row.Status = status
		row.StatusDetail = detail
	}
	return nil
}

func (f *fakeStore) UpdateStatusIfNewer(ctx context.Context, id int64, eventAt time.Time, status history.Status, detail string) (int, error) {
	return 0, nil
}

func (f *fakeStore) FindByID(ctx context.Context, id int64) (*history.Row, error) {
	return f.rows[id], nil
}

func (f *fakeStore) FindByIDAndRecipient(ctx context.Context, id int64, traineeID string) (*history.Row, error) {
	return f.rows[id], nil
}

func (f *fakeStore) FindAllByRecipientOrderedBySentAtDesc(ctx context.Context, traineeID string) ([]*history.Row, error) {
	return nil, nil
}

func (f *fakeStore) FindAllByRecipientAndStatus(ctx context.Context, traineeID string, status history.Status) ([]*history.Row, error) {
	return nil, nil
}

func (f *fakeStore) FindByReference(ctx context.Context, traineeID, refKind, refID string) ([]*history.Row, error) {
	return nil, nil
}

func (f *fakeStore) FindScheduledByReferenceAndKind(ctx context.Context, traineeID, refKind, refID, kind string) ([]*history.Row, error) {
	return nil, nil
}

func (f *fakeStore) FindLatestByReferenceAndKinds(ctx context.Context, traineeID, refKind, refID string, kinds []string) (map[string]*history.Row, error) {
	return nil, nil
}

func (f *fakeStore) DeleteByIDAndRecipient(ctx context.Context, id int64, traineeID string) error {
	delete(f.rows, id)
	return nil
}

func (f *fakeStore) DeleteScheduledByReference(ctx context.Context, traineeID, refKind, refID string) ([]int64, error) {
	return nil, nil
}

func (f *fakeStore) FindIDsByStatusAndSentAtLessThanEqual(ctx context.Context, status history.Status, at time.Time) ([]int64, error) {
	return nil, nil
}

func (f *fakeStore) DeleteByNotificationKind(ctx context.Context, kind string) (int64, error) {
	var n int64
	for id, row := range f.rows {
		if row.NotificationKind == kind {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) RewriteNotificationKind(ctx context.Context, from, to string) (int64, error) {
	var n int64
	for _, row := range f.rows {
		if row.NotificationKind == from {
			row.NotificationKind = to
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) BackfillNullStatus(ctx context.Context, newStatus history.Status) (int64, error) {
	var n int64
	for _, row := range f.rows {
		if row.Status == "" {
			row.Status = newStatus
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) AllIDs(ctx context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(f.rows))
	for id := range f.rows {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) FindByKindStatusAndContactDomain(ctx context.Context, kind string, status history.Status, domain string, from, to time.Time) ([]*history.Row, error) {
	var out []*history.Row
	for _, row := range f.rows {
		if row.NotificationKind == kind && row.Status == status {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeStore) ResetPastDueScheduled(ctx context.Context, cutoff time.Time, detail string) (int64, error) {
	var n int64
	for _, row := range f.rows {
		if row.Status == history.StatusScheduled && row.RecipientChannel == history.ChannelEmail && row.SentAt.Before(cutoff) {
			row.Status = history.StatusFailed
			row.StatusDetail = detail
			n++
		}
	}
	return n, nil
}

func TestDeleteObsoleteKind(t *testing.T) {
	store := newFakeStore(
		&history.Row{ID: 1, NotificationKind: "PROGRAMME_UPDATED_WEEK_2"},
		&history.Row{ID: 2, NotificationKind: "PROGRAMME_UPDATED_WEEK_8"},
	)

	m := DeleteObsoleteKind("delete-week-2", "PROGRAMME_UPDATED_WEEK_2", store)
	n, err := m.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Execute() rowsAffected = %d, want 1", n)
	}
	if _, ok := store.rows[1]; ok {
		t.Error("row 1 should have been deleted")
	}
	if _, ok := store.rows[2]; !ok {
		t.Error("row 2 should be untouched")
	}
}

func TestRewriteKind(t *testing.T) {
	store := newFakeStore(&history.Row{ID: 1, NotificationKind: "LTFT_SUBMITTED_TRAINEE"})

	m := RewriteKind("rewrite-ltft-submitted", "LTFT_SUBMITTED_TRAINEE", "LTFT_SUBMITTED", store)
	n, err := m.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Execute() rowsAffected = %d, want 1", n)
	}
	if got := store.rows[1].NotificationKind; got != "LTFT_SUBMITTED" {
		t.Errorf("NotificationKind = %q, want LTFT_SUBMITTED", got)
	}
}

func TestBackfillStatus(t *testing.T) {
	store := newFakeStore(
		&history.Row{ID: 1, Status: ""},
		&history.Row{ID: 2, Status: history.StatusRead},
	)

	m := BackfillStatus("backfill-sent", history.StatusSent, store)
	n, err := m.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Execute() rowsAffected = %d, want 1", n)
	}
	if store.rows[1].Status != history.StatusSent {
		t.Errorf("row 1 status = %q, want SENT", store.rows[1].Status)
	}
	if store.rows[2].Status != history.StatusRead {
		t.Error("row 2 should be untouched")
	}
}

func TestResetPastDueScheduled(t *testing.T) {
	cutoff := time.Date(2025, 4, 30, 23, 59, 59, 0, time.UTC)
	store := newFakeStore(
		&history.Row{ID: 1, Status: history.StatusScheduled, RecipientChannel: history.ChannelEmail, SentAt: time.Date(2025, 4, 29, 23, 59, 59, 0, time.UTC)},
		&history.Row{ID: 2, Status: history.StatusScheduled, RecipientChannel: history.ChannelEmail, SentAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
	)

	m := ResetPastDueScheduled("reset-past-due", cutoff, store)
	n, err := m.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Execute() rowsAffected = %d, want 1", n)
	}
	if store.rows[1].Status != history.StatusFailed {
		t.Errorf("row 1 status = %q, want FAILED", store.rows[1].Status)
	}
	if store.rows[1].StatusDetail != "Missed Schedule: Programme already started" {
		t.Errorf("row 1 detail = %q", store.rows[1].StatusDetail)
	}
	if store.rows[2].Status != history.StatusScheduled {
		t.Error("row 2 should be untouched (after cutoff)")
	}
}

func TestMigrationExecuteReportsRowsAffected(t *testing.T) {
	store := newFakeStore(
		&history.Row{ID: 1, NotificationKind: "DAY_ONE"},
		&history.Row{ID: 2, NotificationKind: "E_PORTFOLIO"},
	)

	var published []int64
	m := Migration{
		ID: "broadcast-all",
		Execute: func(ctx context.Context) (int64, error) {
			ids, err := store.AllIDs(ctx)
			if err != nil {
				return 0, err
			}
			for _, id := range ids {
				published = append(published, id)
			}
			return int64(len(published)), nil
		},
	}

	n, err := m.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Execute() rowsAffected = %d, want 2", n)
	}
	if len(published) != 2 {
		t.Errorf("published %d rows, want 2", len(published))
	}
}
