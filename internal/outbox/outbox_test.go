// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tis-trainee/notifications/internal/history"
	"github.com/tis-trainee/notifications/internal/observability"
)

// fakeStore is a minimal in-memory history.Store; SendToOutbox only ever
// calls FindByID, so every other method is an unreachable stub, in the
// same spirit as the hand-built fakes elsewhere in this repo.
type fakeStore struct {
	rows map[int64]*history.Row
}

func (f *fakeStore) FindByID(_ context.Context, id int64) (*history.Row, error) {
	return f.rows[id], nil
}

func (f *fakeStore) Save(context.Context, *history.Row) error { panic("not used by outbox") }
func (f *fakeStore) UpdateStatus(context.Context, int64, history.Status, string) error {
	panic("not used by outbox")
}
func (f *fakeStore) UpdateStatusIfNewer(context.Context, int64, time.Time, history.Status, string) (int, error) {
	panic("not used by outbox")
}
func (f *fakeStore) FindByIDAndRecipient(context.Context, int64, string) (*history.Row, error) {
	panic("not used by outbox")
}
func (f *fakeStore) FindAllByRecipientOrderedBySentAtDesc(context.Context, string) ([]*history.Row, error) {
	panic("not used by outbox")
}
func (f *fakeStore) FindAllByRecipientAndStatus(context.Context, string, history.Status) ([]*history.Row, error) {
	panic("not used by outbox")
}
func (f *fakeStore) FindByReference(context.Context, string, string, string) ([]*history.Row, error) {
	panic("not used by outbox")
}
func (f *fakeStore) FindScheduledByReferenceAndKind(context.Context, string, string, string, string) ([]*history.Row, error) {
	panic("not used by outbox")
}
func (f *fakeStore) FindLatestByReferenceAndKinds(context.Context, string, string, string, []string) (map[string]*history.Row, error) {
	panic("not used by outbox")
}
func (f *fakeStore) DeleteByIDAndRecipient(context.Context, int64, string) error {
	panic("not used by outbox")
}
func (f *fakeStore) DeleteScheduledByReference(context.Context, string, string, string) ([]int64, error) {
	panic("not used by outbox")
}
func (f *fakeStore) FindIDsByStatusAndSentAtLessThanEqual(context.Context, history.Status, time.Time) ([]int64, error) {
	panic("not used by outbox")
}
func (f *fakeStore) DeleteByNotificationKind(context.Context, string) (int64, error) {
	panic("not used by outbox")
}
func (f *fakeStore) RewriteNotificationKind(context.Context, string, string) (int64, error) {
	panic("not used by outbox")
}
func (f *fakeStore) BackfillNullStatus(context.Context, history.Status) (int64, error) {
	panic("not used by outbox")
}
func (f *fakeStore) AllIDs(context.Context) ([]int64, error) { panic("not used by outbox") }
func (f *fakeStore) FindByKindStatusAndContactDomain(context.Context, string, history.Status, string, time.Time, time.Time) ([]*history.Row, error) {
	panic("not used by outbox")
}
func (f *fakeStore) ResetPastDueScheduled(context.Context, time.Time, string) (int64, error) {
	panic("not used by outbox")
}

// fakePublisher records every id it was asked to publish and can be told
// to fail a specific id exactly once.
type fakePublisher struct {
	published []int64
	failOnce  map[int64]bool
}

func (f *fakePublisher) Publish(_ context.Context, row *history.Row) error {
	if f.failOnce[row.ID] {
		delete(f.failOnce, row.ID)
		return errors.New("simulated publish failure")
	}
	f.published = append(f.published, row.ID)
	return nil
}

func newTestOutbox(t *testing.T, store *fakeStore, pub *fakePublisher) *Outbox {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := &observability.Logger{Logger: zap.NewNop()}
	return New(store, pub, client, logger)
}

func TestSendToOutbox_PublishesEachIDOnce(t *testing.T) {
	store := &fakeStore{rows: map[int64]*history.Row{
		1: {ID: 1}, 2: {ID: 2}, 3: {ID: 3},
	}}
	pub := &fakePublisher{}
	ob := newTestOutbox(t, store, pub)

	failures, err := ob.SendToOutbox(context.Background(), []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("SendToOutbox: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("expected no failures, got %v", failures)
	}
	if len(pub.published) != 3 {
		t.Fatalf("expected 3 publishes, got %d", len(pub.published))
	}
}

func TestSendToOutbox_IdempotentOnRetry(t *testing.T) {
	store := &fakeStore{rows: map[int64]*history.Row{1: {ID: 1}}}
	pub := &fakePublisher{}
	ob := newTestOutbox(t, store, pub)

	ctx := context.Background()
	if _, err := ob.SendToOutbox(ctx, []int64{1}); err != nil {
		t.Fatalf("first SendToOutbox: %v", err)
	}
	if _, err := ob.SendToOutbox(ctx, []int64{1}); err != nil {
		t.Fatalf("second SendToOutbox: %v", err)
	}

	if len(pub.published) != 1 {
		t.Fatalf("expected exactly 1 publish across both calls, got %d", len(pub.published))
	}
}

func TestSendToOutbox_FailureClearsClaimForRetry(t *testing.T) {
	store := &fakeStore{rows: map[int64]*history.Row{1: {ID: 1}}}
	pub := &fakePublisher{failOnce: map[int64]bool{1: true}}
	ob := newTestOutbox(t, store, pub)

	ctx := context.Background()
	failures, err := ob.SendToOutbox(ctx, []int64{1})
	if err != nil {
		t.Fatalf("SendToOutbox: %v", err)
	}
	if len(failures) != 1 || failures[0] != 1 {
		t.Fatalf("expected id 1 to fail, got %v", failures)
	}

	// The idempotency claim must have been released on failure so a
	// caller-driven retry can actually publish.
	failures, err = ob.SendToOutbox(ctx, []int64{1})
	if err != nil {
		t.Fatalf("retry SendToOutbox: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("expected retry to succeed, got failures %v", failures)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected exactly 1 successful publish after retry, got %d", len(pub.published))
	}
}

func TestSendToOutbox_MissingRowFails(t *testing.T) {
	store := &fakeStore{rows: map[int64]*history.Row{}}
	pub := &fakePublisher{}
	ob := newTestOutbox(t, store, pub)

	failures, err := ob.SendToOutbox(context.Background(), []int64{99})
	if err != nil {
		t.Fatalf("SendToOutbox: %v", err)
	}
	if len(failures) != 1 || failures[0] != 99 {
		t.Fatalf("expected id 99 to fail, got %v", failures)
	}
}
