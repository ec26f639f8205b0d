// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package outbox implements §4.N: resending already-stored History rows
// to the broadcast topic in small batches, for callers (typically a
// repair migration) that need to force a downstream rebuild.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tis-trainee/notifications/internal/history"
	"github.com/tis-trainee/notifications/internal/observability"
)

// batchSize is the §4.N "chunks of <=10" limit.
const batchSize = 10

// idempotencyTTL bounds how long a SendToOutbox call remembers it already
// forwarded an id, a supplemented safeguard against the same id being
// handed to SendToOutbox twice in quick succession (§4.N itself is silent
// on idempotency; this mirrors the ledger pattern used by §4.A's
// updateStatusIfNewer — see DESIGN.md).
const idempotencyTTL = 10 * time.Minute

// Publisher is the subset of internal/broadcast.Publisher the outbox
// needs; declared locally (matching internal/sender.Broadcaster) so this
// package can be unit-tested against a fake instead of a live Kafka
// producer.
type Publisher interface {
	Publish(ctx context.Context, row *history.Row) error
}

// Outbox implements the §4.N sendToOutbox contract.
type Outbox struct {
	store     history.Store
	publisher Publisher
	redis     *redis.Client
	logger    *observability.Logger
}

// New wires the outbox sender.
func New(store history.Store, publisher Publisher, redisClient *redis.Client, logger *observability.Logger) *Outbox {
	return &Outbox{store: store, publisher: publisher, redis: redisClient, logger: logger}
}

// SendToOutbox implements §4.N: batches ids, republishes each row, and
// returns the ids that failed so the caller can retry just those.
func (o *Outbox) SendToOutbox(ctx context.Context, ids []int64) ([]int64, error) {
	var failures []int64

	for _, batch := range chunk(ids, batchSize) {
		for _, id := range batch {
			if err := o.sendOne(ctx, id); err != nil {
				o.logger.WarnContext(ctx, "outbox send failed", zap.Int64("id", id), zap.Error(err))
				failures = append(failures, id)
			}
		}
	}
	return failures, nil
}

func (o *Outbox) sendOne(ctx context.Context, id int64) error {
	key := fmt.Sprintf("outbox:sent:%d", id)

	claimed, err := o.redis.SetNX(ctx, key, 1, idempotencyTTL).Result()
	if err != nil {
		return fmt.Errorf("idempotency check for %d: %w", id, err)
	}
	if !claimed {
		return nil
	}

	row, err := o.store.FindByID(ctx, id)
	if err != nil {
		o.redis.Del(ctx, key)
		return fmt.Errorf("load history %d: %w", id, err)
	}
	if row == nil {
		o.redis.Del(ctx, key)
		return fmt.Errorf("history %d not found", id)
	}

	if err := o.publisher.Publish(ctx, row); err != nil {
		o.redis.Del(ctx, key)
		return fmt.Errorf("publish history %d: %w", id, err)
	}
	return nil
}

func chunk(ids []int64, size int) [][]int64 {
	if len(ids) == 0 {
		return nil
	}
	var batches [][]int64
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[i:end])
	}
	return batches
}
