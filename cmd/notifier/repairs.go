// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package main

import (
	"time"

	"github.com/tis-trainee/notifications/internal/broadcast"
	"github.com/tis-trainee/notifications/internal/history"
	"github.com/tis-trainee/notifications/internal/repair"
	"github.com/tis-trainee/notifications/internal/scheduler"
	"github.com/tis-trainee/notifications/internal/sender"
)

// registerRepairs lists the one-shot §4.O data-repair migrations this
// deployment carries. New repairs are appended here, never inserted or
// reordered, since the ledger keys on id alone and Runner applies
// registration order.
func registerRepairs(runner *repair.Runner, store history.Store, publisher *broadcast.Publisher, snd *sender.Sender, sched *scheduler.Scheduler) {
	runner.Register(repair.DeleteObsoleteKind("2025-07-delete-programme-reminder-legacy", "PROGRAMME_REMINDER_LEGACY", store))

	runner.Register(repair.RewriteKind("2025-07-rewrite-ltft-submitted-trainee", "LTFT_SUBMITTED_TRAINEE", "LTFT_SUBMITTED", store))

	runner.Register(repair.BackfillStatus("2025-07-backfill-null-status-scheduled", history.StatusScheduled, store))

	runner.Register(repair.BroadcastAll("2025-07-broadcast-all-history", store, publisher))

	runner.Register(repair.ResetPastDueScheduled("2025-07-reset-past-due-scheduled", time.Now(), store))
}
