// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tis-trainee/notifications/internal/observability"
)

// Executor fires a claimed job, or an unstored one via ExecuteNow.
// TryClaim hands each stored job to at most one node.
type Executor func(ctx context.Context, job Job) error

// Scheduler polls the job store and, for every due job this node wins
// election for, invokes the executor.
type Scheduler struct {
	store    *Store
	tracer   *observability.Tracer
	logger   *observability.Logger
	executor Executor

	pollInterval time.Duration
}

// New builds a Scheduler. pollInterval governs how often due jobs are
// polled for; it has no bearing on correctness, only on fire latency.
func New(store *Store, tracer *observability.Tracer, logger *observability.Logger, executor Executor, pollInterval time.Duration) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &Scheduler{
		store:        store,
		tracer:       tracer,
		logger:       logger,
		executor:     executor,
		pollInterval: pollInterval,
	}
}

// Schedule registers a one-shot job, replacing any job already keyed by
// jobID (§4.F "replan").
func (s *Scheduler) Schedule(ctx context.Context, jobID string, data map[string]interface{}, fireAt time.Time, misfireWindowSeconds int) error {
	return s.store.Schedule(ctx, jobID, data, fireAt, misfireWindowSeconds)
}

// Remove cancels a job; a job that was never scheduled (or already fired)
// is not an error.
func (s *Scheduler) Remove(ctx context.Context, jobID string) error {
	return s.store.Remove(ctx, jobID)
}

// ExecuteNow bypasses the store entirely and runs the executor
// immediately, for callers that already hold the data and only want the
// scheduler's tracing span (§4.F "fire immediately").
func (s *Scheduler) ExecuteNow(ctx context.Context, jobID string, data map[string]interface{}) error {
	return s.fire(ctx, Job{ID: jobID, Data: data, FireAt: time.Now()})
}

// Run polls for due jobs until ctx is cancelled. Safe to run on every
// cluster node concurrently: TryClaim ensures exactly one node fires each
// trigger.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *Scheduler) pollOnce(ctx context.Context) {
	now := time.Now()
	due, err := s.store.DueJobs(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "list due jobs", zap.Error(err))
		return
	}

	for _, job := range due {
		won, err := s.store.TryClaim(ctx, job.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "claim job", zap.String("jobId", job.ID), zap.Error(err))
			continue
		}
		if !won {
			continue
		}

		// §8 misfire policy: a trigger missed by more than its misfire
		// window is discarded rather than fired late.
		deadline := job.FireAt.Add(time.Duration(job.MisfireWindowSeconds) * time.Second)
		if now.After(deadline) {
			s.logger.WarnContext(ctx, "discarding misfired job",
				zap.String("jobId", job.ID),
				zap.Time("fireAt", job.FireAt),
				zap.Time("now", now))
			continue
		}

		if err := s.fire(ctx, job); err != nil {
			s.logger.ErrorContext(ctx, "fire job", zap.String("jobId", job.ID), zap.Error(err))
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, job Job) error {
	ctx, span := s.tracer.StartSpan(ctx, "scheduler.fire")
	defer span.End()

	return s.executor(ctx, job)
}
