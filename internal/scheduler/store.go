// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists Job rows in the scheduler_jobs table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps the shared pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Schedule registers a one-shot job, replacing any existing job with the
// same id (same key may carry different data across replans).
func (s *Store) Schedule(ctx context.Context, jobID string, data map[string]interface{}, fireAt time.Time, misfireWindowSeconds int) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal job data: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO scheduler_jobs (job_id, data, fire_at, misfire_window_seconds)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id) DO UPDATE
		SET data = EXCLUDED.data, fire_at = EXCLUDED.fire_at, misfire_window_seconds = EXCLUDED.misfire_window_seconds
	`, jobID, payload, fireAt, misfireWindowSeconds)
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", jobID, err)
	}
	return nil
}

// Remove deletes any job with this key; a missing key is not an error.
func (s *Store) Remove(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM scheduler_jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("remove job %s: %w", jobID, err)
	}
	return nil
}

// DueJobs returns every job whose fire_at has passed, oldest first.
func (s *Store) DueJobs(ctx context.Context, now time.Time) ([]Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT job_id, data, fire_at, misfire_window_seconds
		FROM scheduler_jobs
		WHERE fire_at <= $1
		ORDER BY fire_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("query due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			job     Job
			payload []byte
		)
		if err := rows.Scan(&job.ID, &payload, &job.FireAt, &job.MisfireWindowSeconds); err != nil {
			return nil, fmt.Errorf("scan due job: %w", err)
		}
		if err := json.Unmarshal(payload, &job.Data); err != nil {
			return nil, fmt.Errorf("unmarshal job data %s: %w", job.ID, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// TryClaim attempts to win cluster election for jobID via a session-scoped
// Postgres advisory lock keyed by a hash of the job id, and deletes the
// job row if the lock is acquired. The lock is released as soon as the
// delete returns, before the job fires; only the node whose delete
// removed the row wins, so each trigger goes to at most one node, and a
// crash between claim and fire loses that trigger rather than re-firing it.
func (s *Store) TryClaim(ctx context.Context, jobID string) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection for advisory lock: %w", err)
	}
	defer conn.Release()

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, jobID).Scan(&acquired); err != nil {
		return false, fmt.Errorf("try advisory lock for %s: %w", jobID, err)
	}
	if !acquired {
		return false, nil
	}
	defer conn.QueryRow(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, jobID).Scan(new(bool))

	tag, err := conn.Exec(ctx, `DELETE FROM scheduler_jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return false, fmt.Errorf("delete claimed job %s: %w", jobID, err)
	}

	return tag.RowsAffected() > 0, nil
}
