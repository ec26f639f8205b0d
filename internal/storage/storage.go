// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package storage owns the Postgres connection pool shared by the History
// store, the scheduler's job table, and the migration/repair registry.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tis-trainee/notifications/internal/config"
)

// Storage manages the pgx pool and a separate GORM connection opened from
// the same DSN.
type Storage struct {
	cfg    config.DatabaseConfig
	logger *zap.Logger

	mu        sync.RWMutex
	pool      *pgxpool.Pool
	gormDB    *gorm.DB
	stdDB     *sql.DB
	connected bool
}

// New constructs a disconnected Storage.
func New(cfg config.DatabaseConfig, logger *zap.Logger) *Storage {
	return &Storage{cfg: cfg, logger: logger}
}

// Connect opens the pgx pool and a GORM connection to the same database.
func (s *Storage) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("storage already connected")
	}

	poolCfg, err := pgxpool.ParseConfig(s.cfg.DSN())
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(s.cfg.MaxOpenConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	var gormLogger logger.Interface
	if s.cfg.LogLevel == "debug" {
		gormLogger = logger.Default.LogMode(logger.Info)
	} else {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  s.cfg.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		pool.Close()
		return fmt.Errorf("connect gorm: %w", err)
	}

	stdDB, err := gormDB.DB()
	if err != nil {
		pool.Close()
		return fmt.Errorf("unwrap stdlib db: %w", err)
	}
	stdDB.SetMaxOpenConns(s.cfg.MaxOpenConns)
	stdDB.SetMaxIdleConns(s.cfg.MaxIdleConns)
	stdDB.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	s.pool = pool
	s.gormDB = gormDB
	s.stdDB = stdDB
	s.connected = true

	s.logger.Info("storage connected",
		zap.String("host", s.cfg.Host),
		zap.Int("port", s.cfg.Port),
		zap.String("database", s.cfg.Database),
	)
	return nil
}

// Close releases the pool and the underlying stdlib handle.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.stdDB != nil {
		if err := s.stdDB.Close(); err != nil {
			return fmt.Errorf("close stdlib db: %w", err)
		}
	}
	s.connected = false
	return nil
}

// GORM returns the GORM handle used by internal/history.
func (s *Storage) GORM() *gorm.DB { return s.gormDB }

// Pool returns the pgx pool used directly by the scheduler's advisory-lock
// election (pgx exposes Exec/QueryRow without GORM's statement cache getting
// in the way of session-scoped locks).
func (s *Storage) Pool() *pgxpool.Pool { return s.pool }

// StdDB returns the database/sql handle golang-migrate needs.
func (s *Storage) StdDB() *sql.DB { return s.stdDB }

// Ping checks liveness for the health checker.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
