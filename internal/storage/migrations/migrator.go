// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package migrations owns the schema DDL for the notifier: the
// notification_history table, the scheduler's job table, and the
// migrations-applied ledger used by internal/repair. Schema changes go
// through golang-migrate; data repairs (internal/repair) are a separate,
// application-level registry and never touch this package.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var migrationFS embed.FS

// Migrator applies schema migrations using golang-migrate.
type Migrator struct {
	logger  *zap.Logger
	migrate *migrate.Migrate
}

// NewMigrator builds a Migrator bound to an already-open *sql.DB.
func NewMigrator(db *sql.DB, logger *zap.Logger) (*Migrator, error) {
	sourceDriver, err := iofs.New(migrationFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("create source driver: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations",
		DatabaseName:    "notifications",
	})
	if err != nil {
		return nil, fmt.Errorf("create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}

	return &Migrator{logger: logger, migrate: m}, nil
}

// Up runs every pending migration.
func (m *Migrator) Up() error {
	m.logger.Info("running schema migrations")

	if err := m.migrate.Up(); err != nil {
		if err == migrate.ErrNoChange {
			m.logger.Info("no pending migrations")
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, err := m.migrate.Version()
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}

	m.logger.Info("schema migrations complete", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// Close releases the source and database handles golang-migrate opened.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("close migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close migration database handle: %w", dbErr)
	}
	return nil
}
