// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Command notifier is the trainee-notification service entry point: it
// wires every collaborator package explicitly (no DI container) and runs
// until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tis-trainee/notifications/internal/broadcast"
	"github.com/tis-trainee/notifications/internal/config"
	"github.com/tis-trainee/notifications/internal/contacts"
	"github.com/tis-trainee/notifications/internal/events"
	"github.com/tis-trainee/notifications/internal/executor"
	"github.com/tis-trainee/notifications/internal/feedback"
	"github.com/tis-trainee/notifications/internal/history"
	"github.com/tis-trainee/notifications/internal/intake"
	"github.com/tis-trainee/notifications/internal/objectstore"
	"github.com/tis-trainee/notifications/internal/observability"
	"github.com/tis-trainee/notifications/internal/outbox"
	"github.com/tis-trainee/notifications/internal/planner"
	"github.com/tis-trainee/notifications/internal/recipient"
	"github.com/tis-trainee/notifications/internal/remote"
	"github.com/tis-trainee/notifications/internal/render"
	"github.com/tis-trainee/notifications/internal/repair"
	"github.com/tis-trainee/notifications/internal/scheduler"
	"github.com/tis-trainee/notifications/internal/sender"
	"github.com/tis-trainee/notifications/internal/storage"
	"github.com/tis-trainee/notifications/internal/storage/migrations"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the notifier's YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	tracer, err := observability.NewTracer("notifier", cfg.Observability.TracingSampler)
	if err != nil {
		return fmt.Errorf("build tracer: %w", err)
	}

	timezone, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := storage.New(cfg.Database, logger.Logger)
	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("connect storage: %w", err)
	}
	defer db.Close() //nolint:errcheck

	migrator, err := migrations.NewMigrator(db.StdDB(), logger.Logger)
	if err != nil {
		return fmt.Errorf("build migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run schema migrations: %w", err)
	}

	historyStore := history.NewPostgresStore(db.GORM())
	schedulerStore := scheduler.NewStore(db.Pool())

	renderer := render.NewFileRenderer(cfg.Templates.Root)
	localizer, err := render.NewLocalizer(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("build localizer: %w", err)
	}

	// The object store is only needed when templates reference bucketed
	// attachments; a deployment with no attachment-bearing kinds can omit
	// object_store.bucket entirely and run with it nil.
	var objects *objectstore.Store
	if cfg.ObjectStore.Bucket != "" {
		objects, err = objectstore.New(ctx, os.Getenv("NOTIFIER_GCS_CREDENTIALS_JSON"))
		if err != nil {
			return fmt.Errorf("build object store: %w", err)
		}
	}

	directoryClient := remote.New("identity-directory", cfg.Remote.IdentityDirectoryURL, cfg.Remote.Timeout)
	profileClient := remote.New("trainee-profile", cfg.Remote.ProfileServiceURL, cfg.Remote.Timeout)
	referenceClient := remote.New("reference-service", cfg.Remote.ReferenceServiceURL, cfg.Remote.Timeout)

	recipients := recipient.NewResolver(directoryClient, profileClient)
	contactsResolver := contacts.NewResolver(referenceClient, 30*time.Second)

	metrics := observability.NewMetrics(cfg.Observability.MetricsPort)
	metrics.Start()
	defer metrics.Shutdown(context.Background()) //nolint:errcheck

	health := observability.NewHealthChecker(cfg.Observability.MetricsPort + 1)
	health.Register("database", db.Ping)
	health.Start()
	defer health.Shutdown(context.Background()) //nolint:errcheck

	producer, err := events.NewProducer(cfg.Kafka.BootstrapServers, logger)
	if err != nil {
		return fmt.Errorf("build kafka producer: %w", err)
	}
	defer producer.Close() //nolint:errcheck

	broadcaster := broadcast.New(producer, events.BroadcastTopic, logger)

	// go-redis lazily dials on first use, so it's safe to construct this
	// unconditionally: the outbox's idempotency ledger needs a live client
	// whenever the outbox listener actually runs, regardless of whether
	// redis.enabled was only meant to gate the contacts-cache fallback.
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	defer redisClient.Close() //nolint:errcheck
	outboxSender := outbox.New(historyStore, broadcaster, redisClient, logger)

	snd := sender.New(historyStore, renderer, localizer, objects, broadcaster, cfg.Email, cfg.InApp.Enabled, cfg.TemplateVersion)

	exec := executor.New(recipients, snd, logger, tracer, nil)
	pollInterval := time.Duration(cfg.Scheduler.MisfireWindowSeconds) * time.Second / 360
	sched := scheduler.New(schedulerStore, tracer, logger, exec.Fire, pollInterval)

	programmePlanner := planner.NewProgrammePlanner(historyStore, sched, snd, logger, timezone, nil)
	placementPlanner := planner.NewPlacementPlanner(historyStore, sched, logger, timezone)
	ltftPlanner := planner.NewLTFTPlanner(contactsResolver, recipients, snd, logger)
	feedbackHandler := feedback.New(historyStore, snd, logger)

	dispatcher := intake.New(programmePlanner, placementPlanner, ltftPlanner, feedbackHandler, recipients, snd, outboxSender, logger)

	runner := repair.NewRunner(db.GORM(), logger)
	registerRepairs(runner, historyStore, broadcaster, snd, sched)
	runner.RunAll(ctx)

	consumers, err := startConsumers(cfg, logger, producer, dispatcher)
	if err != nil {
		return fmt.Errorf("start consumers: %w", err)
	}
	defer func() {
		for _, c := range consumers {
			c.Stop()
			c.Close() //nolint:errcheck
		}
	}()

	go sched.Run(ctx)

	logger.Info("notifier started")
	<-ctx.Done()
	logger.Info("notifier shutting down")
	return nil
}
