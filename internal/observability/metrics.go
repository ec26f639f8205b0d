// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters and histograms the notifier exports.
type Metrics struct {
	NotificationsScheduled *prometheus.CounterVec
	NotificationsSent      *prometheus.CounterVec
	NotificationsFailed    *prometheus.CounterVec
	SchedulerMisfires      prometheus.Counter
	FeedbackEventsIgnored  prometheus.Counter

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics registers every metric against a fresh registry.
func NewMetrics(port int) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		NotificationsScheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_notifications_scheduled_total",
			Help: "Notifications moved to SCHEDULED, by kind and channel.",
		}, []string{"kind", "channel"}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_notifications_sent_total",
			Help: "Notifications successfully dispatched, by kind and channel.",
		}, []string{"kind", "channel"}),
		NotificationsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_notifications_failed_total",
			Help: "Notifications that ended in FAILED, by kind and channel.",
		}, []string{"kind", "channel"}),
		SchedulerMisfires: factory.NewCounter(prometheus.CounterOpts{
			Name: "notifier_scheduler_misfires_total",
			Help: "Job triggers discarded because they fell outside the misfire window.",
		}),
		FeedbackEventsIgnored: factory.NewCounter(prometheus.CounterOpts{
			Name: "notifier_feedback_events_ignored_total",
			Help: "Feedback events that were a no-op due to timestamp monotonicity.",
		}),
		registry: registry,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	m.server = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	return m
}

// Start runs the metrics HTTP server in the background.
func (m *Metrics) Start() {
	go func() {
		_ = m.server.ListenAndServe()
	}()
}

// Shutdown stops the metrics HTTP server.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.server.Shutdown(ctx)
}
