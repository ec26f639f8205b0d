// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package config loads the notifier's runtime configuration from a YAML
// file with environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the single configuration object loaded once at startup and
// passed by constructor parameter to every collaborator. There is no
// global container: main wires each package's dependencies explicitly.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Queues      QueueConfig       `yaml:"queues"`
	Email       EmailConfig       `yaml:"email"`
	InApp       InAppConfig       `yaml:"in_app"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Remote      RemoteConfig      `yaml:"remote"`
	Templates   TemplateConfig    `yaml:"templates"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Outbox      OutboxConfig      `yaml:"outbox"`
	Broadcast   BroadcastConfig   `yaml:"broadcast"`
	Observability ObservabilityConfig `yaml:"observability"`

	// AppDomainURI is the public base URL used to build links in templates.
	AppDomainURI string `yaml:"app_domain_uri"`

	// Timezone is the configured IANA time-zone id used for all
	// business-date calculations (anchoring, getScheduleDate, DAY_ONE).
	Timezone string `yaml:"timezone"`

	// NotificationWhitelist lists trainee ids reported by IsWhitelisted.
	// No planner or sender consults it, so a listed trainee bypasses no
	// exclusion or eligibility gate.
	NotificationWhitelist []string `yaml:"notification_whitelist"`

	// ImmediateNotificationsDelay is loaded from configuration; no planner
	// or send path reads it.
	ImmediateNotificationsDelay time.Duration `yaml:"immediate_notifications_delay"`
}

// DatabaseConfig configures the History store's Postgres connection.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	LogLevel        string        `yaml:"log_level"`
}

// DSN builds the libpq connection string from the discrete fields above.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Database, d.User, d.Password, d.SSLMode)
}

// RedisConfig configures the contacts-cache / outbox-ledger Redis client.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
}

// KafkaConfig configures the event-bus transport.
type KafkaConfig struct {
	BootstrapServers []string `yaml:"bootstrap_servers"`
	ConsumerGroup    string   `yaml:"consumer_group"`
}

// QueueConfig names the inbound queues from §6.1.
type QueueConfig struct {
	AccountConfirmed         string `yaml:"account_confirmed"`
	AccountUpdated           string `yaml:"account_updated"`
	CojPublished             string `yaml:"coj_published"`
	ContactDetailsUpdated    string `yaml:"contact_details_updated"`
	EmailEvent               string `yaml:"email_event"`
	FormUpdated              string `yaml:"form_updated"`
	GmcRejected              string `yaml:"gmc_rejected"`
	GmcUpdated               string `yaml:"gmc_updated"`
	LtftUpdated              string `yaml:"ltft_updated"`
	LtftUpdatedTpd           string `yaml:"ltft_updated_tpd"`
	PlacementUpdated         string `yaml:"placement_updated"`
	PlacementDeleted         string `yaml:"placement_deleted"`
	ProgrammeMembershipUpdated string `yaml:"programme_membership_updated"`
	ProgrammeMembershipDeleted string `yaml:"programme_membership_deleted"`
	Outbox                   string `yaml:"outbox"`

	// MaxDeliveryAttempts bounds re-delivery before a message is routed
	// to the dead-letter topic.
	MaxDeliveryAttempts int `yaml:"max_delivery_attempts"`
}

// EmailConfig configures the EMAIL send path.
type EmailConfig struct {
	Enabled bool       `yaml:"enabled"`
	From    string     `yaml:"from"`
	SMTP    SMTPConfig `yaml:"smtp"`
}

// SMTPConfig configures the SMTP relay used for outbound mail.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	StartTLS bool   `yaml:"start_tls"`
}

// InAppConfig configures the IN_APP send path.
type InAppConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ObjectStoreConfig configures the attachment object store.
type ObjectStoreConfig struct {
	Bucket string `yaml:"bucket"`
}

// RemoteConfig configures the REST collaborators in §6.3.
type RemoteConfig struct {
	IdentityDirectoryURL string        `yaml:"identity_directory_url"`
	ProfileServiceURL    string        `yaml:"profile_service_url"`
	ReferenceServiceURL  string        `yaml:"reference_service_url"`
	ActionsServiceURL    string        `yaml:"actions_service_url"`
	Timeout              time.Duration `yaml:"timeout"`
}

// TemplateConfig holds the `{kind}.{channel}` -> version map and the
// filesystem root the FileRenderer resolves template paths under.
type TemplateConfig struct {
	Root     string            `yaml:"root"`
	Versions map[string]string `yaml:"versions"`
}

// SchedulerConfig configures the persistent job store.
type SchedulerConfig struct {
	MisfireWindowSeconds int `yaml:"misfire_window_seconds"`
}

// OutboxConfig configures the outbound batching sender.
type OutboxConfig struct {
	QueueURL  string `yaml:"queue_url"`
	BatchSize int    `yaml:"batch_size"`
}

// BroadcastConfig configures the downstream event-fanout topic.
type BroadcastConfig struct {
	TopicARN string `yaml:"topic_arn"`
}

// ObservabilityConfig configures logging/tracing/metrics.
type ObservabilityConfig struct {
	LogLevel       string  `yaml:"log_level"`
	LogFormat      string  `yaml:"log_format"`
	MetricsPort    int     `yaml:"metrics_port"`
	TracingEnabled bool    `yaml:"tracing_enabled"`
	TracingSampler float64 `yaml:"tracing_sampler"`
}

// Load reads a YAML configuration file and applies environment-variable
// overrides for values that should never live in a checked-in file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides overrides secret-shaped fields from the environment.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NOTIFIER_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("NOTIFIER_SMTP_PASSWORD"); v != "" {
		cfg.Email.SMTP.Password = v
	}
	if v := os.Getenv("NOTIFIER_SMTP_USERNAME"); v != "" {
		cfg.Email.SMTP.Username = v
	}
	if v := os.Getenv("NOTIFIER_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
}

// Validate checks invariants required for the service to start.
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.Database == "" {
		return fmt.Errorf("database host and database name are required")
	}
	if len(c.Kafka.BootstrapServers) == 0 {
		return fmt.Errorf("kafka bootstrap servers are required")
	}
	if c.Kafka.ConsumerGroup == "" {
		return fmt.Errorf("kafka consumer group is required")
	}
	if c.Timezone == "" {
		return fmt.Errorf("timezone is required")
	}
	if !c.Email.Enabled && !c.InApp.Enabled {
		return fmt.Errorf("at least one of email.enabled or in_app.enabled must be true")
	}
	return nil
}

// IsWhitelisted reports whether a trainee id is in NotificationWhitelist.
func (c *Config) IsWhitelisted(traineeID string) bool {
	for _, id := range c.NotificationWhitelist {
		if id == traineeID {
			return true
		}
	}
	return false
}

// TemplateVersion resolves the configured version for a notification kind
// and channel, defaulting to "1" when unset.
func (c *Config) TemplateVersion(kind, channel string) string {
	if v, ok := c.Templates.Versions[kind+"."+channel]; ok {
		return v
	}
	return "1"
}

// DefaultConfig returns sane defaults, overridden by the loaded YAML file.
func DefaultConfig() *Config {
	return &Config{
		Timezone: "Europe/London",
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "notifications",
			User:            "notifications",
			SSLMode:         "disable",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			LogLevel:        "info",
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "trainee-notifications",
		},
		Queues: QueueConfig{
			AccountConfirmed:           "account-confirmed",
			AccountUpdated:             "account-updated",
			CojPublished:               "coj-published",
			ContactDetailsUpdated:      "contact-details-updated",
			EmailEvent:                 "email-event",
			FormUpdated:                "form-updated",
			GmcRejected:                "gmc-rejected",
			GmcUpdated:                 "gmc-updated",
			LtftUpdated:                "ltft-updated",
			LtftUpdatedTpd:             "ltft-updated-tpd",
			PlacementUpdated:           "placement-updated",
			PlacementDeleted:           "placement-deleted",
			ProgrammeMembershipUpdated: "programme-membership-updated",
			ProgrammeMembershipDeleted: "programme-membership-deleted",
			Outbox:                     "outbox",
			MaxDeliveryAttempts:        5,
		},
		Email: EmailConfig{Enabled: true},
		InApp: InAppConfig{Enabled: true},
		Remote: RemoteConfig{
			Timeout: 10 * time.Second,
		},
		Scheduler: SchedulerConfig{
			MisfireWindowSeconds: 3600,
		},
		Outbox: OutboxConfig{
			BatchSize: 10,
		},
		ImmediateNotificationsDelay: 0,
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			MetricsPort:    9090,
			TracingEnabled: true,
			TracingSampler: 0.1,
		},
	}
}
