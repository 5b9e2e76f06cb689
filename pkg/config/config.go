// Package config loads chatflow's runtime configuration from environment
// variables. Every secret (database password, webhook secret, provider API
// key) MUST come from the environment, never from a committed file —
// spec §6.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the umbrella configuration object, loaded once at startup.
type Config struct {
	Database   DatabaseConfig
	Webhook    WebhookConfig
	Provider   ProviderConfig
	Changefeed ChangefeedConfig
	Queue      QueueConfig
	Recovery   RecoveryConfig
	Rules      RulesConfig
	HTTP       HTTPConfig
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"chatflow"`
	Password        string        `envconfig:"DB_PASSWORD" required:"true"`
	Database        string        `envconfig:"DB_NAME" default:"chatflow"`
	SSLMode         string        `envconfig:"DB_SSLMODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"15m"`

	// RawConnString, when set, is returned by ConnString() verbatim instead
	// of being built from the fields above. Used only by test helpers that
	// need to target a specific schema via search_path.
	RawConnString string `envconfig:"-" ignored:"true"`
}

// ConnString returns a libpq-style DSN for the pgx stdlib driver.
func (d DatabaseConfig) ConnString() string {
	if d.RawConnString != "" {
		return d.RawConnString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// WebhookConfig holds inbound webhook validation settings (spec §6).
type WebhookConfig struct {
	Secret string `envconfig:"WEBHOOK_SECRET" required:"true"`
}

// ProviderConfig holds outbound chat-platform API settings (spec §6).
type ProviderConfig struct {
	BaseURL       string        `envconfig:"PROVIDER_BASE_URL" required:"true"`
	GlobalAPIKey  string        `envconfig:"PROVIDER_GLOBAL_API_KEY"`
	CallTimeout   time.Duration `envconfig:"PROVIDER_CALL_TIMEOUT" default:"10s"`
}

// ChangefeedConfig controls the change-capture NOTIFY consumer (spec §4.3a).
type ChangefeedConfig struct {
	BatchSize int `envconfig:"CHANGEFEED_BATCH_SIZE" default:"50"`
}

// QueueConfig controls how the action queue is polled, leased, and retried
// (spec §4.3, §5).
type QueueConfig struct {
	WorkerCount             int           `envconfig:"QUEUE_WORKER_COUNT" default:"3"`
	BatchSize               int           `envconfig:"QUEUE_BATCH_SIZE" default:"15"`
	PollInterval            time.Duration `envconfig:"QUEUE_POLL_INTERVAL" default:"500ms"`
	PollIntervalJitter      time.Duration `envconfig:"QUEUE_POLL_INTERVAL_JITTER" default:"100ms"`
	DefaultMaxAttempts      int           `envconfig:"QUEUE_MAX_ATTEMPTS" default:"3"`
	RetryBackoffCap         time.Duration `envconfig:"QUEUE_RETRY_BACKOFF_CAP" default:"30s"`
	IdempotencyWindow       time.Duration `envconfig:"QUEUE_IDEMPOTENCY_WINDOW" default:"5m"`
	GracefulShutdownTimeout time.Duration `envconfig:"QUEUE_SHUTDOWN_TIMEOUT" default:"30s"`
	OrphanDetectionInterval time.Duration `envconfig:"QUEUE_ORPHAN_SCAN_INTERVAL" default:"1m"`
	OrphanThreshold         time.Duration `envconfig:"QUEUE_ORPHAN_THRESHOLD" default:"5m"`
}

// RecoveryConfig controls the Recovery Subsystem's sweep cadence (spec §4.8).
type RecoveryConfig struct {
	FailedEventSweepCron string        `envconfig:"RECOVERY_FAILED_EVENT_CRON" default:"*/30 * * * * *"`
	DeadLetterSweepCron  string        `envconfig:"RECOVERY_DEAD_LETTER_CRON" default:"0 */5 * * * *"`
	MaxBackoff           time.Duration `envconfig:"RECOVERY_MAX_BACKOFF" default:"10m"`
}

// RulesConfig controls the rule-match cache (spec §4.4).
type RulesConfig struct {
	CacheTTL        time.Duration `envconfig:"RULES_CACHE_TTL" default:"5m"`
	CacheSweepEvery time.Duration `envconfig:"RULES_CACHE_SWEEP_INTERVAL" default:"1m"`
}

// HTTPConfig controls the API server.
type HTTPConfig struct {
	Port        string `envconfig:"HTTP_PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
}

// Load reads Config from the process environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.Database.MaxIdleConns > cfg.Database.MaxOpenConns {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS (%d) cannot exceed DB_MAX_OPEN_CONNS (%d)",
			cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	}
	return &cfg, nil
}
