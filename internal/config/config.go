package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
	Queue     QueueConfig     `mapstructure:"queue"     validate:"required"`
	Webhook   WebhookConfig   `mapstructure:"webhook"   validate:"required"`
	Dashboard DashboardConfig `mapstructure:"dashboard" validate:"required"`
	Providers ProvidersConfig `mapstructure:"providers"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// RedisConfig contains connection settings for the Redis instance backing
// the single-flight advisory locks. Optional: when Addr is empty, the
// application falls back to an in-process lock.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig contains authentication settings for the management and
// enqueue API surface.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// QueueConfig contains job-engine tuning knobs shared by all queues.
// Per-queue concurrency and retry defaults are part of each queue's
// registration and live in code, not configuration.
type QueueConfig struct {
	// StallCheckInterval is how often the stall detector sweeps active jobs.
	StallCheckInterval time.Duration `mapstructure:"stall_check_interval" validate:"required"`

	// StallThreshold is how long an active job may go without a heartbeat
	// before it is reclaimed.
	StallThreshold time.Duration `mapstructure:"stall_threshold" validate:"required"`

	// HeartbeatInterval is how often workers refresh the lease on the job
	// they are executing.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"required"`
}

// WebhookConfig contains settings for the delivery-provider webhook endpoint.
type WebhookConfig struct {
	// ProviderToken is the shared secret the delivery provider presents on
	// every webhook call.
	ProviderToken string `mapstructure:"provider_token" validate:"required,min=16"`
}

// ProvidersConfig contains settings for the external service integrations
// the job handlers call out to. Each base URL is optional: when empty, the
// application wires a local stand-in that logs instead of dispatching,
// which keeps development and CI free of provider credentials.
type ProvidersConfig struct {
	EmailBaseURL string `mapstructure:"email_base_url" validate:"omitempty,url"`
	EmailAPIKey  string `mapstructure:"email_api_key"`

	RenderBaseURL string `mapstructure:"render_base_url" validate:"omitempty,url"`
	RenderAPIKey  string `mapstructure:"render_api_key"`

	TranscodeBaseURL string `mapstructure:"transcode_base_url" validate:"omitempty,url"`
	TranscodeAPIKey  string `mapstructure:"transcode_api_key"`

	// RequestTimeout bounds every outbound provider call.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DashboardConfig contains the health classification thresholds used by the
// dashboard aggregator.
type DashboardConfig struct {
	FailedErrorThreshold  int     `mapstructure:"failed_error_threshold"  validate:"required,gt=0"`
	WaitingWarnThreshold  int     `mapstructure:"waiting_warn_threshold"  validate:"required,gt=0"`
	CompletionRateWarning float64 `mapstructure:"completion_rate_warning" validate:"required,gt=0,lte=1"`
	MaxAlerts             int     `mapstructure:"max_alerts"              validate:"required,gt=0"`

	// SnapshotTTL is how long a computed dashboard snapshot is served
	// before recomputation; concurrent requests within the window share
	// one computation.
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl" validate:"required"`
}
