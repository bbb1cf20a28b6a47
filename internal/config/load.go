package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables (prefixed with LUMEN_) take precedence over values
// from config files. Returns a populated Config struct or an error if
// loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file: config.yaml in the working directory.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; environment variables cover everything.
	}

	// Environment variables: LUMEN_SERVER_PORT maps to server.port, etc.
	v.SetEnvPrefix("LUMEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values for settings that have a sensible
// out-of-the-box choice. Secrets (database URL, JWT secret, webhook token)
// have no defaults and must be supplied.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("queue.stall_check_interval", 30*time.Second)
	v.SetDefault("queue.stall_threshold", time.Minute)
	v.SetDefault("queue.heartbeat_interval", 15*time.Second)

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("dashboard.failed_error_threshold", 50)
	v.SetDefault("dashboard.waiting_warn_threshold", 500)
	v.SetDefault("dashboard.completion_rate_warning", 0.9)
	v.SetDefault("dashboard.max_alerts", 100)
	v.SetDefault("dashboard.snapshot_ttl", 5*time.Second)

	v.SetDefault("providers.request_timeout", 30*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
}
