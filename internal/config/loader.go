package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigPath     = "RENDEZVOUS_CONFIG_PATH"
	defaultConfigName = "config.yaml"
)

// envBindings maps every viper key to the exact environment variable name
// fixed by the service's configuration reference. Unlike a typical viper
// setup there is no shared prefix: each name is spelled out in full.
var envBindings = map[string]string{
	"port":                            "PORT",
	"jwt_secret":                      "JWT_SECRET",
	"token_mint_enabled":              "TOKEN_MINT_ENABLED",
	"encryption_enabled":              "ENCRYPTION_ENABLED",
	"queue_timeout_ms":                "QUEUE_TIMEOUT_MS",
	"max_queue_size":                  "MAX_QUEUE_SIZE",
	"max_connections_per_ip":          "MAX_CONNECTIONS_PER_IP",
	"ban_duration_ms":                 "BAN_DURATION_MS",
	"heartbeat_interval_ms":           "HEARTBEAT_INTERVAL_MS",
	"connection_timeout_ms":           "CONNECTION_TIMEOUT_MS",
	"rate_limit_messages_per_minute":  "RATE_LIMIT_MESSAGES_PER_MINUTE",
	"rate_limit_skips_per_minute":     "RATE_LIMIT_SKIPS_PER_MINUTE",
	"rate_limit_reports_per_hour":     "RATE_LIMIT_REPORTS_PER_HOUR",
	"max_message_size":                "MAX_MESSAGE_SIZE",
	"max_message_length":              "MAX_MESSAGE_LENGTH",
	"cleanup_interval_ms":             "CLEANUP_INTERVAL_MS",
	"log_level":                       "LOG_LEVEL",
}

// Load builds configuration from defaults, an optional YAML config file,
// and environment variables, in that precedence order, and returns the
// resolved config file path. Env vars always win over the file; the file
// always wins over the built-in defaults.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("port", cfg.Port)
	v.SetDefault("queue_timeout_ms", cfg.QueueTimeout)
	v.SetDefault("max_queue_size", cfg.MaxQueueSize)
	v.SetDefault("max_connections_per_ip", cfg.MaxConnectionsPerIP)
	v.SetDefault("ban_duration_ms", cfg.BanDuration)
	v.SetDefault("heartbeat_interval_ms", cfg.HeartbeatInterval)
	v.SetDefault("connection_timeout_ms", cfg.ConnectionTimeout)
	v.SetDefault("rate_limit_messages_per_minute", cfg.RateLimitMessagesPerMinute)
	v.SetDefault("rate_limit_skips_per_minute", cfg.RateLimitSkipsPerMinute)
	v.SetDefault("rate_limit_reports_per_hour", cfg.RateLimitReportsPerHour)
	v.SetDefault("max_message_size", cfg.MaxMessageSize)
	v.SetDefault("max_message_length", cfg.MaxMessageLength)
	v.SetDefault("cleanup_interval_ms", cfg.CleanupInterval)
	v.SetDefault("log_level", cfg.LogLevel)

	for key, envName := range envBindings {
		if err := v.BindEnv(key, envName); err != nil {
			return cfg, "", fmt.Errorf("bind env %s: %w", envName, err)
		}
	}

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			if logger != nil {
				logger.Info().Str("path", configPath).Msg("no config file found, using defaults and env vars")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, configPath, err
	}

	return cfg, configPath, nil
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	if base := os.Getenv(envConfigPath); base != "" {
		return filepath.Join(base, defaultConfigName)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

// WriteDefaultConfig writes the given config to path as YAML, creating
// parent directories as needed. Used by operators who want to start from
// a file instead of an all-env-var deployment.
func WriteDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
