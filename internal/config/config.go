package config

import "time"

// Config holds every tunable named in the service's external interface.
// Field names mirror the environment variables documented alongside them;
// viper binds both directly, with no key prefix, since the service fixes
// their exact names.
type Config struct {
	Port string `mapstructure:"port" yaml:"port"`

	JWTSecret         string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	TokenMintEnabled  bool   `mapstructure:"token_mint_enabled" yaml:"token_mint_enabled"`
	EncryptionEnabled bool   `mapstructure:"encryption_enabled" yaml:"encryption_enabled"`

	QueueTimeout        time.Duration `mapstructure:"queue_timeout_ms" yaml:"queue_timeout_ms"`
	MaxQueueSize        int           `mapstructure:"max_queue_size" yaml:"max_queue_size"`
	MaxConnectionsPerIP int           `mapstructure:"max_connections_per_ip" yaml:"max_connections_per_ip"`
	IPConnectionWindow  time.Duration `mapstructure:"ip_connection_window_ms" yaml:"ip_connection_window_ms"`
	BanDuration         time.Duration `mapstructure:"ban_duration_ms" yaml:"ban_duration_ms"`
	HeartbeatInterval   time.Duration `mapstructure:"heartbeat_interval_ms" yaml:"heartbeat_interval_ms"`
	ConnectionTimeout   time.Duration `mapstructure:"connection_timeout_ms" yaml:"connection_timeout_ms"`

	RateLimitMessagesPerMinute int `mapstructure:"rate_limit_messages_per_minute" yaml:"rate_limit_messages_per_minute"`
	RateLimitSkipsPerMinute    int `mapstructure:"rate_limit_skips_per_minute" yaml:"rate_limit_skips_per_minute"`
	RateLimitReportsPerHour    int `mapstructure:"rate_limit_reports_per_hour" yaml:"rate_limit_reports_per_hour"`

	MaxMessageSize   int `mapstructure:"max_message_size" yaml:"max_message_size"`
	MaxMessageLength int `mapstructure:"max_message_length" yaml:"max_message_length"`

	CleanupInterval   time.Duration `mapstructure:"cleanup_interval_ms" yaml:"cleanup_interval_ms"`
	ModeSwitchTimeout time.Duration `mapstructure:"mode_switch_timeout_ms" yaml:"mode_switch_timeout_ms"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with the defaults spelled out in the
// service's configuration reference.
func Default() Config {
	return Config{
		Port: "3000",

		TokenMintEnabled:  false,
		EncryptionEnabled: false,

		QueueTimeout:        300_000 * time.Millisecond,
		MaxQueueSize:        10000,
		MaxConnectionsPerIP: 20,
		IPConnectionWindow:  60 * time.Second,
		BanDuration:         86_400_000 * time.Millisecond,
		HeartbeatInterval:   30_000 * time.Millisecond,
		ConnectionTimeout:   60_000 * time.Millisecond,

		RateLimitMessagesPerMinute: 30,
		RateLimitSkipsPerMinute:    10,
		RateLimitReportsPerHour:    3,

		MaxMessageSize:   10240,
		MaxMessageLength: 500,

		CleanupInterval:   60_000 * time.Millisecond,
		ModeSwitchTimeout: 30 * time.Second,

		LogLevel: "info",
	}
}

// UpdateFrom overwrites non-zero values from other into the receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Port != "" {
		c.Port = other.Port
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.TokenMintEnabled {
		c.TokenMintEnabled = other.TokenMintEnabled
	}
	if other.EncryptionEnabled {
		c.EncryptionEnabled = other.EncryptionEnabled
	}
	if other.IPConnectionWindow != 0 {
		c.IPConnectionWindow = other.IPConnectionWindow
	}
	if other.ModeSwitchTimeout != 0 {
		c.ModeSwitchTimeout = other.ModeSwitchTimeout
	}
	if other.QueueTimeout != 0 {
		c.QueueTimeout = other.QueueTimeout
	}
	if other.MaxQueueSize != 0 {
		c.MaxQueueSize = other.MaxQueueSize
	}
	if other.MaxConnectionsPerIP != 0 {
		c.MaxConnectionsPerIP = other.MaxConnectionsPerIP
	}
	if other.BanDuration != 0 {
		c.BanDuration = other.BanDuration
	}
	if other.HeartbeatInterval != 0 {
		c.HeartbeatInterval = other.HeartbeatInterval
	}
	if other.ConnectionTimeout != 0 {
		c.ConnectionTimeout = other.ConnectionTimeout
	}
	if other.RateLimitMessagesPerMinute != 0 {
		c.RateLimitMessagesPerMinute = other.RateLimitMessagesPerMinute
	}
	if other.RateLimitSkipsPerMinute != 0 {
		c.RateLimitSkipsPerMinute = other.RateLimitSkipsPerMinute
	}
	if other.RateLimitReportsPerHour != 0 {
		c.RateLimitReportsPerHour = other.RateLimitReportsPerHour
	}
	if other.MaxMessageSize != 0 {
		c.MaxMessageSize = other.MaxMessageSize
	}
	if other.MaxMessageLength != 0 {
		c.MaxMessageLength = other.MaxMessageLength
	}
	if other.CleanupInterval != 0 {
		c.CleanupInterval = other.CleanupInterval
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// Validate checks the loaded configuration for internally inconsistent or
// out-of-range values before the application wires anything against it.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errPortRequired
	}
	if c.TokenMintEnabled && len(c.JWTSecret) < 32 {
		return errJWTSecretTooShort
	}
	if c.MaxQueueSize <= 0 {
		return errMaxQueueSizeInvalid
	}
	if c.MaxConnectionsPerIP <= 0 {
		return errMaxConnectionsPerIPInvalid
	}
	if c.HeartbeatInterval <= 0 || c.ConnectionTimeout <= 0 {
		return errHeartbeatConfigInvalid
	}
	if c.RateLimitMessagesPerMinute <= 0 || c.RateLimitSkipsPerMinute <= 0 || c.RateLimitReportsPerHour <= 0 {
		return errRateLimitConfigInvalid
	}
	if c.MaxMessageSize <= 0 || c.MaxMessageLength <= 0 {
		return errMessageLimitConfigInvalid
	}
	return nil
}
