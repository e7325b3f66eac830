package config

import "errors"

var (
	errPortRequired              = errors.New("config: port is required")
	errJWTSecretTooShort          = errors.New("config: jwt secret must be at least 32 bytes when token minting is enabled")
	errMaxQueueSizeInvalid        = errors.New("config: max queue size must be positive")
	errMaxConnectionsPerIPInvalid = errors.New("config: max connections per ip must be positive")
	errHeartbeatConfigInvalid     = errors.New("config: heartbeat interval and connection timeout must be positive")
	errRateLimitConfigInvalid     = errors.New("config: rate limit values must be positive")
	errMessageLimitConfigInvalid  = errors.New("config: message size and length limits must be positive")
)
