package security

import "errors"

var (
	ErrIPBanned          = errors.New("security: ip is banned")
	ErrConnectionRateExceeded = errors.New("security: connection rate exceeded for ip")
	ErrRateLimited       = errors.New("security: rate limit exceeded")
	ErrInvalidMessage    = errors.New("security: message failed validation")
	ErrTokenInvalid      = errors.New("security: token invalid or expired")
)
