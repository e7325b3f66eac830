package types

import "errors"

var (
	ErrInvalidUserID     = errors.New("invalid user id")
	ErrInvalidFingerprint = errors.New("invalid fingerprint")
	ErrInvalidMode        = errors.New("invalid mode")
)
