package transport

import "errors"

var (
	ErrConnectionClosed   = errors.New("transport: connection closed")
	ErrInvalidJSON        = errors.New("transport: invalid json payload")
	ErrWriteTimeout       = errors.New("transport: write timed out")
	ErrNilConnection      = errors.New("transport: nil connection")
	ErrAlreadyIdentified  = errors.New("transport: connection already identified as a different user")
)
