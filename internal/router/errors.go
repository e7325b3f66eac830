package router

import "errors"

var (
	ErrFrameTooLarge    = errors.New("router: frame exceeds maximum size")
	ErrUndecodable      = errors.New("router: frame is not valid json")
	ErrUnknownType      = errors.New("router: unknown or missing frame type")
	ErrSchemaViolation  = errors.New("router: frame missing required fields")
)
