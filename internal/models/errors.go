package models

import "errors"

// Common model errors
var (
	// ErrInvalidKey indicates a malformed entity key
	ErrInvalidKey = errors.New("invalid entity key")

	// ErrUnknownPayload indicates a payload whose shape is not one of the known entity payloads
	ErrUnknownPayload = errors.New("unknown payload shape")

	// ErrInvalidMessage indicates a sync message that fails validation
	ErrInvalidMessage = errors.New("invalid sync message")
)
