package engine

import "errors"

var (
	ErrInvalidMutation = errors.New("invalid mutation")
	ErrClosed          = errors.New("engine closed")
)
