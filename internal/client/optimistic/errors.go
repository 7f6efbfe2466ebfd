package optimistic

import "errors"

var (
	ErrUpdateNotFound     = errors.New("optimistic update not found")
	ErrNotInRollbackQueue = errors.New("update is not in the rollback queue")
	ErrRetriesExhausted   = errors.New("retries exhausted")
	ErrUnknownCommand     = errors.New("unknown command")
)
