package storage

import (
	"errors"
	"fmt"
)

// Common storage errors
var (
	// ErrEntityNotFound indicates that entity does not exist or is deleted
	ErrEntityNotFound = errors.New("entity not found")

	// ErrVersionConflict indicates that expected version does not match the stored one
	ErrVersionConflict = errors.New("version conflict")

	// ErrSessionNotFound indicates that session was not found or expired
	ErrSessionNotFound = errors.New("session not found")
)

// VersionConflictError ошибка оптимистичной блокировки с текущей версией сущности.
// errors.Is(err, ErrVersionConflict) == true.
type VersionConflictError struct {
	Expected uint64
	Current  uint64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict: expected %d, current %d", e.Expected, e.Current)
}

// Is делает ошибку сравнимой с ErrVersionConflict
func (e *VersionConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}
