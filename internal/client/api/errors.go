package api

import (
	"errors"
	"fmt"

	"github.com/iudanet/gophsync/pkg/api"
)

var (
	// ErrVersionConflict ожидаемая версия не совпала с версией на сервере
	ErrVersionConflict = errors.New("version conflict")
	// ErrNotFound сущность или сессия не найдена
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized токен отсутствует, истёк или сессия отозвана
	ErrUnauthorized = errors.New("unauthorized")
)

// ServerError ответ сервера с кодом ошибки.
// errors.Is сопоставляет его с ErrVersionConflict, ErrNotFound и ErrUnauthorized по коду.
type ServerError struct {
	Code           string
	Message        string
	StatusCode     int
	CurrentVersion uint64 // для version_conflict
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("server error (%d): %s: %s", e.StatusCode, e.Code, e.Message)
}

// Is maps server error codes to the package sentinels.
func (e *ServerError) Is(target error) bool {
	switch target {
	case ErrVersionConflict:
		return e.Code == api.ErrCodeVersionConflict
	case ErrNotFound:
		return e.Code == api.ErrCodeNotFound
	case ErrUnauthorized:
		return e.Code == api.ErrCodeUnauthorized
	}
	return false
}
