// Package api описывает JSON контракт между клиентом и эталонным сервером.
package api

// Пути HTTP API
const (
	PathSessions = "/api/v1/sessions"
	PathEntities = "/api/v1/entities"
	PathPush     = "/api/v1/push"
	PathSync     = "/api/v1/sync"
	PathHealth   = "/api/v1/health"
)

// Коды ошибок в ErrorResponse.Error
const (
	ErrCodeVersionConflict = "version_conflict"
	ErrCodeNotFound        = "not_found"
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeInternal        = "internal_error"
)

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // код ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
	// CurrentVersion текущая версия сущности при version_conflict
	CurrentVersion uint64 `json:"current_version,omitempty"`
}

// PathSessionCurrent сессия из токена запроса (DELETE отзывает её)
const PathSessionCurrent = PathSessions + "/current"
