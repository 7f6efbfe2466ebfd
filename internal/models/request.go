package models

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID идентификатор отслеживаемого запроса (ULID, сортируется по времени создания).
type RequestID string

// UpdateID идентификатор оптимистичного обновления.
type UpdateID string

// NewRequestID генерирует новый RequestID.
func NewRequestID() RequestID {
	return RequestID(ulid.Make().String())
}

// NewUpdateID генерирует новый UpdateID.
func NewUpdateID() UpdateID {
	return UpdateID(ulid.Make().String())
}

// RequestRecord запись о мутации в процессе выполнения.
// После создания меняется только флаг Completed (и Success).
type RequestRecord struct {
	Timestamp time.Time `json:"timestamp"` // Timestamp момент начала мутации
	ID        RequestID `json:"id"`
	Key       EntityKey `json:"entity"`
	Operation Operation `json:"operation"`
	Source    Source    `json:"source"`
	Completed bool      `json:"completed"`
	Success   bool      `json:"success"` // Success результат, валиден только при Completed
}

// Active reports whether the request is still in flight.
func (r RequestRecord) Active() bool {
	return !r.Completed
}

// CacheEntry последнее известное авторитетное значение сущности.
type CacheEntry struct {
	WrittenAt time.Time     `json:"written_at"`
	Value     Value         `json:"-"`
	TTL       time.Duration `json:"ttl"`
	Version   uint64        `json:"version"` // Version монотонно неубывающая версия ключа
}

// Expired reports whether the entry is older than its TTL at now.
// A zero TTL never expires.
func (e CacheEntry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Sub(e.WrittenAt) > e.TTL
}

// IsNewerThan сравнивает две записи по правилу LWW:
// 1. Сначала сравнивается Timestamp (больший выигрывает)
// 2. При равных Timestamp сравнивается ID (ULID, лексикографически) для детерминизма
func (r RequestRecord) IsNewerThan(other RequestRecord) bool {
	if r.Timestamp.After(other.Timestamp) {
		return true
	}
	if r.Timestamp.Before(other.Timestamp) {
		return false
	}
	return r.ID > other.ID
}
