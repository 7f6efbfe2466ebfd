package models

import (
	"encoding/json"
	"time"
)

// EntityRecord авторитетная запись сущности на сервере.
// Payload хранится как есть в JSON; форма проверяется при записи через DecodeValue.
type EntityRecord struct {
	UpdatedAt time.Time       `json:"updated_at"` // UpdatedAt каноническое время фиксации
	Payload   json.RawMessage `json:"payload,omitempty"`
	Key       EntityKey       `json:"entity"`
	Version   uint64          `json:"version"` // Version монотонная версия, назначенная сервером
	Deleted   bool            `json:"deleted"`
	// Created запись создала сущность (впервые или после удаления); не сохраняется
	Created bool `json:"-"`
}
