package api

import (
	"encoding/json"
	"time"
)

// Entity представляет сущность в авторитетном хранилище
type Entity struct {
	UpdatedAt time.Time       `json:"updated_at"` // время фиксации изменения сервером
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload,omitempty"` // пустой для удалённой сущности
	Version   uint64          `json:"version"`           // монотонная версия, назначенная сервером
	Deleted   bool            `json:"deleted,omitempty"`
}

// PutEntityRequest представляет запрос на создание или изменение сущности
type PutEntityRequest struct {
	Payload json.RawMessage `json:"payload"`
	// ExpectedVersion версия, на основе которой сделано изменение; 0 = без проверки
	ExpectedVersion uint64 `json:"expected_version,omitempty"`
}

// ListEntitiesResponse представляет список сущностей одного типа
type ListEntitiesResponse struct {
	Entities []Entity `json:"entities"`
}

// PushEvent событие push-канала: зафиксированное сервером изменение сущности
type PushEvent struct {
	Entity Entity `json:"entity"`
	// Origin идентификатор сессии, изменившей сущность
	Origin string `json:"origin,omitempty"`
}
