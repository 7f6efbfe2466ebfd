package models

import (
	"encoding/json"
	"fmt"
)

// MessageKind тип сообщения между экземплярами.
type MessageKind string

const (
	MessageUpdate     MessageKind = "update"
	MessageInvalidate MessageKind = "invalidate"
	MessageRollback   MessageKind = "rollback"
)

// Valid reports whether k is a known message kind.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageUpdate, MessageInvalidate, MessageRollback:
		return true
	}
	return false
}

// SyncMessage контракт между экземплярами одной сессии.
// После отправки не изменяется.
type SyncMessage struct {
	Payload    Value       // Payload nil допустим только для Invalidate
	Kind       MessageKind // Kind update | invalidate | rollback
	EntityType string
	EntityID   string // EntityID пустой = все сущности типа (только для Invalidate)
	OriginID   string // OriginID идентификатор экземпляра-отправителя
	Version    uint64 // Version версия кэша у отправителя; 0 = неизвестна
	Timestamp  int64  // Timestamp Unix миллисекунды
}

// Key returns the entity key addressed by the message.
func (m SyncMessage) Key() EntityKey {
	return EntityKey{Type: m.EntityType, ID: m.EntityID}
}

// wireMessage JSON представление SyncMessage
type wireMessage struct {
	Kind       MessageKind     `json:"kind"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Version    uint64          `json:"version,omitempty"`
	Timestamp  int64           `json:"timestamp"`
	OriginID   string          `json:"originId"`
}

// Validate проверяет структурную корректность сообщения.
func (m SyncMessage) Validate() error {
	if !m.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	}
	if m.EntityType == "" {
		return fmt.Errorf("%w: empty entity type", ErrInvalidMessage)
	}
	if !KnownEntityType(m.EntityType) {
		return fmt.Errorf("%w: entity type %q", ErrUnknownPayload, m.EntityType)
	}
	if m.OriginID == "" {
		return fmt.Errorf("%w: empty origin id", ErrInvalidMessage)
	}

	switch m.Kind {
	case MessageUpdate, MessageRollback:
		if m.EntityID == "" {
			return fmt.Errorf("%w: %s requires entity id", ErrInvalidMessage, m.Kind)
		}
		// Rollback без payload означает, что до обновления сущности не было
		if m.Payload == nil && m.Kind == MessageUpdate {
			return fmt.Errorf("%w: update requires payload", ErrInvalidMessage)
		}
	case MessageInvalidate:
		if m.Payload != nil {
			return fmt.Errorf("%w: invalidate carries no payload", ErrInvalidMessage)
		}
	}

	if m.Payload != nil {
		if err := ValidateValue(m.EntityType, m.Payload); err != nil {
			return err
		}
	}

	return nil
}

// MarshalJSON encodes the message in its wire form.
func (m SyncMessage) MarshalJSON() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	payload, err := EncodeValue(m.Payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(wireMessage{
		Kind:       m.Kind,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Payload:    payload,
		Version:    m.Version,
		Timestamp:  m.Timestamp,
		OriginID:   m.OriginID,
	})
}

// UnmarshalJSON декодирует сообщение и валидирует payload по типу сущности.
func (m *SyncMessage) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	msg := SyncMessage{
		Kind:       w.Kind,
		EntityType: w.EntityType,
		EntityID:   w.EntityID,
		Version:    w.Version,
		Timestamp:  w.Timestamp,
		OriginID:   w.OriginID,
	}

	if len(w.Payload) > 0 && string(w.Payload) != "null" {
		v, err := DecodeValue(w.EntityType, w.Payload)
		if err != nil {
			return err
		}
		msg.Payload = v
	}

	if err := msg.Validate(); err != nil {
		return err
	}

	*m = msg
	return nil
}
