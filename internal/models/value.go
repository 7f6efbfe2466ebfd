package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entity type константы для известных форм payload
const (
	EntityTypeDomain   = "domain"
	EntityTypeCampaign = "campaign"
	EntityTypePersona  = "persona"
	EntityTypeProxy    = "proxy"
)

// Value это закрытое множество известных форм payload (tagged union по типу сущности).
// Каждая реализация соответствует ровно одному entity type.
// Неизвестные формы отклоняются на границе транспорта (см. DecodeValue).
type Value interface {
	EntityType() string
	validate() error
}

// Versioned is implemented by payloads that may carry an explicit version.
// ok is false when the payload has no version field set.
type Versioned interface {
	PayloadVersion() (version uint64, ok bool)
}

// VersionOf returns the explicit payload version of v, if any.
func VersionOf(v Value) (uint64, bool) {
	if vv, ok := v.(Versioned); ok {
		return vv.PayloadVersion()
	}
	return 0, false
}

// DomainState состояние валидации домена внутри кампании.
type DomainState struct {
	Status     string  `json:"status"`               // Status общий статус: "pending", "validated", "error"
	DNSStatus  string  `json:"dnsStatus,omitempty"`  // DNSStatus результат DNS валидации
	HTTPStatus string  `json:"httpStatus,omitempty"` // HTTPStatus результат HTTP валидации
	LeadScore  float64 `json:"leadScore,omitempty"`  // LeadScore оценка лида
	Version    uint64  `json:"version,omitempty"`    // Version явная версия; 0 = не задана
}

func (DomainState) EntityType() string { return EntityTypeDomain }

func (d DomainState) PayloadVersion() (uint64, bool) { return d.Version, d.Version > 0 }

func (d DomainState) validate() error {
	if d.Status == "" {
		return fmt.Errorf("domain: status is required")
	}
	return nil
}

// CampaignState состояние кампании и её текущей фазы.
type CampaignState struct {
	Name     string  `json:"name"`
	Status   string  `json:"status"`             // Status "pending", "running", "paused", "completed", ...
	Phase    string  `json:"phase,omitempty"`    // Phase текущая фаза: "generation", "dns_validation", ...
	Progress float64 `json:"progress,omitempty"` // Progress прогресс фазы в процентах
	Version  uint64  `json:"version,omitempty"`
}

func (CampaignState) EntityType() string { return EntityTypeCampaign }

func (c CampaignState) PayloadVersion() (uint64, bool) { return c.Version, c.Version > 0 }

func (c CampaignState) validate() error {
	if c.Status == "" {
		return fmt.Errorf("campaign: status is required")
	}
	if c.Progress < 0 || c.Progress > 100 {
		return fmt.Errorf("campaign: progress %v out of range", c.Progress)
	}
	return nil
}

// PersonaState описание персоны (DNS или HTTP).
type PersonaState struct {
	Name        string `json:"name"`
	PersonaType string `json:"personaType,omitempty"` // PersonaType "dns" или "http"
	Enabled     bool   `json:"enabled"`
	Version     uint64 `json:"version,omitempty"`
}

func (PersonaState) EntityType() string { return EntityTypePersona }

func (p PersonaState) PayloadVersion() (uint64, bool) { return p.Version, p.Version > 0 }

func (p PersonaState) validate() error {
	if p.Name == "" {
		return fmt.Errorf("persona: name is required")
	}
	return nil
}

// ProxyState состояние прокси из пула.
type ProxyState struct {
	Address string `json:"address"`
	Status  string `json:"status,omitempty"`
	Healthy bool   `json:"healthy"`
	Version uint64 `json:"version,omitempty"`
}

func (ProxyState) EntityType() string { return EntityTypeProxy }

func (p ProxyState) PayloadVersion() (uint64, bool) { return p.Version, p.Version > 0 }

func (p ProxyState) validate() error {
	if p.Address == "" {
		return fmt.Errorf("proxy: address is required")
	}
	return nil
}

// KnownEntityType reports whether entityType has a registered payload shape.
func KnownEntityType(entityType string) bool {
	switch entityType {
	case EntityTypeDomain, EntityTypeCampaign, EntityTypePersona, EntityTypeProxy:
		return true
	}
	return false
}

// DecodeValue декодирует payload для заданного типа сущности.
// Неизвестный тип, лишние поля и невалидные значения возвращают ErrUnknownPayload.
func DecodeValue(entityType string, raw json.RawMessage) (Value, error) {
	var v Value
	var err error

	switch entityType {
	case EntityTypeDomain:
		var d DomainState
		err = decodeStrict(raw, &d)
		v = d
	case EntityTypeCampaign:
		var c CampaignState
		err = decodeStrict(raw, &c)
		v = c
	case EntityTypePersona:
		var p PersonaState
		err = decodeStrict(raw, &p)
		v = p
	case EntityTypeProxy:
		var p ProxyState
		err = decodeStrict(raw, &p)
		v = p
	default:
		return nil, fmt.Errorf("%w: entity type %q", ErrUnknownPayload, entityType)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownPayload, entityType, err)
	}
	if err := v.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownPayload, err)
	}

	return v, nil
}

// EncodeValue сериализует payload в JSON.
func EncodeValue(v Value) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if err := v.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownPayload, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return data, nil
}

// ValidateValue checks that v is a well-formed payload for entityType.
func ValidateValue(entityType string, v Value) error {
	if v == nil {
		return fmt.Errorf("%w: nil payload", ErrUnknownPayload)
	}
	if v.EntityType() != entityType {
		return fmt.Errorf("%w: payload for %q used with entity type %q", ErrUnknownPayload, v.EntityType(), entityType)
	}
	if err := v.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownPayload, err)
	}
	return nil
}

func decodeStrict(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("empty payload")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
