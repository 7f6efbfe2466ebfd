package models

import (
	"fmt"
	"strings"
)

// EntityKey идентифицирует изменяемый ресурс: тип сущности + её идентификатор.
type EntityKey struct {
	Type string `json:"type"` // Type тип сущности: "domain", "campaign", "persona", "proxy"
	ID   string `json:"id"`   // ID идентификатор сущности внутри типа
}

// NewEntityKey creates a key for the given entity type and id.
func NewEntityKey(entityType, id string) EntityKey {
	return EntityKey{Type: entityType, ID: id}
}

// String возвращает ключ в формате "type:id".
func (k EntityKey) String() string {
	return k.Type + ":" + k.ID
}

// IsZero reports whether the key is empty.
func (k EntityKey) IsZero() bool {
	return k.Type == "" && k.ID == ""
}

// Validate проверяет, что обе части ключа заполнены.
func (k EntityKey) Validate() error {
	if k.Type == "" {
		return fmt.Errorf("%w: empty entity type", ErrInvalidKey)
	}
	if k.ID == "" {
		return fmt.Errorf("%w: empty entity id", ErrInvalidKey)
	}
	if strings.Contains(k.Type, ":") {
		return fmt.Errorf("%w: entity type %q contains ':'", ErrInvalidKey, k.Type)
	}
	return nil
}

// ParseEntityKey разбирает строку вида "type:id".
// Идентификатор может содержать ':', разделителем считается первое вхождение.
func ParseEntityKey(s string) (EntityKey, error) {
	entityType, id, ok := strings.Cut(s, ":")
	if !ok {
		return EntityKey{}, fmt.Errorf("%w: %q is not in type:id form", ErrInvalidKey, s)
	}
	key := EntityKey{Type: entityType, ID: id}
	if err := key.Validate(); err != nil {
		return EntityKey{}, err
	}
	return key, nil
}

// Operation вид мутации.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// Mutating reports whether the operation can overwrite existing state.
func (op Operation) Mutating() bool {
	return op == OperationUpdate || op == OperationDelete
}

// Source источник мутации.
type Source string

const (
	// SourceLocal запрос/ответ, инициированный текущим экземпляром (REST)
	SourceLocal Source = "local"
	// SourceRemote push-уведомление от сервера или другого экземпляра
	SourceRemote Source = "remote"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceLocal || s == SourceRemote
}
