package models

import (
	"encoding/json"
	"time"
)

// UpdateState состояние оптимистичного обновления.
type UpdateState string

const (
	UpdatePending    UpdateState = "pending"
	UpdateConfirmed  UpdateState = "confirmed"
	UpdateRolledBack UpdateState = "rolled_back"
	UpdateExpired    UpdateState = "expired"
)

// Command сериализуемая команда отката или повтора.
// Заменяет захваченные замыкания: менеджер хранит команду, может вывести её в диагностику
// и выполнить через зарегистрированный обработчик с именем Name.
type Command struct {
	Name string          `json:"name"`
	Key  EntityKey       `json:"entity"`
	Args json.RawMessage `json:"args,omitempty"`
}

// NewCommand создаёт команду с аргументами, сериализованными в JSON.
func NewCommand(name string, key EntityKey, args any) (*Command, error) {
	cmd := &Command{Name: name, Key: key}
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		cmd.Args = data
	}
	return cmd, nil
}

// OptimisticUpdate спекулятивное локальное изменение, ожидающее подтверждения.
type OptimisticUpdate struct {
	Timestamp   time.Time   `json:"timestamp"`
	Speculative Value       `json:"-"`
	Prior       Value       `json:"-"` // Prior значение до обновления; nil = сущности не было в кэше
	Rollback    *Command    `json:"rollback,omitempty"`
	Retry       *Command    `json:"retry,omitempty"`
	ID          UpdateID    `json:"id"`
	RequestID   RequestID   `json:"request_id,omitempty"` // RequestID связанный запрос трекера
	Key         EntityKey   `json:"entity"`
	Operation   Operation   `json:"operation"`
	State       UpdateState `json:"state"`
	Reason      string      `json:"reason,omitempty"` // Reason причина отката
	MaxRetries  int         `json:"max_retries"`
	Retries     int         `json:"retries"`
	// Sequence порядок применения внутри менеджера
	Sequence uint64 `json:"sequence"`
}

// CanRetry reports whether another retry attempt is allowed.
func (u *OptimisticUpdate) CanRetry() bool {
	return u.Retry != nil && u.Retries < u.MaxRetries
}
