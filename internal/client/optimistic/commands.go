package optimistic

import (
	"context"
	"fmt"
	"sync"

	"github.com/iudanet/gophsync/internal/models"
)

// CommandFunc исполняет команду отката или повтора.
type CommandFunc func(ctx context.Context, cmd models.Command) error

// Commands реестр обработчиков команд по имени.
// Команды хранятся как данные (models.Command), обработчик находится при исполнении.
type Commands struct {
	handlers map[string]CommandFunc
	mu       sync.RWMutex
}

// NewCommands creates an empty command registry.
func NewCommands() *Commands {
	return &Commands{handlers: make(map[string]CommandFunc)}
}

// Register регистрирует обработчик команды name, заменяя предыдущий.
func (c *Commands) Register(name string, fn CommandFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[name] = fn
}

// Execute исполняет команду. nil команда ничего не делает.
func (c *Commands) Execute(ctx context.Context, cmd *models.Command) error {
	if cmd == nil {
		return nil
	}

	c.mu.RLock()
	fn, ok := c.handlers[cmd.Name]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
	}

	if err := fn(ctx, *cmd); err != nil {
		return fmt.Errorf("command %s for %s: %w", cmd.Name, cmd.Key, err)
	}
	return nil
}
