// Package subscribers хранит подписки на изменения сущностей по типу.
package subscribers

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/iudanet/gophsync/internal/metrics"
	"github.com/iudanet/gophsync/internal/models"
)

// Callback получает ключ и новое значение (nil, если сущность удалена или откачена к отсутствию).
type Callback func(key models.EntityKey, value models.Value)

type subscription struct {
	cb Callback
	id uint64
}

// Registry реестр подписчиков.
// Паника в одном подписчике логируется и не мешает остальным.
type Registry struct {
	logger *slog.Logger
	byType map[string][]subscription
	nextID uint64
	mu     sync.RWMutex
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger,
		byType: make(map[string][]subscription),
	}
}

// Subscribe регистрирует callback на изменения сущностей entityType.
// Возвращает функцию отписки; повторный вызов безопасен.
func (r *Registry) Subscribe(entityType string, cb Callback) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.byType[entityType] = append(r.byType[entityType], subscription{id: id, cb: cb})

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(entityType, id) })
	}
}

// Count returns the number of callbacks registered for entityType.
func (r *Registry) Count(entityType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType[entityType])
}

// Notify вызывает подписчиков типа key.Type в порядке регистрации.
// Вызывается без удержания блокировок: подписчик может подписываться и отписываться.
func (r *Registry) Notify(key models.EntityKey, value models.Value) {
	r.mu.RLock()
	subs := make([]subscription, len(r.byType[key.Type]))
	copy(subs, r.byType[key.Type])
	r.mu.RUnlock()

	for _, s := range subs {
		r.call(s, key, value)
	}
}

func (r *Registry) call(s subscription, key models.EntityKey, value models.Value) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.SubscriberPanics.WithLabelValues(key.Type).Inc()
			r.logger.Error("Subscriber panicked",
				"entity", key.String(),
				"subscription", s.id,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
		}
	}()
	s.cb(key, value)
}

func (r *Registry) remove(entityType string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.byType[entityType]
	for i, s := range subs {
		if s.id == id {
			r.byType[entityType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(r.byType[entityType]) == 0 {
		delete(r.byType, entityType)
	}
}
