package broadcast

import (
	"context"
	"log/slog"
	"time"

	"github.com/iudanet/gophsync/internal/models"
)

// Store кэш, в который применяются входящие сообщения.
type Store interface {
	Put(key models.EntityKey, value models.Value, version uint64) bool
	Set(key models.EntityKey, value models.Value) uint64
	Delete(key models.EntityKey) bool
	InvalidateType(entityType string) int
}

// Notifier уведомляет подписчиков.
type Notifier interface {
	Notify(key models.EntityKey, value models.Value)
}

// Arbiter решает, не устарело ли входящее обновление относительно локальных запросов.
type Arbiter interface {
	ShouldProcessPushUpdate(key models.EntityKey, pushTime time.Time) bool
}

// Applier применяет входящие сообщения к кэшу:
// Update пишет значение и уведомляет подписчиков, Invalidate удаляет запись ключа
// (или все записи типа), Rollback пишет восстановленное значение.
type Applier struct {
	store    Store
	notifier Notifier
	arbiter  Arbiter
	logger   *slog.Logger
}

// NewApplier creates an applier. arbiter may be nil to accept every update.
func NewApplier(store Store, notifier Notifier, arbiter Arbiter, logger *slog.Logger) *Applier {
	return &Applier{store: store, notifier: notifier, arbiter: arbiter, logger: logger}
}

// Handle implements Handler.
func (a *Applier) Handle(_ context.Context, msg models.SyncMessage) {
	a.Apply(msg)
}

// Apply применяет сообщение и сообщает, изменился ли кэш.
func (a *Applier) Apply(msg models.SyncMessage) bool {
	key := msg.Key()

	switch msg.Kind {
	case models.MessageUpdate:
		if a.arbiter != nil && !a.arbiter.ShouldProcessPushUpdate(key, MessageTime(msg)) {
			a.logger.Debug("Sync update older than in-flight local request", "entity", key.String(), "origin", msg.OriginID)
			return false
		}
		return a.write(key, msg)

	case models.MessageRollback:
		return a.write(key, msg)

	case models.MessageInvalidate:
		if msg.EntityID == "" {
			removed := a.store.InvalidateType(msg.EntityType)
			a.logger.Debug("Entity type invalidated", "entity_type", msg.EntityType, "removed", removed)
			return removed > 0
		}
		if !a.store.Delete(key) {
			return false
		}
		a.notifier.Notify(key, nil)
		return true
	}
	return false
}

func (a *Applier) write(key models.EntityKey, msg models.SyncMessage) bool {
	if msg.Version > 0 {
		if !a.store.Put(key, msg.Payload, msg.Version) {
			a.logger.Debug("Stale sync message ignored",
				"entity", key.String(),
				"kind", msg.Kind,
				"version", msg.Version,
			)
			return false
		}
	} else {
		a.store.Set(key, msg.Payload)
	}
	a.notifier.Notify(key, msg.Payload)
	return true
}
