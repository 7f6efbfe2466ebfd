// Package engine собирает компоненты движка согласованности в один объект,
// создаваемый при старте приложения и закрываемый при завершении.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/gophsync/internal/client/broadcast"
	"github.com/iudanet/gophsync/internal/client/cache"
	"github.com/iudanet/gophsync/internal/client/gate"
	"github.com/iudanet/gophsync/internal/client/optimistic"
	"github.com/iudanet/gophsync/internal/client/subscribers"
	"github.com/iudanet/gophsync/internal/client/tracker"
	"github.com/iudanet/gophsync/internal/conflict"
	"github.com/iudanet/gophsync/internal/metrics"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/schedule"
)

// Config параметры движка.
type Config struct {
	Tracker            tracker.Config
	Optimistic         optimistic.Config
	CacheTTL           time.Duration
	CacheSweepInterval time.Duration
	DedupTTL           time.Duration
	DedupSize          int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Tracker:            tracker.DefaultConfig(),
		Optimistic:         optimistic.DefaultConfig(),
		CacheTTL:           5 * time.Minute,
		CacheSweepInterval: 30 * time.Second,
		DedupTTL:           gate.DefaultDedupTTL,
		DedupSize:          256,
	}
}

// SnapshotStore сохраняет снимок кэша между запусками.
//
//go:generate moq -out snapshot_mock.go . SnapshotStore
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, records []cache.Record) error
	LoadSnapshot(ctx context.Context) ([]cache.Record, error)
}

// Deps внешние зависимости движка. Все поля необязательны.
type Deps struct {
	Scheduler schedule.Scheduler
	// Transport транспорт между экземплярами сессии; nil = экземпляр работает один
	Transport broadcast.Transport
	Snapshots SnapshotStore
	Resolvers *conflict.Registry
	Logger    *slog.Logger
	// OriginID идентификатор экземпляра; пустой = случайный UUID
	OriginID string
}

// Engine контекстный объект движка: кэш, трекер запросов, менеджер оптимистичных обновлений,
// рассылка между экземплярами, debounce и дедупликация.
type Engine struct {
	sched       schedule.Scheduler
	logger      *slog.Logger
	cache       *cache.Cache
	tracker     *tracker.Tracker
	resolvers   *conflict.Registry
	subscribers *subscribers.Registry
	optimistic  *optimistic.Manager
	broadcaster *broadcast.Broadcaster
	debouncer   *gate.Debouncer
	dedup       *gate.Deduplicator
	snapshots   SnapshotStore
	tasks       []schedule.Task
	cleanup     []func()
	cfg         Config
	mu          sync.Mutex
	started     bool
	closed      bool
}

// New creates the engine. Nothing runs until Start.
func New(cfg Config, deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sched := deps.Scheduler
	if sched == nil {
		sched = schedule.System{}
	}
	resolvers := deps.Resolvers
	if resolvers == nil {
		resolvers = conflict.NewRegistry()
	}

	e := &Engine{
		cfg:       cfg,
		sched:     sched,
		logger:    logger,
		resolvers: resolvers,
		snapshots: deps.Snapshots,
	}

	e.cache = cache.New(sched, cfg.CacheTTL)
	e.subscribers = subscribers.New(logger.With("component", "subscribers"))
	e.tracker = tracker.New(cfg.Tracker, sched, e.cache, resolvers, logger.With("component", "tracker"))

	var publisher optimistic.Publisher
	if deps.Transport != nil {
		origin := deps.OriginID
		if origin == "" {
			e.broadcaster = broadcast.New(deps.Transport, sched, logger.With("component", "broadcast"))
		} else {
			e.broadcaster = broadcast.NewWithOrigin(origin, deps.Transport, sched, logger.With("component", "broadcast"))
		}
		publisher = e.broadcaster
	}

	e.optimistic = optimistic.New(cfg.Optimistic, sched, e.cache, e.subscribers, publisher, nil, logger.With("component", "optimistic"))
	e.debouncer = gate.NewDebouncer(sched)
	e.dedup = gate.NewDeduplicator(sched, cfg.DedupTTL, cfg.DedupSize)
	return e
}

// Start восстанавливает снимок кэша, запускает периодические задачи и подписку на транспорт.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.started {
		return nil
	}

	if e.snapshots != nil {
		records, err := e.snapshots.LoadSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("failed to load cache snapshot: %w", err)
		}
		restored := e.cache.Restore(records)
		e.logger.Info("Cache snapshot restored", "records", len(records), "values", restored)
	}

	e.tasks = append(e.tasks, schedule.Every(e.sched, e.cfg.CacheSweepInterval, func() {
		if removed := e.cache.Sweep(); removed > 0 {
			e.logger.Debug("Cache sweep", "removed", removed)
		}
	}))
	e.optimistic.Start(ctx)

	if e.broadcaster != nil {
		applier := broadcast.NewApplier(e.cache, e.subscribers, e.tracker, e.logger.With("component", "applier"))
		e.cleanup = append(e.cleanup, e.broadcaster.OnMessage(applier.Handle))
		e.broadcaster.Start()
		e.cleanup = append(e.cleanup, e.broadcaster.Stop)
	}

	e.started = true
	e.logger.Info("Engine started", "origin", e.OriginID())
	return nil
}

// Close отменяет все запланированные задачи, отписывается от транспорта и сохраняет снимок кэша.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	tasks := e.tasks
	cleanup := e.cleanup
	e.tasks, e.cleanup = nil, nil
	e.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
	e.optimistic.Stop()
	e.debouncer.Stop()
	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}

	if e.snapshots != nil {
		if err := e.snapshots.SaveSnapshot(context.Background(), e.cache.Snapshot()); err != nil {
			return fmt.Errorf("failed to save cache snapshot: %w", err)
		}
	}
	e.logger.Info("Engine closed")
	return nil
}

// OriginID returns the instance id used for cross-instance messages ("" without a transport).
func (e *Engine) OriginID() string {
	if e.broadcaster == nil {
		return ""
	}
	return e.broadcaster.OriginID()
}

// Get возвращает свежее значение сущности из кэша.
func (e *Engine) Get(key models.EntityKey) (models.Value, bool) {
	return e.cache.Value(key)
}

// Entry возвращает запись кэша вместе с версией.
func (e *Engine) Entry(key models.EntityKey) (models.CacheEntry, bool) {
	return e.cache.Get(key)
}

// Subscribe регистрирует callback на изменения сущностей entityType.
func (e *Engine) Subscribe(entityType string, cb subscribers.Callback) func() {
	return e.subscribers.Subscribe(entityType, cb)
}

// RegisterResolver устанавливает стратегию разрешения конфликтов для типа сущности.
func (e *Engine) RegisterResolver(entityType string, r conflict.Resolver) {
	e.resolvers.Register(entityType, r)
}

// OnConflict устанавливает обработчик разрешённых конфликтов (включая требующие ручного разрешения).
func (e *Engine) OnConflict(h tracker.ConflictHandler) {
	e.tracker.OnConflict(h)
}

// Commands returns the registry of rollback and retry command handlers.
func (e *Engine) Commands() *optimistic.Commands {
	return e.optimistic.Commands()
}

// Tracker returns the request tracker.
func (e *Engine) Tracker() *tracker.Tracker {
	return e.tracker
}

// Optimistic returns the optimistic update manager.
func (e *Engine) Optimistic() *optimistic.Manager {
	return e.optimistic
}

// Cache returns the TTL cache.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// Dedup returns the request deduplicator.
func (e *Engine) Dedup() *gate.Deduplicator {
	return e.dedup
}

// Debounce откладывает action для key, отменяя предыдущий запланированный вызов.
func (e *Engine) Debounce(key string, delay time.Duration, action func()) {
	e.debouncer.Debounce(key, delay, action)
}

// Retry повторяет обновление из очереди откатов.
func (e *Engine) Retry(ctx context.Context, id models.UpdateID) (bool, error) {
	return e.optimistic.Retry(ctx, id)
}

// Invalidate удаляет запись ключа (id пустой = все записи типа) и рассылает инвалидацию.
func (e *Engine) Invalidate(ctx context.Context, entityType, id string) error {
	key := models.NewEntityKey(entityType, id)
	if id == "" {
		e.cache.InvalidateType(entityType)
	} else if e.cache.Delete(key) {
		e.subscribers.Notify(key, nil)
	}

	if e.broadcaster == nil {
		return nil
	}
	return e.broadcaster.Publish(ctx, models.SyncMessage{
		Kind:       models.MessageInvalidate,
		EntityType: entityType,
		EntityID:   id,
	})
}

// commit записывает подтверждённое значение без оптимистичного обновления:
// продвигает версию, уведомляет подписчиков и рассылает результат.
func (e *Engine) commit(ctx context.Context, key models.EntityKey, value models.Value, cause string, hint uint64) uint64 {
	version := e.cache.Commit(key, value, cause, hint)
	e.subscribers.Notify(key, value)

	if e.broadcaster != nil {
		msg := models.SyncMessage{
			Kind:       models.MessageUpdate,
			EntityType: key.Type,
			EntityID:   key.ID,
			Payload:    value,
			Version:    version,
		}
		if value == nil {
			msg.Kind, msg.Version = models.MessageInvalidate, 0
		}
		if err := e.broadcaster.Publish(ctx, msg); err != nil {
			e.logger.Warn("Failed to publish sync message", "entity", key.String(), "error", err)
		}
	}
	return version
}

func isNotFound(err error) bool {
	return errors.Is(err, optimistic.ErrUpdateNotFound)
}

func countRejected(key models.EntityKey, channel string) {
	metrics.ArbitrationRejected.WithLabelValues(key.Type, channel).Inc()
}
