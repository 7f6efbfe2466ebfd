// Package optimistic применяет спекулятивные локальные изменения до ответа авторитета
// и затем подтверждает или откатывает их.
package optimistic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/gophsync/internal/metrics"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/schedule"
)

// Config параметры менеджера.
type Config struct {
	// LoopThreshold сколько ожидающих обновлений одного ключа допускается в LoopWindow
	LoopThreshold int
	LoopWindow    time.Duration
	MaxRetries    int
	// ExpireAfter возраст, после которого ожидающее обновление откатывается с причиной "expired"
	ExpireAfter   time.Duration
	SweepInterval time.Duration
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		LoopThreshold: 5,
		LoopWindow:    time.Second,
		MaxRetries:    3,
		ExpireAfter:   5 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// ReasonExpired причина принудительного отката устаревшего обновления.
const ReasonExpired = "expired"

// Store кэш, в который пишутся спекулятивные и подтверждённые значения.
type Store interface {
	Value(key models.EntityKey) (models.Value, bool)
	Version(key models.EntityKey) uint64
	Set(key models.EntityKey, value models.Value) uint64
	Commit(key models.EntityKey, value models.Value, cause string, hint uint64) uint64
	Advance(key models.EntityKey, cause string, hint uint64) uint64
}

// Notifier уведомляет подписчиков об изменении значения.
type Notifier interface {
	Notify(key models.EntityKey, value models.Value)
}

// Publisher рассылает сообщения другим экземплярам сессии.
//
//go:generate moq -out publisher_mock.go . Publisher
type Publisher interface {
	Publish(ctx context.Context, msg models.SyncMessage) error
}

// Input параметры нового оптимистичного обновления.
type Input struct {
	// Speculative новое значение; nil для удаления
	Speculative models.Value
	Rollback    *models.Command
	Retry       *models.Command
	RequestID   models.RequestID
	Key         models.EntityKey
	Operation   models.Operation
	// MaxRetries 0 означает значение из Config
	MaxRetries int
}

// Manager менеджер оптимистичных обновлений.
type Manager struct {
	ctx       context.Context
	clock     schedule.Scheduler
	store     Store
	notifier  Notifier
	publisher Publisher
	commands  *Commands
	logger    *slog.Logger
	sweep     schedule.Task
	pending   map[models.UpdateID]*models.OptimisticUpdate
	queue     map[models.UpdateID]*models.OptimisticUpdate
	cfg       Config
	seq       uint64
	mu        sync.Mutex
}

// New creates a manager. publisher may be nil when the instance runs alone.
func New(cfg Config, sched schedule.Scheduler, store Store, notifier Notifier, publisher Publisher, commands *Commands, logger *slog.Logger) *Manager {
	if commands == nil {
		commands = NewCommands()
	}
	return &Manager{
		ctx:       context.Background(),
		cfg:       cfg,
		clock:     sched,
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		commands:  commands,
		logger:    logger,
		pending:   make(map[models.UpdateID]*models.OptimisticUpdate),
		queue:     make(map[models.UpdateID]*models.OptimisticUpdate),
	}
}

// Commands returns the command registry used for rollback and retry actions.
func (m *Manager) Commands() *Commands {
	return m.commands
}

// Start запускает периодическую проверку устаревших обновлений.
// ctx используется для команд отката, исполняемых проверкой.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sweep != nil {
		return
	}
	m.ctx = ctx
	m.sweep = schedule.Every(m.clock, m.cfg.SweepInterval, m.ExpireStale)
}

// Stop отменяет периодическую проверку.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sweep != nil {
		m.sweep.Stop()
		m.sweep = nil
	}
}

// Apply записывает спекулятивное значение в кэш, синхронно уведомляет подписчиков
// и рассылает Update другим экземплярам.
// Второе значение false, если сработала защита от циклов: обновление не применено.
func (m *Manager) Apply(ctx context.Context, in Input) (models.UpdateID, bool) {
	now := m.clock.Now()

	m.mu.Lock()
	recent := 0
	for _, u := range m.pending {
		if u.Key == in.Key && now.Sub(u.Timestamp) < m.cfg.LoopWindow {
			recent++
		}
	}
	if recent >= m.cfg.LoopThreshold {
		m.mu.Unlock()
		metrics.RequestsDropped.WithLabelValues(in.Key.Type, "optimistic").Inc()
		m.logger.Warn("Loop guard: optimistic update not applied",
			"entity", in.Key.String(),
			"pending", recent,
			"window", m.cfg.LoopWindow,
		)
		return "", false
	}

	prior, _ := m.store.Value(in.Key)
	m.seq++
	maxRetries := in.MaxRetries
	if maxRetries <= 0 {
		maxRetries = m.cfg.MaxRetries
	}
	update := &models.OptimisticUpdate{
		ID:          models.NewUpdateID(),
		RequestID:   in.RequestID,
		Key:         in.Key,
		Operation:   in.Operation,
		Speculative: in.Speculative,
		Prior:       prior,
		Timestamp:   now,
		Rollback:    in.Rollback,
		Retry:       in.Retry,
		MaxRetries:  maxRetries,
		State:       models.UpdatePending,
		Sequence:    m.seq,
	}
	m.pending[update.ID] = update
	// Запись в кэш под блокировкой менеджера: prior и спекулятивное значение
	// не перемешиваются с параллельным Apply того же ключа
	version := m.store.Set(in.Key, in.Speculative)
	m.mu.Unlock()

	metrics.OptimisticUpdates.WithLabelValues(in.Key.Type, "applied").Inc()
	m.notifier.Notify(in.Key, in.Speculative)
	m.publish(ctx, in.Key, in.Speculative, version, models.MessageUpdate)

	m.logger.Debug("Optimistic update applied",
		"update", update.ID,
		"entity", in.Key.String(),
		"operation", in.Operation,
	)
	return update.ID, true
}

// Confirm подтверждает обновление. authoritative nil оставляет спекулятивное значение;
// hint версия, назначенная авторитетом (0 = неизвестна).
// Версия ключа продвигается ровно на один шаг вместе с завершением связанного запроса трекера.
func (m *Manager) Confirm(ctx context.Context, id models.UpdateID, authoritative models.Value, hint uint64) (uint64, error) {
	m.mu.Lock()
	update, ok := m.pending[id]
	if !ok {
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrUpdateNotFound, id)
	}
	delete(m.pending, id)
	update.State = models.UpdateConfirmed

	value := update.Speculative
	if authoritative != nil {
		value = authoritative
	}
	cause := string(update.RequestID)
	if cause == "" {
		cause = string(update.ID)
	}
	// Более позднее ожидающее обновление остаётся в кэше; подтверждённое значение
	// становится для него значением отката
	if next := m.nextLocked(update); next != nil {
		next.Prior = value
		version := m.store.Advance(update.Key, cause, hint)
		m.mu.Unlock()

		metrics.OptimisticUpdates.WithLabelValues(update.Key.Type, string(models.UpdateConfirmed)).Inc()
		m.logger.Debug("Optimistic update confirmed under a newer pending update",
			"update", id,
			"entity", update.Key.String(),
			"next", next.ID,
			"version", version,
		)
		return version, nil
	}
	version := m.store.Commit(update.Key, value, cause, hint)
	m.mu.Unlock()

	metrics.OptimisticUpdates.WithLabelValues(update.Key.Type, string(models.UpdateConfirmed)).Inc()
	if value != update.Speculative {
		m.notifier.Notify(update.Key, value)
	}
	m.publish(ctx, update.Key, value, version, models.MessageUpdate)

	m.logger.Debug("Optimistic update confirmed",
		"update", id,
		"entity", update.Key.String(),
		"version", version,
	)
	return version, nil
}

// Rollback восстанавливает prior значение, исполняет команду отката и, если у обновления
// есть команда повтора, переносит его в очередь откатов.
func (m *Manager) Rollback(ctx context.Context, id models.UpdateID, reason string) error {
	return m.rollback(ctx, id, reason, models.UpdateRolledBack)
}

// Drop снимает ожидающее обновление без записи в кэш и без рассылки.
// Используется, когда ответ авторитета устарел: кэш уже содержит более новое значение.
func (m *Manager) Drop(id models.UpdateID, reason string) error {
	m.mu.Lock()
	update, ok := m.pending[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUpdateNotFound, id)
	}
	delete(m.pending, id)
	m.mu.Unlock()

	metrics.OptimisticUpdates.WithLabelValues(update.Key.Type, "superseded").Inc()
	m.logger.Info("Optimistic update superseded", "update", id, "entity", update.Key.String(), "reason", reason)
	return nil
}

// ExpireStale откатывает ожидающие обновления старше ExpireAfter с причиной "expired".
// Задержка запуска допустима: устаревшие обновления откатываются при следующем вызове.
func (m *Manager) ExpireStale() {
	now := m.clock.Now()

	m.mu.Lock()
	ctx := m.ctx
	var stale []models.UpdateID
	for id, u := range m.pending {
		if now.Sub(u.Timestamp) > m.cfg.ExpireAfter {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		// Обновление могло быть подтверждено между сбором и откатом
		if err := m.rollback(ctx, id, ReasonExpired, models.UpdateExpired); err != nil {
			m.logger.Debug("Expired update already settled", "update", id)
		}
	}
}

// Retry повторяет обновление из очереди откатов.
// При успехе запись удаляется из очереди. При неудаче остаётся для следующей попытки
// или удаляется после исчерпания попыток; ошибка команды возвращается вызывающему.
func (m *Manager) Retry(ctx context.Context, id models.UpdateID) (bool, error) {
	m.mu.Lock()
	update, ok := m.queue[id]
	if !ok {
		m.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrNotInRollbackQueue, id)
	}
	if !update.CanRetry() {
		delete(m.queue, id)
		m.mu.Unlock()
		return false, fmt.Errorf("%w: %s after %d attempts", ErrRetriesExhausted, id, update.Retries)
	}
	update.Retries++
	attempt := update.Retries
	cmd := update.Retry
	m.mu.Unlock()

	err := m.commands.Execute(ctx, cmd)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.queue, id)
		metrics.Retries.WithLabelValues(update.Key.Type, "success").Inc()
		m.logger.Info("Retry succeeded", "update", id, "entity", update.Key.String(), "attempt", attempt)
		return true, nil
	}

	if attempt >= update.MaxRetries {
		delete(m.queue, id)
		metrics.Retries.WithLabelValues(update.Key.Type, "exhausted").Inc()
		m.logger.Warn("Retries exhausted, update dropped",
			"update", id,
			"entity", update.Key.String(),
			"attempts", attempt,
			"error", err,
		)
		return false, err
	}

	metrics.Retries.WithLabelValues(update.Key.Type, "failure").Inc()
	m.logger.Warn("Retry failed", "update", id, "entity", update.Key.String(), "attempt", attempt, "error", err)
	return false, err
}

// Pending возвращает копию ожидающего обновления.
func (m *Manager) Pending(id models.UpdateID) (models.OptimisticUpdate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.pending[id]
	if !ok {
		return models.OptimisticUpdate{}, false
	}
	return *u, true
}

// PendingCount returns the number of unconfirmed updates.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Queued returns a copy of the rollback queue entry for id.
func (m *Manager) Queued(id models.UpdateID) (models.OptimisticUpdate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.queue[id]
	if !ok {
		return models.OptimisticUpdate{}, false
	}
	return *u, true
}

// RollbackQueue возвращает копии записей очереди откатов.
func (m *Manager) RollbackQueue() []models.OptimisticUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.OptimisticUpdate, 0, len(m.queue))
	for _, u := range m.queue {
		out = append(out, *u)
	}
	return out
}

func (m *Manager) rollback(ctx context.Context, id models.UpdateID, reason string, state models.UpdateState) error {
	m.mu.Lock()
	update, ok := m.pending[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUpdateNotFound, id)
	}
	delete(m.pending, id)
	update.State = state
	update.Reason = reason
	if update.Retry != nil {
		m.queue[id] = update
	}
	// Кэш содержит значение более позднего обновления: prior передаётся ему,
	// кэш не меняется
	next := m.nextLocked(update)
	var version uint64
	if next != nil {
		next.Prior = update.Prior
	} else {
		version = m.store.Set(update.Key, update.Prior)
	}
	m.mu.Unlock()

	metrics.OptimisticUpdates.WithLabelValues(update.Key.Type, string(state)).Inc()
	if next == nil {
		m.notifier.Notify(update.Key, update.Prior)
	}

	if err := m.commands.Execute(ctx, update.Rollback); err != nil {
		m.logger.Warn("Rollback command failed", "update", id, "entity", update.Key.String(), "error", err)
	}

	if next == nil {
		m.publish(ctx, update.Key, update.Prior, version, models.MessageRollback)
	}

	m.logger.Warn("Optimistic update rolled back",
		"update", id,
		"entity", update.Key.String(),
		"reason", reason,
		"queued", update.Retry != nil,
		"superseded", next != nil,
	)
	return nil
}

// nextLocked ближайшее по порядку применения ожидающее обновление того же ключа,
// применённое после update; nil, если update последнее.
func (m *Manager) nextLocked(update *models.OptimisticUpdate) *models.OptimisticUpdate {
	var next *models.OptimisticUpdate
	for _, u := range m.pending {
		if u.Key != update.Key || u.Sequence <= update.Sequence {
			continue
		}
		if next == nil || u.Sequence < next.Sequence {
			next = u
		}
	}
	return next
}

func (m *Manager) publish(ctx context.Context, key models.EntityKey, value models.Value, version uint64, kind models.MessageKind) {
	if m.publisher == nil {
		return
	}

	msg := models.SyncMessage{
		Kind:       kind,
		EntityType: key.Type,
		EntityID:   key.ID,
		Payload:    value,
		Version:    version,
	}
	// Update без значения (удаление) рассылается как инвалидация ключа
	if kind == models.MessageUpdate && value == nil {
		msg.Kind = models.MessageInvalidate
		msg.Version = 0
	}

	if err := m.publisher.Publish(ctx, msg); err != nil {
		m.logger.Warn("Failed to publish sync message",
			"entity", key.String(),
			"kind", msg.Kind,
			"error", err,
		)
	}
}
