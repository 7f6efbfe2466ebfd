package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/gophsync/internal/client/optimistic"
	"github.com/iudanet/gophsync/internal/models"
)

// Mutation локальное изменение сущности.
type Mutation struct {
	// Value новое значение; nil для удаления
	Value    models.Value
	Rollback *models.Command
	Retry    *models.Command
	Key      models.EntityKey
	// Operation вид изменения
	Operation  models.Operation
	MaxRetries int
}

// Pending изменение, ожидающее ответа авторитета.
type Pending struct {
	StartedAt time.Time
	// Conflict заполнен, если изменение конфликтует с другими запросами того же ключа
	Conflict  *models.ConflictResolution
	Value     models.Value
	RequestID models.RequestID
	UpdateID  models.UpdateID
	Key       models.EntityKey
	Operation models.Operation
	// Tracked false, если трекер не зарегистрировал запрос (защита от циклов)
	Tracked bool
	// Applied false, если оптимистичное значение не применено (защита от циклов)
	Applied bool
}

// Outcome ответ авторитета на изменение.
type Outcome struct {
	// Timestamp время фиксации изменения авторитетом; нулевое = время начала изменения
	Timestamp time.Time
	// Value авторитетное значение; nil = оставить отправленное значение
	Value models.Value
	// Reason причина неудачи, попадает в откат
	Reason string
	// Version версия, назначенная авторитетом (0 = неизвестна)
	Version uint64
	Success bool
}

// Result итог Settle.
type Result struct {
	Version uint64
	// Stale true, если ответ устарел относительно недавнего push и кэш не изменён
	Stale bool
}

// PushEvent изменение сущности, полученное по push-каналу.
type PushEvent struct {
	Timestamp time.Time
	// Value новое значение; nil = сущность удалена
	Value   models.Value
	Key     models.EntityKey
	Version uint64
}

// Begin регистрирует изменение в трекере, применяет его оптимистично
// и рассылает другим экземплярам.
func (e *Engine) Begin(ctx context.Context, m Mutation) (*Pending, error) {
	if err := m.Key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMutation, err)
	}
	if !m.Operation.Valid() {
		return nil, fmt.Errorf("%w: unknown operation %q", ErrInvalidMutation, m.Operation)
	}
	if m.Operation == models.OperationDelete {
		m.Value = nil
	} else if err := models.ValidateValue(m.Key.Type, m.Value); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMutation, err)
	}

	tracked := e.tracker.TrackValue(m.Key, m.Operation, models.SourceLocal, m.Value)
	p := &Pending{
		StartedAt: e.sched.Now(),
		Conflict:  tracked.Conflict,
		Value:     m.Value,
		RequestID: tracked.ID,
		Key:       m.Key,
		Operation: m.Operation,
		Tracked:   tracked.Registered,
	}

	p.UpdateID, p.Applied = e.optimistic.Apply(ctx, optimistic.Input{
		Speculative: m.Value,
		Rollback:    m.Rollback,
		Retry:       m.Retry,
		RequestID:   tracked.ID,
		Key:         m.Key,
		Operation:   m.Operation,
		MaxRetries:  m.MaxRetries,
	})
	return p, nil
}

// Settle применяет ответ авторитета. Ответ, начатый раньше недавнего push того же ключа,
// считается устаревшим: запрос завершается, кэш не меняется.
func (e *Engine) Settle(ctx context.Context, p *Pending, out Outcome) (Result, error) {
	responseTime := out.Timestamp
	if responseTime.IsZero() {
		responseTime = p.StartedAt
	}

	if !e.tracker.ShouldProcessLocalResponse(p.Key, responseTime) {
		if p.Applied {
			if err := e.optimistic.Drop(p.UpdateID, "superseded by push"); err != nil && !isNotFound(err) {
				return Result{}, err
			}
		}
		e.tracker.Supersede(p.RequestID)
		e.logger.Warn("Stale local response dropped", "entity", p.Key.String(), "request", p.RequestID)
		return Result{Stale: true, Version: e.cache.Version(p.Key)}, nil
	}

	if !out.Success {
		if p.Applied {
			reason := out.Reason
			if reason == "" {
				reason = "request failed"
			}
			// Обновление могло быть уже откачено проверкой устаревания
			if err := e.optimistic.Rollback(ctx, p.UpdateID, reason); err != nil && !isNotFound(err) {
				return Result{}, err
			}
		}
		e.tracker.Complete(p.RequestID, false)
		return Result{Version: e.cache.Version(p.Key)}, nil
	}

	confirmed := false
	if p.Applied {
		_, err := e.optimistic.Confirm(ctx, p.UpdateID, out.Value, out.Version)
		switch {
		case err == nil:
			confirmed = true
		case !isNotFound(err):
			return Result{}, err
		}
	}
	if !confirmed {
		// Оптимистичного обновления нет (защита от циклов или истёк срок): пишем результат напрямую
		value := out.Value
		if value == nil {
			value = p.Value
		}
		e.commit(ctx, p.Key, value, string(p.RequestID), out.Version)
	}

	// Подтверждение выше уже продвинуло версию с тем же cause: второго шага нет
	e.tracker.Complete(p.RequestID, true)
	return Result{Version: e.cache.Version(p.Key)}, nil
}

// HandlePush применяет push-обновление, если оно не устарело относительно
// активных локальных запросов и версии в кэше. Возвращает true, если кэш изменён.
func (e *Engine) HandlePush(ctx context.Context, ev PushEvent) bool {
	if err := ev.Key.Validate(); err != nil {
		e.logger.Warn("Dropping push with invalid key", "error", err)
		return false
	}
	if ev.Value != nil {
		if err := models.ValidateValue(ev.Key.Type, ev.Value); err != nil {
			e.logger.Warn("Dropping push with invalid payload", "entity", ev.Key.String(), "error", err)
			return false
		}
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.sched.Now()
	}

	if !e.tracker.ShouldProcessPushUpdate(ev.Key, ev.Timestamp) {
		e.logger.Warn("Push update older than in-flight local request", "entity", ev.Key.String(), "push_time", ev.Timestamp)
		return false
	}

	accepted, res := e.tracker.AcceptPush(ev.Key, ev.Timestamp, ev.Value)
	if !accepted {
		countRejected(ev.Key, "push_resolution")
		args := []any{"entity", ev.Key.String()}
		if res != nil {
			args = append(args, "strategy", res.Strategy, "reason", res.Reason)
		}
		e.logger.Warn("Push update lost conflict resolution", args...)
		return false
	}

	if ev.Version > 0 {
		if !e.cache.Put(ev.Key, ev.Value, ev.Version) {
			countRejected(ev.Key, "push_version")
			e.logger.Debug("Stale push version ignored",
				"entity", ev.Key.String(),
				"version", ev.Version,
				"cached", e.cache.Version(ev.Key),
			)
			return false
		}
	} else {
		e.cache.Commit(ev.Key, ev.Value, "push:"+ev.Timestamp.UTC().Format(time.RFC3339Nano), 0)
	}

	e.subscribers.Notify(ev.Key, ev.Value)
	return true
}
