// Package data выполняет изменения сущностей через авторитетный сервер:
// оптимистичное применение, подтверждение или откат по ответу, повтор неудачных запросов.
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	clientapi "github.com/iudanet/gophsync/internal/client/api"
	"github.com/iudanet/gophsync/internal/client/engine"
	"github.com/iudanet/gophsync/internal/client/gate"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/pkg/api"
)

// Имена команд повтора
const (
	CommandPut    = "http.put"
	CommandDelete = "http.delete"
)

// EntityAPI операции над сущностями на сервере.
//
//go:generate moq -out entity_api_mock.go . EntityAPI
type EntityAPI interface {
	GetEntity(ctx context.Context, key models.EntityKey) (*api.Entity, error)
	PutEntity(ctx context.Context, key models.EntityKey, value models.Value, expectedVersion uint64) (*api.Entity, error)
	DeleteEntity(ctx context.Context, key models.EntityKey, expectedVersion uint64) (*api.Entity, error)
}

// Result итог изменения.
type Result struct {
	UpdateID models.UpdateID
	Version  uint64
	// Stale true, если ответ сервера устарел относительно push
	Stale bool
}

// Options параметры сервиса.
type Options struct {
	// MaxRetries число повторов неудачного изменения; 0 = значение движка
	MaxRetries int
	// FetchTTL время переиспользования результата Fetch; 0 = TTL дедупликатора движка
	FetchTTL time.Duration
}

// Service выполняет изменения сущностей через движок и HTTP клиент.
type Service struct {
	api    EntityAPI
	engine *engine.Engine
	logger *slog.Logger
	opts   Options
}

type putArgs struct {
	Payload json.RawMessage `json:"payload"`
}

// NewService creates the service and registers its retry commands in the engine.
func NewService(entityAPI EntityAPI, eng *engine.Engine, opts Options, logger *slog.Logger) *Service {
	s := &Service{
		api:    entityAPI,
		engine: eng,
		logger: logger,
		opts:   opts,
	}
	eng.Commands().Register(CommandPut, s.retryPut)
	eng.Commands().Register(CommandDelete, s.retryDelete)
	return s
}

// Create создает сущность.
func (s *Service) Create(ctx context.Context, key models.EntityKey, value models.Value) (*Result, error) {
	return s.mutate(ctx, key, models.OperationCreate, value)
}

// Update заменяет значение сущности целиком.
func (s *Service) Update(ctx context.Context, key models.EntityKey, value models.Value) (*Result, error) {
	return s.mutate(ctx, key, models.OperationUpdate, value)
}

// Delete удаляет сущность.
func (s *Service) Delete(ctx context.Context, key models.EntityKey) (*Result, error) {
	return s.mutate(ctx, key, models.OperationDelete, nil)
}

// UpdateDebounced откладывает Update на delay; серия вызовов для одного ключа
// внутри окна выполняет только последний.
func (s *Service) UpdateDebounced(ctx context.Context, key models.EntityKey, value models.Value, delay time.Duration) {
	s.engine.Debounce(key.String(), delay, func() {
		if ctx.Err() != nil {
			s.logger.Debug("Debounced update canceled", "entity", key.String())
			return
		}
		if _, err := s.Update(ctx, key, value); err != nil {
			s.logger.Warn("Debounced update failed", "entity", key.String(), "error", err)
		}
	})
}

// Fetch читает сущность с сервера. Одинаковые запросы внутри окна дедупликации
// разделяют один GET. Ответ записывается в кэш как push.
func (s *Service) Fetch(ctx context.Context, key models.EntityKey) (models.Value, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	signature := gate.Signature(http.MethodGet, clientapi.EntityPath(key), nil)
	entity, shared, err := gate.Deduplicate(ctx, s.engine.Dedup(), signature, s.opts.FetchTTL,
		func(ctx context.Context) (*api.Entity, error) {
			return s.api.GetEntity(ctx, key)
		})
	if err != nil {
		return nil, err
	}

	value, err := models.DecodeValue(entity.Type, entity.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}

	// разделённый результат уже применён первым вызовом
	if !shared {
		s.engine.HandlePush(ctx, engine.PushEvent{
			Timestamp: entity.UpdatedAt,
			Value:     value,
			Key:       key,
			Version:   entity.Version,
		})
	}
	return value, nil
}

func (s *Service) mutate(ctx context.Context, key models.EntityKey, op models.Operation, value models.Value) (*Result, error) {
	retry, err := s.retryCommand(key, op, value)
	if err != nil {
		return nil, err
	}

	pending, err := s.engine.Begin(ctx, engine.Mutation{
		Value:      value,
		Retry:      retry,
		Key:        key,
		Operation:  op,
		MaxRetries: s.opts.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	entity, callErr := s.call(ctx, key, op, value)
	if callErr != nil {
		res, err := s.engine.Settle(ctx, pending, engine.Outcome{Reason: callErr.Error()})
		if err != nil {
			return nil, errors.Join(callErr, err)
		}
		s.logger.Warn("Mutation failed", "entity", key.String(), "operation", op, "error", callErr)
		return &Result{UpdateID: pending.UpdateID, Version: res.Version}, callErr
	}

	res, err := s.engine.Settle(ctx, pending, engine.Outcome{
		Timestamp: entity.UpdatedAt,
		Value:     s.authoritative(entity),
		Version:   entity.Version,
		Success:   true,
	})
	if err != nil {
		return nil, err
	}
	return &Result{UpdateID: pending.UpdateID, Version: res.Version, Stale: res.Stale}, nil
}

func (s *Service) call(ctx context.Context, key models.EntityKey, op models.Operation, value models.Value) (*api.Entity, error) {
	if op == models.OperationDelete {
		return s.api.DeleteEntity(ctx, key, 0)
	}
	return s.api.PutEntity(ctx, key, value, 0)
}

// authoritative значение из ответа сервера; nil = оставить отправленное
func (s *Service) authoritative(entity *api.Entity) models.Value {
	if entity.Deleted || len(entity.Payload) == 0 {
		return nil
	}
	value, err := models.DecodeValue(entity.Type, entity.Payload)
	if err != nil {
		s.logger.Warn("Server returned undecodable payload", "type", entity.Type, "id", entity.ID, "error", err)
		return nil
	}
	return value
}

func (s *Service) retryCommand(key models.EntityKey, op models.Operation, value models.Value) (*models.Command, error) {
	if op == models.OperationDelete {
		return models.NewCommand(CommandDelete, key, nil)
	}
	payload, err := models.EncodeValue(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", engine.ErrInvalidMutation, err)
	}
	return models.NewCommand(CommandPut, key, putArgs{Payload: payload})
}

func (s *Service) retryPut(ctx context.Context, cmd models.Command) error {
	var args putArgs
	if err := json.Unmarshal(cmd.Args, &args); err != nil {
		return fmt.Errorf("failed to decode retry args: %w", err)
	}
	value, err := models.DecodeValue(cmd.Key.Type, args.Payload)
	if err != nil {
		return err
	}

	entity, err := s.api.PutEntity(ctx, cmd.Key, value, 0)
	if err != nil {
		return err
	}
	s.applyRetried(ctx, cmd.Key, entity, value)
	return nil
}

func (s *Service) retryDelete(ctx context.Context, cmd models.Command) error {
	entity, err := s.api.DeleteEntity(ctx, cmd.Key, 0)
	if err != nil {
		return err
	}
	s.applyRetried(ctx, cmd.Key, entity, nil)
	return nil
}

// applyRetried записывает результат успешного повтора: исходное обновление уже откачено,
// поэтому значение проходит через push путь
func (s *Service) applyRetried(ctx context.Context, key models.EntityKey, entity *api.Entity, sent models.Value) {
	value := sent
	if v := s.authoritative(entity); v != nil {
		value = v
	}
	if entity.Deleted {
		value = nil
	}
	s.engine.HandlePush(ctx, engine.PushEvent{
		Timestamp: entity.UpdatedAt,
		Value:     value,
		Key:       key,
		Version:   entity.Version,
	})
}
