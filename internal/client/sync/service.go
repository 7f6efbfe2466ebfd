// Package sync подтягивает текущее состояние сущностей с сервера в кэш движка.
// Используется при старте и после переподключения, когда push события могли быть пропущены.
package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iudanet/gophsync/internal/client/push"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/pkg/api"
)

//go:generate moq -out service_mock.go . Service

// Service определяет интерфейс для sync.Service
type Service interface {
	// Sync загружает все сущности заданных типов; без типов загружаются все известные типы
	Sync(ctx context.Context, entityTypes ...string) (*SyncResult, error)
}

// Lister читает сущности одного типа с сервера.
type Lister interface {
	ListEntities(ctx context.Context, entityType string) ([]api.Entity, error)
}

// SyncResult contains sync operation results
type SyncResult struct {
	PulledEntries  int `json:"pulled"`  // количество полученных с сервера записей
	AppliedEntries int `json:"applied"` // количество записей, изменивших кэш
	SkippedEntries int `json:"skipped"` // устаревшие или проигравшие локальным запросам
	InvalidEntries int `json:"invalid"` // записи с неизвестной формой payload
}

// KnownTypes типы сущностей, загружаемые по умолчанию
var KnownTypes = []string{
	models.EntityTypeDomain,
	models.EntityTypeCampaign,
	models.EntityTypePersona,
	models.EntityTypeProxy,
}

type service struct {
	lister  Lister
	handler push.Handler
	logger  *slog.Logger
}

// NewService creates a new sync service
func NewService(lister Lister, handler push.Handler, logger *slog.Logger) Service {
	return &service{
		lister:  lister,
		handler: handler,
		logger:  logger,
	}
}

// Sync загружает сущности и применяет их через push путь движка:
// более новые локальные запросы и версии кэша не перезаписываются.
func (s *service) Sync(ctx context.Context, entityTypes ...string) (*SyncResult, error) {
	if len(entityTypes) == 0 {
		entityTypes = KnownTypes
	}
	s.logger.Info("Starting synchronization", "types", entityTypes)

	result := &SyncResult{}
	for _, entityType := range entityTypes {
		if !models.KnownEntityType(entityType) {
			return result, fmt.Errorf("%w: entity type %q", models.ErrUnknownPayload, entityType)
		}

		entities, err := s.lister.ListEntities(ctx, entityType)
		if err != nil {
			return result, fmt.Errorf("failed to pull %s entities: %w", entityType, err)
		}
		result.PulledEntries += len(entities)

		for _, entity := range entities {
			ev, err := push.FromEntity(entity)
			if err != nil {
				result.InvalidEntries++
				s.logger.Warn("Skipping invalid entity", "type", entity.Type, "id", entity.ID, "error", err)
				continue
			}
			if s.handler.HandlePush(ctx, ev) {
				result.AppliedEntries++
			} else {
				result.SkippedEntries++
			}
		}
	}

	s.logger.Info("Synchronization completed",
		"pulled", result.PulledEntries,
		"applied", result.AppliedEntries,
		"skipped", result.SkippedEntries,
		"invalid", result.InvalidEntries,
	)
	return result, nil
}
