package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/iudanet/gophsync/internal/models"
)

// EntityStorage defines interface for authoritative entity persistence.
// Версия сущности монотонна: каждая запись (включая удаление) увеличивает её на единицу.
type EntityStorage interface {
	// GetEntity retrieves a single entity of the user
	// Returns ErrEntityNotFound if entity doesn't exist or is deleted
	GetEntity(ctx context.Context, userID string, key models.EntityKey) (*models.EntityRecord, error)

	// ListEntities retrieves all non-deleted entities of the given type
	// Returns empty slice if no entities found
	ListEntities(ctx context.Context, userID, entityType string) ([]*models.EntityRecord, error)

	// PutEntity creates or replaces an entity payload
	// expectedVersion 0 skips the check, otherwise a mismatch returns *VersionConflictError
	PutEntity(ctx context.Context, userID string, key models.EntityKey, payload json.RawMessage, expectedVersion uint64, at time.Time) (*models.EntityRecord, error)

	// DeleteEntity marks entity as deleted (soft delete) and advances its version
	// Returns ErrEntityNotFound if entity doesn't exist or is already deleted
	DeleteEntity(ctx context.Context, userID string, key models.EntityKey, expectedVersion uint64, at time.Time) (*models.EntityRecord, error)
}
