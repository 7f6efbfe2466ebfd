package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/server/storage"
)

const entityColumns = `entity_type, entity_id, payload, version, updated_at, deleted`

// GetEntity retrieves a single entity of the user
// Returns ErrEntityNotFound if entity doesn't exist or is deleted
func (s *Storage) GetEntity(ctx context.Context, userID string, key models.EntityKey) (*models.EntityRecord, error) {
	record, err := getEntity(ctx, s.db, userID, key)
	if err != nil {
		return nil, err
	}
	if record.Deleted {
		return nil, storage.ErrEntityNotFound
	}
	return record, nil
}

// ListEntities retrieves all non-deleted entities of the given type
func (s *Storage) ListEntities(ctx context.Context, userID, entityType string) ([]*models.EntityRecord, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE user_id = ? AND entity_type = ? AND deleted = 0
		ORDER BY entity_id
	`

	rows, err := s.db.QueryContext(ctx, query, userID, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make([]*models.EntityRecord, 0)
	for rows.Next() {
		record, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}

// PutEntity creates or replaces an entity payload and assigns the next version
func (s *Storage) PutEntity(ctx context.Context, userID string, key models.EntityKey, payload json.RawMessage, expectedVersion uint64, at time.Time) (*models.EntityRecord, error) {
	return s.write(ctx, userID, key, expectedVersion, at, func(existing *models.EntityRecord) (json.RawMessage, bool, error) {
		return payload, false, nil
	})
}

// DeleteEntity marks entity as deleted and assigns the next version
func (s *Storage) DeleteEntity(ctx context.Context, userID string, key models.EntityKey, expectedVersion uint64, at time.Time) (*models.EntityRecord, error) {
	return s.write(ctx, userID, key, expectedVersion, at, func(existing *models.EntityRecord) (json.RawMessage, bool, error) {
		if existing == nil || existing.Deleted {
			return nil, false, storage.ErrEntityNotFound
		}
		return nil, true, nil
	})
}

// write выполняет запись в транзакции: проверка ожидаемой версии, следующая версия,
// каноническое время не раньше предыдущей записи ключа
func (s *Storage) write(
	ctx context.Context,
	userID string,
	key models.EntityKey,
	expectedVersion uint64,
	at time.Time,
	next func(existing *models.EntityRecord) (json.RawMessage, bool, error),
) (*models.EntityRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	existing, err := getEntity(ctx, tx, userID, key)
	if err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
		return nil, err
	}

	var current uint64
	if existing != nil {
		current = existing.Version
		// Время фиксации монотонно для ключа даже при скачке часов назад
		if !at.After(existing.UpdatedAt) {
			at = existing.UpdatedAt.Add(time.Nanosecond)
		}
	}
	if expectedVersion > 0 && expectedVersion != current {
		return nil, &storage.VersionConflictError{Expected: expectedVersion, Current: current}
	}

	payload, deleted, err := next(existing)
	if err != nil {
		return nil, err
	}

	record := &models.EntityRecord{
		Key:       key,
		Payload:   payload,
		Version:   current + 1,
		UpdatedAt: at.UTC(),
		Deleted:   deleted,
		Created:   !deleted && (existing == nil || existing.Deleted),
	}

	query := `
		INSERT INTO entities (user_id, ` + entityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, entity_type, entity_id) DO UPDATE SET
			payload = excluded.payload,
			version = excluded.version,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted
	`

	_, err = tx.ExecContext(ctx, query,
		userID,
		key.Type,
		key.ID,
		nullablePayload(record.Payload),
		int64(record.Version),
		record.UpdatedAt.UnixNano(),
		boolToInt(record.Deleted),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save entity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit entity: %w", err)
	}

	return record, nil
}

// queryer общий интерфейс *sql.DB и *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getEntity(ctx context.Context, q queryer, userID string, key models.EntityKey) (*models.EntityRecord, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE user_id = ? AND entity_type = ? AND entity_id = ?
	`

	record, err := scanEntity(q.QueryRowContext(ctx, query, userID, key.Type, key.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrEntityNotFound
		}
		return nil, err
	}
	return record, nil
}

// scanner общий интерфейс *sql.Row и *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (*models.EntityRecord, error) {
	record := &models.EntityRecord{}
	var payload sql.NullString
	var version, updatedAt int64
	var deleted int

	err := row.Scan(
		&record.Key.Type,
		&record.Key.ID,
		&payload,
		&version,
		&updatedAt,
		&deleted,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}

	if payload.Valid {
		record.Payload = json.RawMessage(payload.String)
	}
	record.Version = uint64(version)
	record.UpdatedAt = time.Unix(0, updatedAt).UTC()
	record.Deleted = intToBool(deleted)
	return record, nil
}

func nullablePayload(p json.RawMessage) sql.NullString {
	if len(p) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(p), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}
