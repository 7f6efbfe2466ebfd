package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/client/cache"
	"github.com/iudanet/gophsync/internal/models"
)

// snapshotEntry JSON представление записи кэша в bucket cache.
// Value пустой = значения нет, хранится только версия ключа.
type snapshotEntry struct {
	WrittenAt  time.Time       `json:"writtenAt,omitzero"`
	EntityType string          `json:"entityType"`
	Value      json.RawMessage `json:"value,omitempty"`
	Version    uint64          `json:"version"`
	TTLMs      int64           `json:"ttlMs,omitempty"`
}

// SaveSnapshot заменяет сохранённый снимок кэша на records.
func (s *Storage) SaveSnapshot(ctx context.Context, records []cache.Record) error {
	return s.update(func(tx *bbolt.Tx) error {
		// Пересоздаём bucket: снимок всегда полный
		if err := tx.DeleteBucket(bucketCache); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to reset cache bucket: %w", err)
		}
		bucket, err := tx.CreateBucket(bucketCache)
		if err != nil {
			return fmt.Errorf("failed to create cache bucket: %w", err)
		}

		for _, r := range records {
			entry := snapshotEntry{
				EntityType: r.Key.Type,
				Version:    r.Entry.Version,
			}
			if r.Entry.Value != nil {
				raw, err := models.EncodeValue(r.Entry.Value)
				if err != nil {
					return fmt.Errorf("failed to encode %s: %w", r.Key, err)
				}
				entry.Value = raw
				entry.WrittenAt = r.Entry.WrittenAt
				entry.TTLMs = r.Entry.TTL.Milliseconds()
			}

			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("failed to marshal %s: %w", r.Key, err)
			}
			if err := bucket.Put([]byte(r.Key.String()), data); err != nil {
				return fmt.Errorf("failed to save %s: %w", r.Key, err)
			}
		}

		return putLastSnapshotAt(tx, time.Now())
	})
}

// LoadSnapshot возвращает сохранённый снимок.
// Запись с нечитаемым значением (например, форма payload сменилась между версиями)
// восстанавливается только версией, значение отбрасывается.
func (s *Storage) LoadSnapshot(ctx context.Context) ([]cache.Record, error) {
	var records []cache.Record

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCache)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			key, err := models.ParseEntityKey(string(k))
			if err != nil {
				return fmt.Errorf("invalid snapshot key %q: %w", k, err)
			}

			var entry snapshotEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal %s: %w", key, err)
			}

			record := cache.Record{Key: key, Entry: models.CacheEntry{Version: entry.Version}}
			if len(entry.Value) > 0 {
				if value, err := models.DecodeValue(key.Type, entry.Value); err == nil {
					record.Entry.Value = value
					record.Entry.WrittenAt = entry.WrittenAt
					record.Entry.TTL = time.Duration(entry.TTLMs) * time.Millisecond
				}
			}
			records = append(records, record)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to load cache snapshot: %w", err)
	}

	return records, nil
}

// Clear удаляет сохранённый снимок.
func (s *Storage) Clear(ctx context.Context) error {
	return s.update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketCache); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to delete cache bucket: %w", err)
		}
		if _, err := tx.CreateBucket(bucketCache); err != nil {
			return fmt.Errorf("failed to create cache bucket: %w", err)
		}
		return tx.Bucket(bucketMetadata).Delete([]byte(keyLastSnapshotAt))
	})
}
