package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	keyLastSnapshotAt = "last_snapshot_at"
)

// putLastSnapshotAt сохраняет время снимка в рамках транзакции SaveSnapshot
func putLastSnapshotAt(tx *bbolt.Tx, at time.Time) error {
	bucket := tx.Bucket(bucketMetadata)
	if bucket == nil {
		return fmt.Errorf("metadata bucket not found")
	}

	// Конвертируем unix nano в bytes
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(at.UnixNano()))

	if err := bucket.Put([]byte(keyLastSnapshotAt), buf); err != nil {
		return fmt.Errorf("failed to save last snapshot time: %w", err)
	}
	return nil
}

// LastSnapshotAt retrieves the time of the last successful snapshot
// Returns zero time if no snapshot has been saved yet
func (s *Storage) LastSnapshotAt(ctx context.Context) (time.Time, error) {
	var at time.Time

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		raw := bucket.Get([]byte(keyLastSnapshotAt))
		if raw == nil {
			// Снимок ещё не сохранялся
			return nil
		}
		at = time.Unix(0, int64(binary.BigEndian.Uint64(raw))).UTC()
		return nil
	})

	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last snapshot time: %w", err)
	}

	return at, nil
}
