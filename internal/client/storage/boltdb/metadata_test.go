package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func TestLastSnapshotAt(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	// Изначально снимка нет
	at, err := store.LastSnapshotAt(ctx)
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	require.NoError(t, store.SaveSnapshot(ctx, nil))

	at, err = store.LastSnapshotAt(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), at, time.Minute)
}

func TestLastSnapshotAt_BucketMissing(t *testing.T) {
	store := createTestStorage(t)

	// Удаляем bucket metadata напрямую
	err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket(bucketMetadata)
	})
	require.NoError(t, err)

	_, err = store.LastSnapshotAt(context.Background())
	assert.ErrorContains(t, err, "metadata bucket not found")
}
