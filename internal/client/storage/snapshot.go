package storage

import (
	"context"
	"time"

	"github.com/iudanet/gophsync/internal/client/cache"
)

// SnapshotStorage defines interface for persisting the cache snapshot between runs
type SnapshotStorage interface {
	// SaveSnapshot replaces the stored snapshot with records
	SaveSnapshot(ctx context.Context, records []cache.Record) error

	// LoadSnapshot returns the stored snapshot; empty if nothing was saved yet
	LoadSnapshot(ctx context.Context) ([]cache.Record, error)

	// Clear removes the stored snapshot
	Clear(ctx context.Context) error

	// LastSnapshotAt returns the time of the last successful save
	// Returns zero time if no snapshot has been saved yet
	LastSnapshotAt(ctx context.Context) (time.Time, error)
}
