package storage

import (
	"context"
	"time"

	"github.com/iudanet/gophsync/internal/models"
)

// SessionStorage defines interface for session persistence
type SessionStorage interface {
	// CreateSession stores a new session
	CreateSession(ctx context.Context, session *models.Session) error

	// GetSession retrieves session by ID
	// Returns ErrSessionNotFound if session doesn't exist
	GetSession(ctx context.Context, id string) (*models.Session, error)

	// DeleteSession deletes session by ID
	// Returns ErrSessionNotFound if session doesn't exist
	DeleteSession(ctx context.Context, id string) error

	// DeleteExpiredSessions removes all sessions expired at now
	// Returns number of deleted sessions
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}
