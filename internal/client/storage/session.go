package storage

import (
	"context"
	"time"
)

// Session токен сессии, полученный командой session
type Session struct {
	ExpiresAt   time.Time `json:"expires_at"`
	AccessToken string    `json:"access_token"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	ServerURL   string    `json:"server_url"` // сервер, выдавший токен
	// Salt соль ключа, если AccessToken зашифрован паролем клиента
	Salt string `json:"salt,omitempty"`
}

// Sealed reports whether AccessToken is encrypted.
func (s Session) Sealed() bool {
	return s.Salt != ""
}

// Expired reports whether the token is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStorage defines interface for storing the current session token
type SessionStorage interface {
	// SaveSession replaces the stored session
	SaveSession(ctx context.Context, session *Session) error

	// GetSession returns the stored session or ErrSessionNotFound
	GetSession(ctx context.Context) (*Session, error)

	// DeleteSession removes the stored session (revoke)
	DeleteSession(ctx context.Context) error
}
