package storage

import "errors"

// Common client storage errors
var (
	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
	// ErrSessionNotFound indicates that no session token is stored
	ErrSessionNotFound = errors.New("session not found")
	// ErrStorageLocked indicates that another process holds the database file
	ErrStorageLocked = errors.New("local database is in use by another process")
)
