package models

import "time"

// Session представляет сессию пользователя на эталонном сервере.
// Все экземпляры клиента с одной сессией разделяют канал синхронизации.
type Session struct {
	ID        string    `json:"id"`         // UUID сессии
	UserID    string    `json:"user_id"`    // ID пользователя
	CreatedAt time.Time `json:"created_at"` // время создания
	ExpiresAt time.Time `json:"expires_at"` // время истечения
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
