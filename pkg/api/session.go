package api

// CreateSessionRequest представляет запрос на создание сессии.
// Экземпляры клиента (вкладки), передающие один SessionID, разделяют канал синхронизации.
type CreateSessionRequest struct {
	UserID    string `json:"user_id"`              // идентификатор пользователя
	SessionID string `json:"session_id,omitempty"` // присоединиться к существующей сессии
}

// SessionResponse представляет ответ с токеном сессии
type SessionResponse struct {
	AccessToken string `json:"access_token"` // JWT access token
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id"`
	ExpiresIn   int64  `json:"expires_in"` // время жизни токена в секундах
}
