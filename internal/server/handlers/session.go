package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/server/storage"
	"github.com/iudanet/gophsync/internal/validation"
	"github.com/iudanet/gophsync/pkg/api"
)

// SessionHandler обрабатывает создание и отзыв сессий
type SessionHandler struct {
	logger    *slog.Logger
	sessions  storage.SessionStorage
	now       func() time.Time
	jwtConfig JWTConfig
}

// NewSessionHandler создает новый handler для сессий
func NewSessionHandler(logger *slog.Logger, sessions storage.SessionStorage, jwtConfig JWTConfig) *SessionHandler {
	return &SessionHandler{
		logger:    logger,
		sessions:  sessions,
		jwtConfig: jwtConfig,
		now:       time.Now,
	}
}

// Create обрабатывает POST /api/v1/sessions
// Выдаёт токен новой сессии или, если передан session_id существующей сессии
// того же пользователя, токен для присоединения к ней (ещё один экземпляр клиента).
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode session request", slog.Any("error", err))
		SendError(h.logger, w, api.ErrCodeInvalidRequest, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateUserID(req.UserID); err != nil {
		SendError(h.logger, w, api.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateSessionID(req.SessionID); err != nil {
		SendError(h.logger, w, api.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)
		return
	}

	now := h.now()
	session, status, err := h.resolveSession(r, req, now)
	if err != nil {
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(ctx, "failed to resolve session", slog.Any("error", err))
			SendError(h.logger, w, api.ErrCodeInternal, "internal server error", status)
			return
		}
		SendError(h.logger, w, api.ErrCodeInvalidRequest, err.Error(), status)
		return
	}

	token, expiresIn, err := GenerateAccessToken(h.jwtConfig, session.UserID, session.ID, now)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate access token", slog.Any("error", err))
		SendError(h.logger, w, api.ErrCodeInternal, "internal server error", http.StatusInternalServerError)
		return
	}
	// токен не переживает сессию
	if remaining := int64(session.ExpiresAt.Sub(now).Seconds()); remaining < expiresIn {
		expiresIn = remaining
	}

	h.logger.InfoContext(ctx, "session issued",
		slog.String("user_id", session.UserID),
		slog.String("session_id", session.ID))

	SendJSON(h.logger, w, api.SessionResponse{
		AccessToken: token,
		SessionID:   session.ID,
		UserID:      session.UserID,
		ExpiresIn:   expiresIn,
	}, status)
}

func (h *SessionHandler) resolveSession(r *http.Request, req api.CreateSessionRequest, now time.Time) (*models.Session, int, error) {
	ctx := r.Context()

	if req.SessionID != "" {
		session, err := h.sessions.GetSession(ctx, req.SessionID)
		switch {
		case errors.Is(err, storage.ErrSessionNotFound):
			return nil, http.StatusNotFound, errors.New("session not found")
		case err != nil:
			return nil, http.StatusInternalServerError, err
		case session.UserID != req.UserID || session.Expired(now):
			return nil, http.StatusNotFound, errors.New("session not found")
		}
		return session, http.StatusOK, nil
	}

	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(h.jwtConfig.AccessTokenTTL),
	}
	if err := h.sessions.CreateSession(ctx, session); err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return session, http.StatusCreated, nil
}

// Revoke обрабатывает DELETE /api/v1/sessions/current
// Отзывает сессию из токена; все экземпляры клиента этой сессии теряют доступ.
func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, ok := GetSessionID(ctx)
	if !ok {
		SendError(h.logger, w, api.ErrCodeUnauthorized, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.sessions.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
		h.logger.ErrorContext(ctx, "failed to delete session", slog.Any("error", err))
		SendError(h.logger, w, api.ErrCodeInternal, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "session revoked", slog.String("session_id", sessionID))
	w.WriteHeader(http.StatusNoContent)
}
