package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/gophsync/internal/server/handlers"
	"github.com/iudanet/gophsync/internal/server/storage"
	"github.com/iudanet/gophsync/pkg/api"
)

// AccessTokenParam query параметр с токеном для websocket клиентов,
// которые не могут передать заголовок Authorization
const AccessTokenParam = "access_token"

// AuthMiddleware создает middleware для проверки JWT токена.
// Токен должен ссылаться на существующую, не истекшую и не отозванную сессию.
func AuthMiddleware(logger *slog.Logger, jwtConfig handlers.JWTConfig, sessions storage.SessionStorage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tokenString, err := extractToken(r)
			if err != nil {
				logger.Warn("Rejected request without valid token", "path", r.URL.Path, "error", err)
				handlers.SendError(logger, w, api.ErrCodeUnauthorized, err.Error(), http.StatusUnauthorized)
				return
			}

			claims, err := handlers.ValidateAccessToken(jwtConfig, tokenString)
			if err != nil {
				logger.Warn("Invalid access token", "error", err)
				handlers.SendError(logger, w, api.ErrCodeUnauthorized, "invalid token", http.StatusUnauthorized)
				return
			}

			session, err := sessions.GetSession(ctx, claims.SessionID)
			switch {
			case errors.Is(err, storage.ErrSessionNotFound):
				logger.Warn("Token references unknown session", "session_id", claims.SessionID)
				handlers.SendError(logger, w, api.ErrCodeUnauthorized, "session revoked", http.StatusUnauthorized)
				return
			case err != nil:
				logger.Error("Failed to load session", "session_id", claims.SessionID, "error", err)
				handlers.SendError(logger, w, api.ErrCodeInternal, "internal server error", http.StatusInternalServerError)
				return
			}
			if session.UserID != claims.UserID || session.Expired(time.Now()) {
				logger.Warn("Session expired or mismatched", "session_id", claims.SessionID)
				handlers.SendError(logger, w, api.ErrCodeUnauthorized, "session expired", http.StatusUnauthorized)
				return
			}

			logger.Debug("Session authenticated", "user_id", claims.UserID, "session_id", claims.SessionID)

			next.ServeHTTP(w, r.WithContext(handlers.WithSession(ctx, claims.UserID, claims.SessionID)))
		})
	}
}

var (
	errMissingToken = errors.New("missing token")
	errTokenFormat  = errors.New("invalid token format")
)

// extractToken ищет токен в заголовке "Authorization: Bearer <token>",
// затем в query параметре access_token
func extractToken(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", errTokenFormat
		}
		return token, nil
	}

	if token := r.URL.Query().Get(AccessTokenParam); token != "" {
		return token, nil
	}
	return "", errMissingToken
}
