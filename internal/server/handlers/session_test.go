package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/server/storage"
	"github.com/iudanet/gophsync/pkg/api"
)

func TestSessionHandler_Create(t *testing.T) {
	store := setupTestStorage(t)
	handler := NewSessionHandler(setupTestLogger(), store, testJWT)

	w := doRequest(t, http.MethodPost, api.PathSessions, api.PathSessions,
		api.CreateSessionRequest{UserID: "user-1"}, "", "", handler.Create)
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeBody[api.SessionResponse](t, w)
	assert.Equal(t, "user-1", resp.UserID)
	assert.NotEmpty(t, resp.SessionID)
	assert.InDelta(t, 3600, resp.ExpiresIn, 1)

	claims, err := ValidateAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.SessionID, claims.SessionID)

	session, err := store.GetSession(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
}

func TestSessionHandler_JoinExisting(t *testing.T) {
	store := setupTestStorage(t)
	handler := NewSessionHandler(setupTestLogger(), store, testJWT)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.CreateSession(context.Background(), &models.Session{
		ID: "session-1", UserID: "user-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, store.CreateSession(context.Background(), &models.Session{
		ID: "session-old", UserID: "user-1", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}))

	tests := []struct {
		name       string
		req        api.CreateSessionRequest
		wantStatus int
	}{
		{name: "same user joins", req: api.CreateSessionRequest{UserID: "user-1", SessionID: "session-1"}, wantStatus: http.StatusOK},
		{name: "other user", req: api.CreateSessionRequest{UserID: "user-2", SessionID: "session-1"}, wantStatus: http.StatusNotFound},
		{name: "unknown session", req: api.CreateSessionRequest{UserID: "user-1", SessionID: "missing"}, wantStatus: http.StatusNotFound},
		{name: "expired session", req: api.CreateSessionRequest{UserID: "user-1", SessionID: "session-old"}, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, http.MethodPost, api.PathSessions, api.PathSessions, tt.req, "", "", handler.Create)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, api.ErrCodeInvalidRequest, decodeBody[api.ErrorResponse](t, w).Error)
				return
			}
			resp := decodeBody[api.SessionResponse](t, w)
			assert.Equal(t, "session-1", resp.SessionID)
			assert.LessOrEqual(t, resp.ExpiresIn, int64(3600))
		})
	}
}

func TestSessionHandler_CreateInvalid(t *testing.T) {
	handler := NewSessionHandler(setupTestLogger(), setupTestStorage(t), testJWT)

	tests := []struct {
		name string
		body any
	}{
		{name: "malformed json", body: "{"},
		{name: "missing user", body: api.CreateSessionRequest{}},
		{name: "user with spaces", body: api.CreateSessionRequest{UserID: "alice smith"}},
		{name: "session id with newline", body: api.CreateSessionRequest{UserID: "user-1", SessionID: "a\nb"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, http.MethodPost, api.PathSessions, api.PathSessions, tt.body, "", "", handler.Create)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSessionHandler_Revoke(t *testing.T) {
	store := setupTestStorage(t)
	handler := NewSessionHandler(setupTestLogger(), store, testJWT)

	now := time.Now().UTC()
	require.NoError(t, store.CreateSession(context.Background(), &models.Session{
		ID: "session-1", UserID: "user-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))

	target := api.PathSessions + "/current"
	w := doRequest(t, http.MethodDelete, target, target, nil, "user-1", "session-1", handler.Revoke)
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, err := store.GetSession(context.Background(), "session-1")
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	// повторный отзыв не ошибка
	w = doRequest(t, http.MethodDelete, target, target, nil, "user-1", "session-1", handler.Revoke)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, http.MethodDelete, target, target, nil, "", "", handler.Revoke)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
