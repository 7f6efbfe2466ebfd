package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = models.NewEntityKey(models.EntityTypeDomain, "example.com")

// TestNewClient проверяет создание нового клиента
func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	assert.NotNil(t, client)
	assert.Equal(t, "http://localhost:8080", client.BaseURL())
	assert.NotNil(t, client.httpClient)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
	assert.Empty(t, client.AuthHeader().Get("Authorization"))
}

func TestClient_CreateSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, api.PathSessions, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req api.CreateSessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "user-1", req.UserID)
		assert.Equal(t, "session-1", req.SessionID)

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(api.SessionResponse{
			AccessToken: "token-abc",
			SessionID:   "session-1",
			UserID:      "user-1",
			ExpiresIn:   900,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.CreateSession(context.Background(), api.CreateSessionRequest{UserID: "user-1", SessionID: "session-1"})
	require.NoError(t, err)

	assert.Equal(t, "session-1", resp.SessionID)
	assert.Equal(t, int64(900), resp.ExpiresIn)
	assert.Equal(t, "token-abc", client.Token())
	assert.Equal(t, "Bearer token-abc", client.AuthHeader().Get("Authorization"))
}

func TestClient_RevokeSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, api.PathSessionCurrent, r.URL.Path)
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetToken("token-abc")

	require.NoError(t, client.RevokeSession(context.Background()))
	assert.Empty(t, client.Token())
}

func TestClient_GetEntity(t *testing.T) {
	updatedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/entities/domain/example.com", r.URL.Path)
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(api.Entity{
			Type:      models.EntityTypeDomain,
			ID:        "example.com",
			Payload:   json.RawMessage(`{"status":"validated"}`),
			Version:   3,
			UpdatedAt: updatedAt,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetToken("token-abc")

	entity, err := client.GetEntity(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), entity.Version)
	assert.True(t, updatedAt.Equal(entity.UpdatedAt))

	value, err := models.DecodeValue(entity.Type, entity.Payload)
	require.NoError(t, err)
	assert.Equal(t, models.DomainState{Status: "validated"}, value)
}

func TestClient_ListEntities(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/entities/proxy", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.ListEntitiesResponse{Entities: []api.Entity{
			{Type: models.EntityTypeProxy, ID: "p1", Version: 1},
			{Type: models.EntityTypeProxy, ID: "p2", Version: 4},
		}})
	}))
	defer server.Close()

	entities, err := NewClient(server.URL).ListEntities(context.Background(), models.EntityTypeProxy)
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "p2", entities[1].ID)
}

func TestClient_PutEntity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/entities/domain/example.com", r.URL.Path)

		var req api.PutEntityRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, uint64(2), req.ExpectedVersion)
		assert.JSONEq(t, `{"status":"pending","leadScore":0.5}`, string(req.Payload))

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(api.Entity{Type: "domain", ID: "example.com", Payload: req.Payload, Version: 3})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	entity, err := client.PutEntity(context.Background(), testKey, models.DomainState{Status: "pending", LeadScore: 0.5}, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), entity.Version)
}

func TestClient_PutEntity_InvalidValue(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	_, err := client.PutEntity(context.Background(), testKey, models.DomainState{}, 0)
	assert.ErrorIs(t, err, models.ErrUnknownPayload)
}

func TestClient_DeleteEntity(t *testing.T) {
	tests := []struct {
		name     string
		expected uint64
		query    string
	}{
		{name: "without version check", expected: 0, query: ""},
		{name: "with expected version", expected: 5, query: "expected_version=5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/api/v1/entities/domain/example.com", r.URL.Path)
				assert.Equal(t, tt.query, r.URL.RawQuery)
				_ = json.NewEncoder(w).Encode(api.Entity{Type: "domain", ID: "example.com", Version: 6, Deleted: true})
			}))
			defer server.Close()

			entity, err := NewClient(server.URL).DeleteEntity(context.Background(), testKey, tt.expected)
			require.NoError(t, err)
			assert.True(t, entity.Deleted)
			assert.Equal(t, uint64(6), entity.Version)
		})
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     error
		wantCode    string
		wantVersion uint64
	}{
		{
			name:        "version conflict",
			status:      http.StatusConflict,
			body:        `{"error":"version_conflict","message":"stale","current_version":7}`,
			wantErr:     ErrVersionConflict,
			wantCode:    api.ErrCodeVersionConflict,
			wantVersion: 7,
		},
		{
			name:     "not found",
			status:   http.StatusNotFound,
			body:     `{"error":"not_found"}`,
			wantErr:  ErrNotFound,
			wantCode: api.ErrCodeNotFound,
		},
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			body:     `{"error":"unauthorized","message":"session revoked"}`,
			wantErr:  ErrUnauthorized,
			wantCode: api.ErrCodeUnauthorized,
		},
		{
			name:     "plain text from proxy",
			status:   http.StatusNotFound,
			body:     "404 page not found\n",
			wantErr:  ErrNotFound,
			wantCode: api.ErrCodeNotFound,
		},
		{
			name:     "bad gateway",
			status:   http.StatusBadGateway,
			body:     "upstream down",
			wantCode: api.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL).GetEntity(context.Background(), testKey)
			require.Error(t, err)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			var serverErr *ServerError
			require.True(t, errors.As(err, &serverErr))
			assert.Equal(t, tt.status, serverErr.StatusCode)
			assert.Equal(t, tt.wantCode, serverErr.Code)
			assert.Equal(t, tt.wantVersion, serverErr.CurrentVersion)
		})
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(server.URL).GetEntity(ctx, testKey)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEntityPath(t *testing.T) {
	assert.Equal(t, "/api/v1/entities/domain/a%2Fb", EntityPath(models.NewEntityKey("domain", "a/b")))
}
