package push

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/client/engine"
	"github.com/iudanet/gophsync/internal/client/stream"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/pkg/api"
)

var updatedAt = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func encodeEvent(t *testing.T, entity api.Entity) []byte {
	t.Helper()
	data, err := json.Marshal(api.PushEvent{Entity: entity, Origin: "session-1"})
	require.NoError(t, err)
	return data
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		entity  api.Entity
		want    engine.PushEvent
		wantErr error
	}{
		{
			name: "update",
			entity: api.Entity{
				Type: models.EntityTypeDomain, ID: "abc", Version: 2, UpdatedAt: updatedAt,
				Payload: json.RawMessage(`{"status":"validated"}`),
			},
			want: engine.PushEvent{
				Key:       models.NewEntityKey(models.EntityTypeDomain, "abc"),
				Value:     models.DomainState{Status: "validated"},
				Version:   2,
				Timestamp: updatedAt,
			},
		},
		{
			name:   "deleted",
			entity: api.Entity{Type: models.EntityTypeProxy, ID: "p1", Version: 5, Deleted: true, UpdatedAt: updatedAt},
			want: engine.PushEvent{
				Key:       models.NewEntityKey(models.EntityTypeProxy, "p1"),
				Version:   5,
				Timestamp: updatedAt,
			},
		},
		{
			name:    "unknown entity type",
			entity:  api.Entity{Type: "invoice", ID: "1", Payload: json.RawMessage(`{}`)},
			wantErr: models.ErrUnknownPayload,
		},
		{
			name:    "payload fails validation",
			entity:  api.Entity{Type: models.EntityTypeDomain, ID: "abc", Payload: json.RawMessage(`{"status":""}`)},
			wantErr: models.ErrUnknownPayload,
		},
		{
			name:    "missing id",
			entity:  api.Entity{Type: models.EntityTypeDomain, Payload: json.RawMessage(`{"status":"ok"}`)},
			wantErr: models.ErrInvalidKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode(encodeEvent(t, tt.entity))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Key, ev.Key)
			assert.Equal(t, tt.want.Value, ev.Value)
			assert.Equal(t, tt.want.Version, ev.Version)
			assert.True(t, tt.want.Timestamp.Equal(ev.Timestamp))
		})
	}
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)
}

func TestListener_DeliversEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	messages := [][]byte{
		encodeEvent(t, api.Entity{Type: models.EntityTypeDomain, ID: "abc", Version: 1, UpdatedAt: updatedAt, Payload: json.RawMessage(`{"status":"pending"}`)}),
		[]byte(`{"entity":{"type":"domain","id":"abc","payload":{"bogus":true}}}`),
		encodeEvent(t, api.Entity{Type: models.EntityTypeDomain, ID: "abc", Version: 2, UpdatedAt: updatedAt, Deleted: true}),
	}

	authHeaders := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, api.PathPush, r.URL.Path)
		select {
		case authHeaders <- r.Header.Get("Authorization"):
		default:
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, m); err != nil {
				return
			}
		}
		// держим соединение до закрытия клиентом
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	handler := &HandlerMock{
		HandlePushFunc: func(context.Context, engine.PushEvent) bool { return true },
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer token-abc")

	listener, err := Listen(context.Background(), server.URL, header, handler, stream.DefaultSettings(), discardLogger())
	require.NoError(t, err)
	defer listener.Close()

	require.Eventually(t, func() bool {
		return listener.Stats().Received == 3
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "Bearer token-abc", <-authHeaders)
	assert.Equal(t, Stats{Received: 3, Applied: 2, Invalid: 1}, listener.Stats())

	calls := handler.HandlePushCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, models.DomainState{Status: "pending"}, calls[0].Ev.Value)
	assert.Nil(t, calls[1].Ev.Value)
	assert.Equal(t, uint64(2), calls[1].Ev.Version)
}

func TestListen_InvalidURL(t *testing.T) {
	_, err := Listen(context.Background(), "ftp://example.com", nil, &HandlerMock{}, stream.DefaultSettings(), discardLogger())
	assert.Error(t, err)
}
