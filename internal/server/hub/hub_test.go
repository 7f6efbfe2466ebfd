package hub

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	hub      *Hub
	srv      *httptest.Server
	received chan string
}

// newTestServer поднимает websocket endpoint, который подключает клиента к scope из query.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		hub:      New("test", DefaultSettings(), slog.New(slog.NewTextHandler(io.Discard, nil))),
		received: make(chan string, 16),
	}
	upgrader := websocket.Upgrader{}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sub := ts.hub.Join(r.URL.Query().Get("scope"), conn)
		ts.hub.Serve(r.Context(), sub, func(data []byte) {
			ts.received <- string(data)
			ts.hub.Broadcast(sub.Scope, data, sub)
		})
	}))
	t.Cleanup(func() {
		ts.hub.Close()
		ts.srv.Close()
	})
	return ts
}

func (ts *testServer) dial(t *testing.T, scope string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/?scope=" + scope
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (ts *testServer) waitCount(t *testing.T, scope string, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return ts.hub.Count(scope) == want }, 2*time.Second, 10*time.Millisecond)
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestHub_BroadcastScoped(t *testing.T) {
	ts := newTestServer(t)

	alice1 := ts.dial(t, "alice")
	alice2 := ts.dial(t, "alice")
	bob := ts.dial(t, "bob")
	ts.waitCount(t, "alice", 2)
	ts.waitCount(t, "bob", 1)

	delivered := ts.hub.Broadcast("alice", []byte(`{"kind":"update"}`), nil)
	assert.Equal(t, 2, delivered)
	assert.Equal(t, `{"kind":"update"}`, readText(t, alice1))
	assert.Equal(t, `{"kind":"update"}`, readText(t, alice2))

	// bob ничего не получает
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := bob.ReadMessage()
	assert.Error(t, err)
}

func TestHub_RelayExcludesSender(t *testing.T) {
	ts := newTestServer(t)

	sender := ts.dial(t, "session-1")
	peer := ts.dial(t, "session-1")
	ts.waitCount(t, "session-1", 2)

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte("hello")))
	assert.Equal(t, "hello", <-ts.received)
	assert.Equal(t, "hello", readText(t, peer))

	require.NoError(t, sender.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := sender.ReadMessage()
	assert.Error(t, err, "sender must not receive its own message")
}

func TestHub_LeaveOnDisconnect(t *testing.T) {
	ts := newTestServer(t)

	conn := ts.dial(t, "alice")
	ts.waitCount(t, "alice", 1)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = conn.Close()

	ts.waitCount(t, "alice", 0)
	assert.Equal(t, 0, ts.hub.Broadcast("alice", []byte("x"), nil))
}

func TestHub_CloseDisconnectsAll(t *testing.T) {
	ts := newTestServer(t)

	conn := ts.dial(t, "alice")
	ts.waitCount(t, "alice", 1)

	ts.hub.Close()
	assert.Equal(t, 0, ts.hub.Count("alice"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway) || websocket.IsUnexpectedCloseError(err))
}

func TestHub_ServeStopsOnContextCancel(t *testing.T) {
	h := New("test", DefaultSettings(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(ctx, h.Join("alice", conn), nil)
		close(served)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.Count("alice") == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after context cancel")
	}
	assert.Equal(t, 0, h.Count("alice"))
}

func TestSubscriber_WriteAfterClose(t *testing.T) {
	ts := newTestServer(t)
	_ = ts.dial(t, "alice")
	ts.waitCount(t, "alice", 1)

	ts.hub.mu.RLock()
	var sub *Subscriber
	for _, s := range ts.hub.scopes["alice"] {
		sub = s
	}
	ts.hub.mu.RUnlock()

	ts.hub.Leave(sub)
	ts.hub.Leave(sub)
	assert.ErrorIs(t, sub.WriteMessage(websocket.TextMessage, []byte("x"), time.Second), ErrSubscriberClosed)
}
