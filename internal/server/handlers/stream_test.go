package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/server/hub"
	"github.com/iudanet/gophsync/pkg/api"
)

type streamFixture struct {
	push  *hub.Hub
	relay *hub.Hub
	srv   *httptest.Server
}

// newStreamFixture поднимает push и sync каналы; user и session берутся из query
// вместо токена
func newStreamFixture(t *testing.T) *streamFixture {
	t.Helper()

	f := &streamFixture{
		push:  hub.New("push", hub.DefaultSettings(), setupTestLogger()),
		relay: hub.New("sync", hub.DefaultSettings(), setupTestLogger()),
	}
	handler := NewStreamHandler(setupTestLogger(), f.push, f.relay)

	mux := http.NewServeMux()
	withSession := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			next(w, r.WithContext(WithSession(r.Context(), q.Get("user"), q.Get("session"))))
		}
	}
	mux.HandleFunc(api.PathPush, withSession(handler.Push))
	mux.HandleFunc(api.PathSync, withSession(handler.Sync))

	f.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		f.push.Close()
		f.relay.Close()
		f.srv.Close()
	})
	return f
}

func (f *streamFixture) dial(t *testing.T, path, user, session string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + path + "?user=" + user + "&session=" + session
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) ([]byte, error) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, data, err := conn.ReadMessage()
	return data, err
}

func TestHubPublisher_PublishToUser(t *testing.T) {
	f := newStreamFixture(t)

	mine := f.dial(t, api.PathPush, "user-1", "session-1")
	other := f.dial(t, api.PathPush, "user-2", "session-2")
	require.Eventually(t, func() bool { return f.push.Count("user-1") == 1 && f.push.Count("user-2") == 1 },
		2*time.Second, 10*time.Millisecond)

	publisher := NewHubPublisher(f.push, setupTestLogger())
	publisher.Publish("user-1", api.PushEvent{
		Entity: api.Entity{Type: "domain", ID: "abc", Version: 3, Payload: json.RawMessage(`{"status":"validated"}`)},
		Origin: "session-1",
	})

	data, err := readMessage(t, mine, 2*time.Second)
	require.NoError(t, err)
	var event api.PushEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, uint64(3), event.Entity.Version)
	assert.Equal(t, "session-1", event.Origin)

	_, err = readMessage(t, other, 100*time.Millisecond)
	assert.Error(t, err)
}

func TestStreamHandler_SyncRelay(t *testing.T) {
	f := newStreamFixture(t)

	a := f.dial(t, api.PathSync, "user-1", "session-1")
	b := f.dial(t, api.PathSync, "user-1", "session-1")
	stranger := f.dial(t, api.PathSync, "user-1", "session-2")
	require.Eventually(t, func() bool { return f.relay.Count("session-1") == 2 && f.relay.Count("session-2") == 1 },
		2*time.Second, 10*time.Millisecond)

	// невалидное сообщение не пересылается
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"kind":"explode"}`)))

	valid := `{"kind":"update","entityType":"domain","entityId":"abc","payload":{"status":"pending"},"timestamp":1,"originId":"instance-a"}`
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(valid)))

	data, err := readMessage(t, b, 2*time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, valid, string(data))

	_, err = readMessage(t, a, 100*time.Millisecond)
	assert.Error(t, err, "sender must not receive its own message")
	_, err = readMessage(t, stranger, 100*time.Millisecond)
	assert.Error(t, err, "other sessions must not receive the message")
}

func TestStreamHandler_RequiresSession(t *testing.T) {
	f := newStreamFixture(t)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + api.PathSync
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
