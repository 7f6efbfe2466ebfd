package broadcast

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/iudanet/gophsync/internal/client/stream"
	"github.com/iudanet/gophsync/pkg/api"
)

// WebsocketTransport транспорт через серверный ретранслятор /api/v1/sync.
// Сервер пересылает сообщение всем соединениям той же сессии, кроме отправителя.
type WebsocketTransport struct {
	client *stream.Client
	subs   map[uint64]func([]byte)
	nextID uint64
	mu     sync.RWMutex
}

// NewWebsocketTransport подключается к ретранслятору сервера serverURL.
// header передаётся при каждом рукопожатии и должен содержать токен сессии.
func NewWebsocketTransport(ctx context.Context, serverURL string, header http.Header, settings stream.Settings, logger *slog.Logger) (*WebsocketTransport, error) {
	wsURL, err := stream.WebsocketURL(serverURL, api.PathSync)
	if err != nil {
		return nil, err
	}

	t := &WebsocketTransport{subs: make(map[uint64]func([]byte))}
	t.client = stream.New(ctx, wsURL, header, t.dispatch, settings, logger.With("channel", "sync"))
	return t, nil
}

// Send implements Transport.
func (t *WebsocketTransport) Send(ctx context.Context, data []byte) error {
	return t.client.Send(ctx, data)
}

// Subscribe implements Transport.
func (t *WebsocketTransport) Subscribe(handler func(data []byte)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	t.subs[id] = handler
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

// Connected reports whether the relay connection is up.
func (t *WebsocketTransport) Connected() bool {
	return t.client.Connected()
}

// Close closes the relay connection.
func (t *WebsocketTransport) Close() {
	t.client.Close()
}

func (t *WebsocketTransport) dispatch(data []byte) {
	t.mu.RLock()
	handlers := make([]func([]byte), 0, len(t.subs))
	for _, h := range t.subs {
		handlers = append(handlers, h)
	}
	t.mu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
}
