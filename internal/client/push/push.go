// Package push получает зафиксированные сервером изменения по websocket каналу
// /api/v1/push и передаёт их движку.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/iudanet/gophsync/internal/client/engine"
	"github.com/iudanet/gophsync/internal/client/stream"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/pkg/api"
)

// Handler применяет push-обновление; *engine.Engine реализует его.
//
//go:generate moq -out handler_mock.go . Handler
type Handler interface {
	HandlePush(ctx context.Context, ev engine.PushEvent) bool
}

// Stats счётчики принятых событий.
type Stats struct {
	Received uint64
	Applied  uint64
	Invalid  uint64
}

// Listener потребитель push канала.
type Listener struct {
	ctx      context.Context
	client   *stream.Client
	handler  Handler
	logger   *slog.Logger
	received atomic.Uint64
	applied  atomic.Uint64
	invalid  atomic.Uint64
}

// Listen подключается к push каналу сервера serverURL и держит соединение до Close или отмены ctx.
// header передаётся при каждом рукопожатии (Authorization).
func Listen(ctx context.Context, serverURL string, header http.Header, handler Handler, settings stream.Settings, logger *slog.Logger) (*Listener, error) {
	wsURL, err := stream.WebsocketURL(serverURL, api.PathPush)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		ctx:     ctx,
		handler: handler,
		logger:  logger,
	}
	l.client = stream.New(ctx, wsURL, header, l.handle, settings, logger.With("channel", "push"))
	return l, nil
}

// Connected reports whether the push connection is up.
func (l *Listener) Connected() bool {
	return l.client.Connected()
}

// Stats returns event counters.
func (l *Listener) Stats() Stats {
	return Stats{
		Received: l.received.Load(),
		Applied:  l.applied.Load(),
		Invalid:  l.invalid.Load(),
	}
}

// Close closes the push connection.
func (l *Listener) Close() {
	l.client.Close()
}

func (l *Listener) handle(data []byte) {
	l.received.Add(1)

	ev, err := Decode(data)
	if err != nil {
		l.invalid.Add(1)
		l.logger.Warn("Dropping invalid push event", "error", err)
		return
	}
	if l.handler.HandlePush(l.ctx, ev) {
		l.applied.Add(1)
	}
}

// Decode разбирает api.PushEvent и проверяет payload по типу сущности.
func Decode(data []byte) (engine.PushEvent, error) {
	var msg api.PushEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return engine.PushEvent{}, fmt.Errorf("failed to decode push event: %w", err)
	}
	return FromEntity(msg.Entity)
}

// FromEntity переводит сущность сервера в push-обновление движка.
// Удалённая сущность даёт событие с nil значением.
func FromEntity(entity api.Entity) (engine.PushEvent, error) {
	key := models.NewEntityKey(entity.Type, entity.ID)
	if err := key.Validate(); err != nil {
		return engine.PushEvent{}, err
	}

	ev := engine.PushEvent{
		Timestamp: entity.UpdatedAt,
		Key:       key,
		Version:   entity.Version,
	}
	if entity.Deleted {
		return ev, nil
	}

	value, err := models.DecodeValue(key.Type, entity.Payload)
	if err != nil {
		return engine.PushEvent{}, err
	}
	ev.Value = value
	return ev, nil
}
