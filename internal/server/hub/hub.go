// Package hub рассылает сообщения websocket подписчикам, сгруппированным по scope
// (пользователь для push-канала, сессия для канала синхронизации экземпляров).
package hub

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/iudanet/gophsync/internal/metrics"
)

// Settings таймауты соединения.
type Settings struct {
	WriteTimeout time.Duration
	// ReadTimeout время без входящих кадров (включая pong), после которого соединение закрывается
	ReadTimeout  time.Duration
	PingInterval time.Duration
	// MaxMessageSize максимальный размер входящего сообщения в байтах
	MaxMessageSize int64
}

// DefaultSettings returns the default hub settings.
func DefaultSettings() Settings {
	return Settings{
		WriteTimeout:   5 * time.Second,
		ReadTimeout:    45 * time.Second,
		PingInterval:   15 * time.Second,
		MaxMessageSize: 1 << 20,
	}
}

// ErrSubscriberClosed запись в закрытое соединение
var ErrSubscriberClosed = errors.New("subscriber closed")

// Subscriber одно websocket соединение.
type Subscriber struct {
	conn   *websocket.Conn
	ID     string
	Scope  string
	mu     sync.Mutex // сериализует запись в conn
	closed bool
}

// WriteMessage sends a websocket message guarded by the subscriber's mutex and write deadline.
func (s *Subscriber) WriteMessage(messageType int, data []byte, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSubscriberClosed
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	_ = s.conn.Close()
}

// Hub набор подписчиков, сгруппированных по scope.
type Hub struct {
	logger   *slog.Logger
	scopes   map[string]map[string]*Subscriber
	channel  string
	settings Settings
	mu       sync.RWMutex
}

// New creates a hub; channel labels metrics and logs ("push", "sync").
func New(channel string, settings Settings, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:   logger.With("channel", channel),
		scopes:   make(map[string]map[string]*Subscriber),
		channel:  channel,
		settings: settings,
	}
}

// Join регистрирует соединение в scope.
func (h *Hub) Join(scope string, conn *websocket.Conn) *Subscriber {
	sub := &Subscriber{conn: conn, ID: uuid.NewString(), Scope: scope}

	h.mu.Lock()
	subs, ok := h.scopes[scope]
	if !ok {
		subs = make(map[string]*Subscriber)
		h.scopes[scope] = subs
	}
	subs[sub.ID] = sub
	h.mu.Unlock()

	metrics.ServerConnections.WithLabelValues(h.channel).Inc()
	h.logger.Debug("Subscriber joined", "scope", scope, "subscriber", sub.ID)
	return sub
}

// Leave удаляет подписчика и закрывает соединение. Повторный вызов ничего не делает.
func (h *Hub) Leave(sub *Subscriber) {
	h.mu.Lock()
	subs := h.scopes[sub.Scope]
	_, ok := subs[sub.ID]
	if ok {
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(h.scopes, sub.Scope)
		}
	}
	h.mu.Unlock()

	sub.close()
	if ok {
		metrics.ServerConnections.WithLabelValues(h.channel).Dec()
		h.logger.Debug("Subscriber left", "scope", sub.Scope, "subscriber", sub.ID)
	}
}

// Count returns the number of subscribers in scope.
func (h *Hub) Count(scope string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.scopes[scope])
}

// Broadcast отправляет data всем подписчикам scope, кроме except (может быть nil).
// Подписчик, запись в которого не удалась, отключается. Возвращает число доставок.
func (h *Hub) Broadcast(scope string, data []byte, except *Subscriber) int {
	h.mu.RLock()
	subs := maps.Clone(h.scopes[scope])
	h.mu.RUnlock()

	delivered := 0
	for id, sub := range subs {
		if except != nil && id == except.ID {
			continue
		}
		if err := sub.WriteMessage(websocket.TextMessage, data, h.settings.WriteTimeout); err != nil {
			h.logger.Warn("Failed to deliver message", "scope", scope, "subscriber", id, "error", err)
			h.Leave(sub)
			continue
		}
		delivered++
	}
	return delivered
}

// Serve читает сообщения подписчика до ошибки соединения или отмены ctx,
// параллельно отправляя ping. onMessage может быть nil: входящие сообщения отбрасываются.
// По выходу подписчик удаляется из hub.
func (h *Hub) Serve(ctx context.Context, sub *Subscriber, onMessage func([]byte)) {
	defer h.Leave(sub)

	sub.conn.SetReadLimit(h.settings.MaxMessageSize)
	_ = sub.conn.SetReadDeadline(time.Now().Add(h.settings.ReadTimeout))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(h.settings.ReadTimeout))
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go h.ping(ctx, sub)

	for {
		messageType, data, err := sub.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(ctx.Err(), context.Canceled) {
				h.logger.Debug("Subscriber read failed", "scope", sub.Scope, "subscriber", sub.ID, "error", err)
			}
			return
		}
		_ = sub.conn.SetReadDeadline(time.Now().Add(h.settings.ReadTimeout))
		if messageType == websocket.TextMessage && onMessage != nil {
			onMessage(data)
		}
	}
}

func (h *Hub) ping(ctx context.Context, sub *Subscriber) {
	ticker := time.NewTicker(h.settings.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Закрываем соединение, чтобы разблокировать ReadMessage
			sub.close()
			return
		case <-ticker.C:
			sub.mu.Lock()
			closed := sub.closed
			var err error
			if !closed {
				err = sub.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.settings.WriteTimeout))
			}
			sub.mu.Unlock()
			if closed || err != nil {
				return
			}
		}
	}
}

// Close отключает всех подписчиков (остановка сервера).
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*Subscriber
	for _, subs := range h.scopes {
		for _, sub := range subs {
			all = append(all, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range all {
		_ = sub.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), h.settings.WriteTimeout)
		h.Leave(sub)
	}
}
