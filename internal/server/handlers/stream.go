package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/server/hub"
	"github.com/iudanet/gophsync/pkg/api"
)

// HubPublisher рассылает push-события через hub, scope = user_id
type HubPublisher struct {
	hub    *hub.Hub
	logger *slog.Logger
}

// NewHubPublisher creates a publisher backed by the push hub.
func NewHubPublisher(h *hub.Hub, logger *slog.Logger) *HubPublisher {
	return &HubPublisher{hub: h, logger: logger}
}

// Publish отправляет событие всем push-подключениям пользователя, включая автора изменения:
// клиент сам сводит собственный push и подтверждение запроса в один шаг версии.
func (p *HubPublisher) Publish(userID string, event api.PushEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode push event", slog.Any("error", err))
		return
	}
	delivered := p.hub.Broadcast(userID, data, nil)
	p.logger.Debug("push event published",
		slog.String("key", event.Entity.Type+":"+event.Entity.ID),
		slog.Int("delivered", delivered))
}

// StreamHandler обслуживает websocket каналы: push (сервер -> клиенты пользователя)
// и sync (ретрансляция сообщений между экземплярами одной сессии).
type StreamHandler struct {
	logger   *slog.Logger
	push     *hub.Hub
	relay    *hub.Hub
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a handler for the push and sync channels.
func NewStreamHandler(logger *slog.Logger, push, relay *hub.Hub) *StreamHandler {
	return &StreamHandler{
		logger: logger,
		push:   push,
		relay:  relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// клиенты - CLI и другие процессы, не браузер
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Push обрабатывает GET /api/v1/push (websocket)
// Входящие сообщения клиента игнорируются.
func (h *StreamHandler) Push(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		SendError(h.logger, w, api.ErrCodeUnauthorized, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту
		h.logger.WarnContext(r.Context(), "push upgrade failed", slog.Any("error", err))
		return
	}

	sub := h.push.Join(userID, conn)
	h.push.Serve(r.Context(), sub, nil)
}

// Sync обрабатывает GET /api/v1/sync (websocket)
// Каждое валидное сообщение синхронизации пересылается остальным экземплярам сессии.
func (h *StreamHandler) Sync(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := GetSessionID(r.Context())
	if !ok {
		SendError(h.logger, w, api.ErrCodeUnauthorized, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "sync upgrade failed", slog.Any("error", err))
		return
	}

	sub := h.relay.Join(sessionID, conn)
	h.relay.Serve(r.Context(), sub, func(data []byte) {
		var msg models.SyncMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("dropping invalid sync message", slog.String("session_id", sessionID), slog.Any("error", err))
			return
		}
		if err := msg.Validate(); err != nil {
			h.logger.Warn("dropping invalid sync message", slog.String("session_id", sessionID), slog.Any("error", err))
			return
		}
		h.relay.Broadcast(sessionID, data, sub)
	})
}
