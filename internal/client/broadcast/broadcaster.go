// Package broadcast рассылает подтверждённые обновления, инвалидации и откаты
// другим экземплярам той же сессии и применяет входящие сообщения от них.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/gophsync/internal/metrics"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/schedule"
)

// Transport pub/sub примитив, общий для экземпляров одной сессии.
// Доставка at-least-once, порядок не гарантируется; отправитель может получить своё сообщение.
//
//go:generate moq -out transport_mock.go . Transport
type Transport interface {
	Send(ctx context.Context, data []byte) error
	Subscribe(handler func(data []byte)) (unsubscribe func())
}

// Handler получает принятые входящие сообщения (собственные эхо уже отброшены).
type Handler func(ctx context.Context, msg models.SyncMessage)

// Broadcaster отправляет и принимает SyncMessage.
// Каждое исходящее сообщение несёт originID экземпляра; входящие с тем же originID отбрасываются.
type Broadcaster struct {
	transport   Transport
	clock       schedule.Clock
	logger      *slog.Logger
	unsubscribe func()
	handlers    map[uint64]Handler
	originID    string
	nextID      uint64
	mu          sync.RWMutex
}

// New creates a broadcaster with a fresh random origin id.
func New(transport Transport, clock schedule.Clock, logger *slog.Logger) *Broadcaster {
	return NewWithOrigin(uuid.NewString(), transport, clock, logger)
}

// NewWithOrigin creates a broadcaster with a fixed origin id.
func NewWithOrigin(originID string, transport Transport, clock schedule.Clock, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		originID:  originID,
		transport: transport,
		clock:     clock,
		logger:    logger,
		handlers:  make(map[uint64]Handler),
	}
}

// OriginID returns the id attached to every outgoing message.
func (b *Broadcaster) OriginID() string {
	return b.originID
}

// Start подписывается на транспорт. Повторный вызов ничего не делает.
func (b *Broadcaster) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.unsubscribe != nil {
		return
	}
	b.unsubscribe = b.transport.Subscribe(b.Receive)
}

// Stop отписывается от транспорта.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	unsubscribe := b.unsubscribe
	b.unsubscribe = nil
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// OnMessage регистрирует обработчик входящих сообщений. Возвращает функцию отписки.
func (b *Broadcaster) OnMessage(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Publish проставляет originID (и время, если не задано) и отправляет сообщение.
func (b *Broadcaster) Publish(ctx context.Context, msg models.SyncMessage) error {
	msg.OriginID = b.originID
	if msg.Timestamp == 0 {
		msg.Timestamp = b.clock.Now().UnixMilli()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode sync message: %w", err)
	}
	if err := b.transport.Send(ctx, data); err != nil {
		return fmt.Errorf("failed to send sync message: %w", err)
	}

	metrics.SyncMessages.WithLabelValues("out", string(msg.Kind)).Inc()
	return nil
}

// Receive разбирает входящее сообщение и передаёт его обработчикам.
// Некорректные сообщения и собственные эхо отбрасываются. Никогда не блокирует дольше обработчиков.
func (b *Broadcaster) Receive(data []byte) {
	var msg models.SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		metrics.SyncMessages.WithLabelValues("in", "invalid").Inc()
		b.logger.Warn("Dropping invalid sync message", "error", err)
		return
	}

	if msg.OriginID == b.originID {
		metrics.SelfEchoDropped.Inc()
		return
	}
	metrics.SyncMessages.WithLabelValues("in", string(msg.Kind)).Inc()

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	ctx := context.Background()
	for _, h := range handlers {
		h(ctx, msg)
	}
}

// MessageTime returns the message timestamp as time.Time.
func MessageTime(msg models.SyncMessage) time.Time {
	return time.UnixMilli(msg.Timestamp)
}
