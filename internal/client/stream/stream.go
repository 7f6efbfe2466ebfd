// Package stream держит websocket соединение с сервером: переподключение с backoff,
// дедлайны чтения и записи, ping. Используется push-каналом и ретранслятором
// сообщений между экземплярами.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrClosed     = errors.New("stream closed")
	ErrBufferFull = errors.New("stream send buffer full")
)

// Settings таймауты соединения.
type Settings struct {
	HandshakeTimeout time.Duration
	// ReconnectMin начальная пауза перед переподключением, удваивается до ReconnectMax
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	PingInterval time.Duration
	WriteTimeout time.Duration
	// ReadTimeout должен быть больше PingInterval: pong продлевает дедлайн чтения
	ReadTimeout time.Duration
	SendBuffer  int
}

// DefaultSettings returns the default stream timeouts.
func DefaultSettings() Settings {
	return Settings{
		HandshakeTimeout: 5 * time.Second,
		ReconnectMin:     500 * time.Millisecond,
		ReconnectMax:     30 * time.Second,
		PingInterval:     15 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadTimeout:      45 * time.Second,
		SendBuffer:       64,
	}
}

// Handler получает каждое текстовое сообщение сервера.
type Handler func(data []byte)

// Client websocket клиент с переподключением.
type Client struct {
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *slog.Logger
	dialer    *websocket.Dialer
	header    http.Header
	onMessage Handler
	send      chan []byte
	done      chan struct{}
	url       string
	settings  Settings
	connected atomic.Bool
	closeOnce sync.Once
}

// New подключается к url и держит соединение до Close или отмены ctx.
// header передаётся при каждом рукопожатии (например, Authorization).
func New(ctx context.Context, rawURL string, header http.Header, onMessage Handler, settings Settings, logger *slog.Logger) *Client {
	cancelCtx, cancel := context.WithCancel(ctx)
	c := &Client{
		ctx:       cancelCtx,
		cancel:    cancel,
		logger:    logger,
		dialer:    &websocket.Dialer{HandshakeTimeout: settings.HandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		header:    header,
		onMessage: onMessage,
		send:      make(chan []byte, settings.SendBuffer),
		done:      make(chan struct{}),
		url:       rawURL,
		settings:  settings,
	}
	go c.run()
	return c
}

// Send ставит сообщение в очередь на отправку.
// Пока соединения нет, сообщения копятся в буфере и уходят после подключения.
func (c *Client) Send(_ context.Context, data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// Connected reports whether a websocket connection is currently established.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Close закрывает соединение и ждёт завершения фоновой горутины.
func (c *Client) Close() {
	c.closeOnce.Do(c.cancel)
	<-c.done
}

func (c *Client) run() {
	defer close(c.done)

	backoff := c.settings.ReconnectMin
	for {
		ws, _, err := c.dialer.DialContext(c.ctx, c.url, c.header)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Warn("Stream connect failed", "url", c.url, "error", err, "retry_in", backoff)
		} else {
			backoff = c.settings.ReconnectMin
			c.logger.Info("Stream connected", "url", c.url)
			c.connected.Store(true)
			err = c.handle(ws)
			c.connected.Store(false)
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Warn("Stream disconnected", "url", c.url, "error", err)
		}

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.settings.ReconnectMax {
			backoff = c.settings.ReconnectMax
		}
	}
}

func (c *Client) handle(ws *websocket.Conn) error {
	defer ws.Close()

	handleCtx, handleCancel := context.WithCancel(c.ctx)
	defer handleCancel()

	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
	})

	writeErr := make(chan error, 1)
	go func() {
		defer handleCancel()
		writeErr <- c.writeLoop(handleCtx, ws)
	}()

	var readErr error
	for {
		if err := ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout)); err != nil {
			readErr = err
			break
		}
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if c.onMessage != nil {
			c.onMessage(message)
		}
	}

	// запись ограничена WriteTimeout, writeLoop завершается после отмены
	handleCancel()
	if err := <-writeErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return readErr
}

func (c *Client) writeLoop(ctx context.Context, ws *websocket.Conn) error {
	ticker := time.NewTicker(c.settings.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(c.settings.WriteTimeout)
			_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return ctx.Err()
		case message := <-c.send:
			if err := ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout)); err != nil {
				return err
			}
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				// Дедлайн websocket записи не восстанавливается, сообщение возвращается в очередь
				c.requeue(message)
				return fmt.Errorf("failed to write message: %w", err)
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.settings.WriteTimeout)); err != nil {
				return fmt.Errorf("failed to write ping: %w", err)
			}
		}
	}
}

func (c *Client) requeue(message []byte) {
	select {
	case c.send <- message:
	default:
		c.logger.Warn("Stream buffer full, message dropped", "url", c.url)
	}
}

// WebsocketURL строит ws(s) URL из базового http(s) адреса сервера и пути.
func WebsocketURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}
