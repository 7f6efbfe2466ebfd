// Package server собирает HTTP API эталонного сервера: маршруты, middleware и websocket каналы.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iudanet/gophsync/internal/server/handlers"
	"github.com/iudanet/gophsync/internal/server/hub"
	"github.com/iudanet/gophsync/internal/server/middleware"
	"github.com/iudanet/gophsync/internal/server/storage"
	"github.com/iudanet/gophsync/pkg/api"
)

// Store хранилище, нужное серверу
type Store interface {
	storage.EntityStorage
	storage.SessionStorage
	handlers.Pinger
}

// Options параметры сборки роутера
type Options struct {
	JWT handlers.JWTConfig
	// RateLimit запросов за RateWindow; 0 отключает ограничение
	RateLimit  int
	RateWindow time.Duration
	Version    string
}

// Server HTTP API с websocket каналами push и sync.
type Server struct {
	handler http.Handler
	push    *hub.Hub
	relay   *hub.Hub
}

// New собирает роутер
func New(store Store, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		push:  hub.New("push", hub.DefaultSettings(), logger),
		relay: hub.New("sync", hub.DefaultSettings(), logger),
	}

	sessionHandler := handlers.NewSessionHandler(logger, store, opts.JWT)
	entityHandler := handlers.NewEntityHandler(logger, store, handlers.NewHubPublisher(s.push, logger))
	streamHandler := handlers.NewStreamHandler(logger, s.push, s.relay)
	healthHandler := handlers.NewHealthHandler(logger, store, opts.Version)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.LoggingWithSkip(logger, []string{api.PathHealth, "/metrics"}))
	r.Use(middleware.RecoveryMiddleware(logger))

	r.Get(api.PathHealth, healthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	limit := func(key middleware.KeyFunc) func(http.Handler) http.Handler {
		if opts.RateLimit <= 0 {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RateLimitMiddleware(middleware.NewRateLimiter(opts.RateLimit, opts.RateWindow, 10_000), key, logger)
	}

	r.With(limit(middleware.ByClientIP)).Post(api.PathSessions, sessionHandler.Create)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(logger, opts.JWT, store))
		r.Use(limit(middleware.ByUser))

		r.Delete(api.PathSessionCurrent, sessionHandler.Revoke)

		r.Route(api.PathEntities, func(r chi.Router) {
			r.Get("/{type}", entityHandler.List)
			r.Get("/{type}/{id}", entityHandler.Get)
			r.Put("/{type}/{id}", entityHandler.Put)
			r.Delete("/{type}/{id}", entityHandler.Delete)
		})
	})

	// websocket каналы без rate limit: одно долгое соединение на экземпляр
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(logger, opts.JWT, store))
		r.Get(api.PathPush, streamHandler.Push)
		r.Get(api.PathSync, streamHandler.Sync)
	})

	s.handler = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close отключает websocket подписчиков
func (s *Server) Close() {
	s.push.Close()
	s.relay.Close()
}
