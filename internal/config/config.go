// Package config загружает конфигурацию клиента и сервера:
// значения по умолчанию, YAML файл, переменные окружения GOPHSYNC_*, флаги командной строки.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/iudanet/gophsync/internal/client/engine"
	"github.com/iudanet/gophsync/internal/client/optimistic"
	"github.com/iudanet/gophsync/internal/client/tracker"
)

// Config корневая конфигурация.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Client ClientConfig `yaml:"client"`
	Server ServerConfig `yaml:"server"`
	Engine EngineConfig `yaml:"engine"`
}

// EngineConfig параметры движка согласованности.
type EngineConfig struct {
	TrackerLoopWindow       time.Duration `yaml:"tracker_loop_window"`
	CoalesceWindow          time.Duration `yaml:"coalesce_window"`
	PushLookback            time.Duration `yaml:"push_lookback"`
	OptimisticLoopWindow    time.Duration `yaml:"optimistic_loop_window"`
	PendingExpiry           time.Duration `yaml:"pending_expiry"`
	ExpirySweepInterval     time.Duration `yaml:"expiry_sweep_interval"`
	CacheTTL                time.Duration `yaml:"cache_ttl"`
	CacheSweepInterval      time.Duration `yaml:"cache_sweep_interval"`
	DedupTTL                time.Duration `yaml:"dedup_ttl"`
	TrackerLoopThreshold    int           `yaml:"tracker_loop_threshold"`
	HistoryLimit            int           `yaml:"history_limit"`
	OptimisticLoopThreshold int           `yaml:"optimistic_loop_threshold"`
	MaxRetries              int           `yaml:"max_retries"`
	DedupSize               int           `yaml:"dedup_size"`
}

// ClientConfig параметры клиента.
type ClientConfig struct {
	ServerURL string `yaml:"server_url"`
	// DBPath путь к локальной bolt базе со снимком кэша; пустой = без снимка
	DBPath string `yaml:"db_path"`
	Token  string `yaml:"token"`
	// Passphrase шифрует сохранённый токен сессии; пустой = токен хранится открыто
	Passphrase string `yaml:"passphrase"`
}

// ServerConfig параметры эталонного сервера.
type ServerConfig struct {
	Addr       string        `yaml:"addr"`
	DBPath     string        `yaml:"db_path"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	RateWindow time.Duration `yaml:"rate_window"`
	// RateLimit запросов в RateWindow на IP; 0 = без ограничения
	RateLimit int `yaml:"rate_limit"`
}

// LogConfig параметры логирования.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the configuration with every field set to its default.
func Default() *Config {
	ec := engine.DefaultConfig()
	return &Config{
		Engine: EngineConfig{
			TrackerLoopThreshold:    ec.Tracker.LoopThreshold,
			TrackerLoopWindow:       ec.Tracker.LoopWindow,
			HistoryLimit:            ec.Tracker.HistoryLimit,
			CoalesceWindow:          ec.Tracker.CoalesceWindow,
			PushLookback:            ec.Tracker.PushLookback,
			OptimisticLoopThreshold: ec.Optimistic.LoopThreshold,
			OptimisticLoopWindow:    ec.Optimistic.LoopWindow,
			MaxRetries:              ec.Optimistic.MaxRetries,
			PendingExpiry:           ec.Optimistic.ExpireAfter,
			ExpirySweepInterval:     ec.Optimistic.SweepInterval,
			CacheTTL:                ec.CacheTTL,
			CacheSweepInterval:      ec.CacheSweepInterval,
			DedupTTL:                ec.DedupTTL,
			DedupSize:               ec.DedupSize,
		},
		Client: ClientConfig{
			ServerURL: "http://localhost:8080",
			DBPath:    "gophsync-client.db",
		},
		Server: ServerConfig{
			Addr:       ":8080",
			DBPath:     "gophsync.db",
			SessionTTL: 24 * time.Hour,
			RateLimit:  100,
			RateWindow: time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// EngineSettings переводит секцию Engine в конфигурацию движка.
func (c *Config) EngineSettings() engine.Config {
	e := c.Engine
	return engine.Config{
		Tracker: tracker.Config{
			LoopThreshold:  e.TrackerLoopThreshold,
			LoopWindow:     e.TrackerLoopWindow,
			HistoryLimit:   e.HistoryLimit,
			PushLookback:   e.PushLookback,
			CoalesceWindow: e.CoalesceWindow,
		},
		Optimistic: optimistic.Config{
			LoopThreshold: e.OptimisticLoopThreshold,
			LoopWindow:    e.OptimisticLoopWindow,
			MaxRetries:    e.MaxRetries,
			ExpireAfter:   e.PendingExpiry,
			SweepInterval: e.ExpirySweepInterval,
		},
		CacheTTL:           e.CacheTTL,
		CacheSweepInterval: e.CacheSweepInterval,
		DedupTTL:           e.DedupTTL,
		DedupSize:          e.DedupSize,
	}
}

// Validate проверяет значения после применения всех источников.
// Возвращает все найденные ошибки сразу.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	e := c.Engine
	positiveInts := []struct {
		name  string
		value int
	}{
		{"engine.tracker_loop_threshold", e.TrackerLoopThreshold},
		{"engine.history_limit", e.HistoryLimit},
		{"engine.optimistic_loop_threshold", e.OptimisticLoopThreshold},
		{"engine.dedup_size", e.DedupSize},
	}
	for _, f := range positiveInts {
		if f.value <= 0 {
			bad("%s must be positive, got %d", f.name, f.value)
		}
	}
	if e.MaxRetries < 0 {
		bad("engine.max_retries must not be negative, got %d", e.MaxRetries)
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"engine.tracker_loop_window", e.TrackerLoopWindow},
		{"engine.coalesce_window", e.CoalesceWindow},
		{"engine.push_lookback", e.PushLookback},
		{"engine.optimistic_loop_window", e.OptimisticLoopWindow},
		{"engine.pending_expiry", e.PendingExpiry},
		{"engine.expiry_sweep_interval", e.ExpirySweepInterval},
		{"engine.cache_ttl", e.CacheTTL},
		{"engine.cache_sweep_interval", e.CacheSweepInterval},
		{"engine.dedup_ttl", e.DedupTTL},
	}
	for _, f := range durations {
		if f.value <= 0 {
			bad("%s must be positive, got %s", f.name, f.value)
		}
	}

	if u, err := url.Parse(c.Client.ServerURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		bad("client.server_url must be an http(s) URL, got %q", c.Client.ServerURL)
	}

	if c.Server.SessionTTL <= 0 {
		bad("server.session_ttl must be positive, got %s", c.Server.SessionTTL)
	}
	if c.Server.RateLimit < 0 {
		bad("server.rate_limit must not be negative, got %d", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow <= 0 {
		bad("server.rate_window must be positive when rate_limit is set")
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		bad("log.level: %v", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		bad("log.format must be text or json, got %q", c.Log.Format)
	}

	return errors.Join(errs...)
}

// ValidateServer проверяет поля, обязательные только для сервера.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Server.JWTSecret) < 16 {
		return fmt.Errorf("%w: server.jwt_secret must be at least 16 characters", ErrInvalidConfig)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalidConfig)
	}
	return nil
}

// Logger создаёт slog логгер по секции Log; verbose принудительно включает debug.
func (l LogConfig) Logger(w io.Writer, verbose bool) (*slog.Logger, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}
