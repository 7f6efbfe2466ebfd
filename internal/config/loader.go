package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix префикс переменных окружения.
const EnvPrefix = "GOPHSYNC_"

// Load собирает конфигурацию: значения по умолчанию, затем файл path (если задан),
// затем переменные окружения. Validate не вызывается, чтобы вызывающий мог применить флаги.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := applyEnvironmentOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile накладывает YAML файл поверх cfg: отсутствующие в файле поля сохраняют значения по умолчанию.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidConfigFormat, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnvironmentOverrides применяет GOPHSYNC_* переменные.
func applyEnvironmentOverrides(cfg *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"SERVER_URL": &cfg.Client.ServerURL,
		"CLIENT_DB":  &cfg.Client.DBPath,
		"TOKEN":      &cfg.Client.Token,
		"PASSPHRASE": &cfg.Client.Passphrase,
		"ADDR":       &cfg.Server.Addr,
		"SERVER_DB":  &cfg.Server.DBPath,
		"JWT_SECRET": &cfg.Server.JWTSecret,
		"LOG_LEVEL":  &cfg.Log.Level,
		"LOG_FORMAT": &cfg.Log.Format,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"TRACKER_LOOP_THRESHOLD":    &cfg.Engine.TrackerLoopThreshold,
		"HISTORY_LIMIT":             &cfg.Engine.HistoryLimit,
		"OPTIMISTIC_LOOP_THRESHOLD": &cfg.Engine.OptimisticLoopThreshold,
		"MAX_RETRIES":               &cfg.Engine.MaxRetries,
		"DEDUP_SIZE":                &cfg.Engine.DedupSize,
		"RATE_LIMIT":                &cfg.Server.RateLimit,
	}
	for name, dst := range ints {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q is not an integer", ErrInvalidConfig, EnvPrefix, name, v)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"TRACKER_LOOP_WINDOW":    &cfg.Engine.TrackerLoopWindow,
		"COALESCE_WINDOW":        &cfg.Engine.CoalesceWindow,
		"PUSH_LOOKBACK":          &cfg.Engine.PushLookback,
		"OPTIMISTIC_LOOP_WINDOW": &cfg.Engine.OptimisticLoopWindow,
		"PENDING_EXPIRY":         &cfg.Engine.PendingExpiry,
		"EXPIRY_SWEEP_INTERVAL":  &cfg.Engine.ExpirySweepInterval,
		"CACHE_TTL":              &cfg.Engine.CacheTTL,
		"CACHE_SWEEP_INTERVAL":   &cfg.Engine.CacheSweepInterval,
		"DEDUP_TTL":              &cfg.Engine.DedupTTL,
		"SESSION_TTL":            &cfg.Server.SessionTTL,
		"RATE_WINDOW":            &cfg.Server.RateWindow,
	}
	for name, dst := range durations {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q is not a duration", ErrInvalidConfig, EnvPrefix, name, v)
		}
		*dst = d
	}
	return nil
}
