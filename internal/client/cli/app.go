package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	clientapi "github.com/iudanet/gophsync/internal/client/api"
	"github.com/iudanet/gophsync/internal/client/broadcast"
	"github.com/iudanet/gophsync/internal/client/data"
	"github.com/iudanet/gophsync/internal/client/engine"
	"github.com/iudanet/gophsync/internal/client/push"
	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/client/storage/boltdb"
	"github.com/iudanet/gophsync/internal/client/stream"
	"github.com/iudanet/gophsync/internal/client/sync"
	"github.com/iudanet/gophsync/internal/config"
)

var (
	// ErrNoSession нет ни сохранённой сессии, ни токена в флагах или конфиге
	ErrNoSession = errors.New("no session: run 'gophsync session --user <id>' first")
	// ErrSessionExpired сохранённый токен истёк
	ErrSessionExpired = errors.New("session expired: run 'gophsync session' again")
)

// env конфигурация, логгер, локальная база и HTTP клиент одной команды
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *boltdb.Storage // nil, если локальная база отключена
	client *clientapi.Client
	out    *Printer
}

func openEnv(cmd *cobra.Command, opts *RootOptions) (*env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.Client.ServerURL = opts.ServerURL
	}
	if flags.Changed("db") {
		cfg.Client.DBPath = opts.DBPath
	}
	if flags.Changed("token") {
		cfg.Client.Token = opts.Token
	}
	// Сообщения движка уровня info мешают выводу команд
	if !opts.Verbose && strings.EqualFold(cfg.Log.Level, "info") {
		cfg.Log.Level = "warn"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := cfg.Log.Logger(cmd.ErrOrStderr(), opts.Verbose)
	if err != nil {
		return nil, err
	}

	e := &env{
		cfg:    cfg,
		logger: logger,
		client: clientapi.NewClient(cfg.Client.ServerURL),
		out:    NewPrinter(cmd.OutOrStdout(), opts.Format),
	}
	if cfg.Client.DBPath != "" {
		e.store, err = boltdb.New(cmd.Context(), cfg.Client.DBPath)
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}

// authenticate выставляет токен клиента: явный токен из флагов или конфига,
// иначе сохранённая сессия того же сервера.
func (e *env) authenticate(ctx context.Context) error {
	if e.cfg.Client.Token != "" {
		e.client.SetToken(e.cfg.Client.Token)
		return nil
	}
	if e.store == nil {
		return ErrNoSession
	}

	session, err := e.store.GetSession(ctx)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return ErrNoSession
	}
	if err != nil {
		return err
	}
	if session.ServerURL != "" && session.ServerURL != e.client.BaseURL() {
		return fmt.Errorf("%w: stored session belongs to %s", ErrNoSession, session.ServerURL)
	}
	if session.Expired(time.Now()) {
		return ErrSessionExpired
	}
	token, err := openToken(session, e.cfg.Client.Passphrase)
	if err != nil {
		return err
	}
	e.client.SetToken(token)
	return nil
}

func (e *env) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// app движок и сервисы поверх env
type app struct {
	*env
	engine    *engine.Engine
	data      *data.Service
	sync      sync.Service
	transport *broadcast.WebsocketTransport
	push      *push.Listener
}

// openApp создаёт движок. live подключает ретранслятор /api/v1/sync и push канал:
// команда видит изменения других клиентов и экземпляров той же сессии.
func openApp(cmd *cobra.Command, opts *RootOptions, live bool) (*app, error) {
	e, err := openEnv(cmd, opts)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if err := e.authenticate(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}

	a := &app{env: e}
	deps := engine.Deps{Logger: e.logger}
	if e.store != nil {
		deps.Snapshots = e.store
	}
	if live {
		a.transport, err = broadcast.NewWebsocketTransport(ctx, e.cfg.Client.ServerURL, e.client.AuthHeader(), stream.DefaultSettings(), e.logger)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		deps.Transport = a.transport
	}

	a.engine = engine.New(e.cfg.EngineSettings(), deps)
	if err := a.engine.Start(ctx); err != nil {
		// снимок не загружен: Close движка перезаписал бы его пустым
		a.engine = nil
		_ = a.Close()
		return nil, err
	}
	a.data = data.NewService(e.client, a.engine, data.Options{MaxRetries: e.cfg.Engine.MaxRetries}, e.logger.With("component", "data"))
	a.sync = sync.NewService(e.client, a.engine, e.logger.With("component", "sync"))

	if live {
		a.push, err = push.Listen(ctx, e.cfg.Client.ServerURL, e.client.AuthHeader(), a.engine, stream.DefaultSettings(), e.logger)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

// Close останавливает push, сохраняет снимок кэша и закрывает соединения
func (a *app) Close() error {
	var errs []error
	if a.push != nil {
		a.push.Close()
	}
	if a.engine != nil {
		errs = append(errs, a.engine.Close())
	}
	if a.transport != nil {
		a.transport.Close()
	}
	errs = append(errs, a.env.Close())
	return errors.Join(errs...)
}
