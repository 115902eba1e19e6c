package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/starford/incremental/internal/itemstore"
	"github.com/starford/incremental/internal/journal"
	"github.com/starford/incremental/internal/kv"
	"github.com/starford/incremental/internal/queue"
	"github.com/starford/incremental/internal/scheduler"
	"github.com/starford/incremental/internal/sse"
	"github.com/starford/incremental/internal/vault"
)

// Services is the wired object graph shared by the server and the CLI.
type Services struct {
	Config  *Config
	Version string
	Logger  *slog.Logger
	Vault   *vault.Vault
	Store   *itemstore.Store
	Queue   *queue.Queue
	Broker  *sse.Broker
	Engine  *scheduler.Engine

	closers []func() error
}

// Open builds every component from the options' configuration.
func Open(opts ...Option) (*Services, error) {
	app := &application{logOut: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(app.logOut, cfg.App.LogLevel)
	slog.SetDefault(logger)

	s := &Services{Config: cfg, Version: app.version, Logger: logger}

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	fsys, err := vault.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init vault: %w", err)
	}
	s.Vault = vault.New(fsys, logger)

	surface, err := s.openSurface()
	if err != nil {
		return nil, err
	}
	s.Store = itemstore.New(surface, cfg.Store.Key)

	loc, err := cfg.Schedule.Location()
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Queue = queue.New(s.Store)
	s.Broker = sse.NewBroker(time.Second)
	s.closers = append(s.closers, func() error { s.Broker.Close(); return nil })

	s.Engine = scheduler.New(s.Vault, s.Store, journal.New(s.Vault, cfg.Vault.DailyDir, loc),
		scheduler.WithLogger(logger),
		scheduler.WithTag(cfg.Schedule.Tag),
		scheduler.WithQueue(s.Queue),
		scheduler.WithPublisher(s.Broker),
	)

	logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("tag", cfg.Schedule.Tag),
		slog.String("timezone", loc.String()),
		slog.String("log_level", cfg.App.LogLevel.String()))
	return s, nil
}

func (s *Services) openSurface() (kv.Surface, error) {
	switch s.Config.Store.Backend {
	case StoreBackendMemory:
		s.Logger.Warn("item store is in memory; schedules are lost on exit")
		return kv.NewMemory(), nil
	default:
		db, err := kv.OpenSQLite(s.Config.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		s.closers = append(s.closers, db.Close)
		return db, nil
	}
}

// Prime reconciles the store with the vault and loads the review queue.
func (s *Services) Prime(ctx context.Context) error {
	stats, err := s.Engine.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("initial reconcile: %w", err)
	}
	s.Logger.Info("initial reconcile",
		slog.Int("upserted", stats.Upserted),
		slog.Int("removed", stats.Removed),
		slog.Int("skipped", stats.Skipped))
	return s.Queue.Refresh(ctx, time.Now())
}

// Close releases the store and stops the broker.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
