// Package internal wires the review scheduler and runs its front ends.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/incremental/internal/api"
	"github.com/starford/incremental/internal/mcpserver"
	"github.com/starford/incremental/internal/watch"
)

// Run serves the HTTP API and watches the vault until ctx ends or a signal
// arrives.
func Run(ctx context.Context, opts ...Option) error {
	s, err := Open(opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	cfg := s.Config
	logger := s.Logger

	if err := s.Prime(ctx); err != nil {
		logger.Warn("startup sync failed", slog.String("error", err.Error()))
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           NewHandler(s),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watch.New(cfg.Vault.Path, s.Engine, logger).Run(gCtx)
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// NewHandler builds the root router: health probes plus the API under /api.
func NewHandler(s *Services) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := s.Store.Load(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"store unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(api.Deps{
		Scheduler:       s.Engine,
		Reviews:         s.Queue,
		CustomIntervals: s.Config.Schedule.CustomIntervals,
		AuthEnabled:     s.Config.Auth.AuthEnabled(),
		Token:           s.Config.Auth.Token,
		Events:          s.Broker,
	}))
	return r
}

// RunMCP serves the MCP tools over stdio. Logs go to stderr so stdout stays
// reserved for the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	s, err := Open(append(opts, WithLogOutput(os.Stderr))...)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.Engine.Reconcile(ctx); err != nil {
		s.Logger.Warn("startup reconcile failed", slog.String("error", err.Error()))
	}
	return mcpserver.New(s.Engine, s.Version).ServeStdio()
}
