// engramd is the reference standalone server: it wires pkg/config,
// a storage.Backend, pkg/compose, pkg/ingest, and pkg/api into one process.
// Embedding callers are not required to run this binary at all — it exists
// to exercise the library end to end and as a deployment starting point.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/engramhq/engram/pkg/api"
	"github.com/engramhq/engram/pkg/compose"
	"github.com/engramhq/engram/pkg/config"
	"github.com/engramhq/engram/pkg/ingest"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/storage"
	"github.com/engramhq/engram/pkg/storage/pgstore"
	"github.com/engramhq/engram/pkg/storage/sqlitestore"
	"github.com/engramhq/engram/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	flag.Parse()

	slog.Info("starting", "app", version.AppName, "commit", version.GitCommit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		slog.Error("failed to open storage backend", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			slog.Error("error closing storage backend", "error", err)
		}
	}()
	slog.Info("storage backend ready", "backend", cfg.Storage.Backend)

	composer := compose.New(backend, cfg.PolicyRegistry())
	writer := ingest.New(backend)

	reaper := ingest.NewReaper(backend, noScopesYet, cfg.Ingest.ReapInterval)
	reaper.Start(ctx)
	defer reaper.Stop()

	gin.SetMode(cfg.Server.GinMode)
	router := gin.Default()
	api.NewServer(composer, writer, backend).Routes(router)

	srv := &http.Server{Addr: ":" + cfg.Server.HTTPPort, Handler: router}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	slog.Info("http server listening", "port", cfg.Server.HTTPPort)
	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server exited with error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
		}
	}
}

// noScopesYet is the default ScopeLister until a deployment wires its own
// session/run tracker; engramd alone has no place that enumerates scopes.
func noScopesYet(context.Context) ([]model.Scope, error) {
	return nil, nil
}

func openBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		return pgstore.Open(ctx, cfg.Storage.Postgres)
	default:
		return sqlitestore.Open(ctx, cfg.Storage.SQLite)
	}
}
