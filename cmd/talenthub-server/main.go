// Package main provides the HTTP server for talenthub.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xlsmart/talenthub/internal/classifier"
	"github.com/xlsmart/talenthub/internal/config"
	"github.com/xlsmart/talenthub/internal/db"
	"github.com/xlsmart/talenthub/internal/llm"
	"github.com/xlsmart/talenthub/internal/metrics"
	"github.com/xlsmart/talenthub/internal/pgstore"
	"github.com/xlsmart/talenthub/internal/server"
	"github.com/xlsmart/talenthub/internal/service"
	"github.com/xlsmart/talenthub/internal/store"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	noResume := flag.Bool("no-resume", false, "do not restart sessions left incomplete by a previous run")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog := config.SetupLogger(cfg, "talenthub-server")
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	if err := run(cfg, logger, *wipeDB || os.Getenv("TALENTHUB_WIPE_DB") == "true", !*noResume); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg config.Config, logger *slog.Logger, wipe, resume bool) error {
	logger.Info("starting talenthub-server", "port", cfg.ServerPort, "store", cfg.StoreBackend, "llm", cfg.LLMProvider)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, health, err := openStore(ctx, cfg, logger, wipe)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	mc := metrics.NewCollector()
	model, err := llm.NewModel(context.Background(), cfg, mc)
	if err != nil {
		return fmt.Errorf("init model: %w", err)
	}

	sessions := service.NewSessionManager(st, mc, logger)
	batch := service.NewBatchProcessor(st, service.BatchOptions{
		Size:                cfg.BatchSize,
		Delay:               cfg.BatchDelay,
		MaxReportedFailures: cfg.MaxReportedFailures,
	}, mc, logger)
	pipeline := service.NewPipeline(st, classifier.New(model, logger, classifier.WithVotes(cfg.ClassifyVotes)), sessions, batch, logger)

	if resume {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := pipeline.ResumeIncompleteSessions(ctx)
		cancel()
		if err != nil {
			logger.Error("failed to resume incomplete sessions", "error", err)
		}
	}

	srv := server.New(server.Deps{
		Pipeline: pipeline,
		Store:    st,
		Metrics:  mc,
		Logger:   logger,
		Health:   health,
		Version:  Version,
	})

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(sigCtx, ":"+cfg.ServerPort)
}

// openStore connects the configured backend, applies its schema and returns
// a health probe for /health.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger, wipe bool) (store.Store, func(context.Context) error, error) {
	switch cfg.StoreBackend {
	case config.BackendSurreal:
		client, err := db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to surrealdb: %w", err)
		}
		if err := client.InitSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("initialize schema: %w", err)
		}
		if wipe {
			if err := client.WipeData(ctx); err != nil {
				return nil, nil, fmt.Errorf("wipe database: %w", err)
			}
		}
		return client, client.Ping, nil

	case config.BackendPostgres:
		pg, err := pgstore.Open(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		if wipe {
			if err := pg.Truncate(ctx); err != nil {
				return nil, nil, fmt.Errorf("wipe database: %w", err)
			}
		}
		return pg, pg.Ping, nil

	case config.BackendMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return store.NewMemory(), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
