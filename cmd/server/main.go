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

	"github.com/garnizeh/freelance/api"
	dbfs "github.com/garnizeh/freelance/db"
	"github.com/garnizeh/freelance/internal/config"
	"github.com/garnizeh/freelance/internal/db"
	"github.com/garnizeh/freelance/internal/tasks"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config file (YAML, or TOML with a .toml extension)")
	var seed = flag.Bool("seed", false, "Load the sample marketplace data after migrating")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	api.SetLogger(logger)

	logger.Info("starting freelance server", slog.String("version", version), slog.String("build_time", buildTime), slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open database connection
	database, err := db.New(ctx, db.DSN(cfg.DatabasePath), logger)
	if err != nil {
		logger.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
		logger.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}
	if *seed {
		if err := db.Seed(ctx, database, dbfs.SeedFiles); err != nil {
			logger.Error("failed to seed db", slog.Any("err", err))
			os.Exit(1)
		}
	}

	// Background notifications for completed payments and deposits. With no
	// workers, tasks stay queued for another process to drain.
	var pool *tasks.WorkerPool
	if cfg.Workers.Count > 0 {
		taskRepo := tasks.NewRepository(database)
		taskRepo.SetLease(cfg.Workers.Lease)
		pool = tasks.NewWorkerPool(
			taskRepo,
			tasks.Handlers(tasks.LogNotifier{Logger: logger}),
			logger,
			cfg.Workers.Count,
			cfg.Workers.PollInterval,
		)
		pool.Start(ctx)
	}

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.SetupRoutes(cfg, version, buildTime, database),
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("err", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("err", err))
	}
	if pool != nil {
		pool.Stop()
	}

	logger.Info("server exited")
}
