package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"closingdoors/internal/config"
	"closingdoors/internal/feed"
	"closingdoors/internal/logging"
	"closingdoors/internal/metrics"
	"closingdoors/internal/poller"
	"closingdoors/internal/store"
)

func main() {
	logger := logging.New(os.Stdout, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mcol := metrics.NewCollector(len(feed.IDs), cfg.UpdateInterval, cfg.FailureBackoff)
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = mcol.Serve(cfg.MetricsAddr, logger)
	}

	snapshots, err := store.NewNATSStore(cfg.NATSURL, cfg.NATSBucket, logger, mcol)
	if err != nil {
		logger.Error("snapshot store error", "error", err)
		os.Exit(1)
	}
	defer snapshots.Close()

	db, err := store.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Error("db open error", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := store.Ping(ctx, db); err != nil {
		logger.Error("db ping error", "error", err)
		os.Exit(1)
	}
	metadata, err := store.NewPostgresMetadata(ctx, db)
	if err != nil {
		logger.Error("metadata store error", "error", err)
		os.Exit(1)
	}

	decoder := feed.NewHTTPDecoder(cfg.APIKey, cfg.FeedTimeout)

	p := poller.New(decoder, snapshots, metadata, feed.IDs, poller.Config{
		UpdateInterval: cfg.UpdateInterval,
		FailureBackoff: cfg.FailureBackoff,
		FeedTimeout:    cfg.FeedTimeout,
	}, mcol, logger.With(slog.String("component", "poller")))

	// Blocks until the context is cancelled.
	p.Run(ctx)

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	logger.Info("shutdown complete")
}
