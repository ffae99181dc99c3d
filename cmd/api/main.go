package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"closingdoors/internal/api"
	"closingdoors/internal/config"
	"closingdoors/internal/logging"
	"closingdoors/internal/query"
	"closingdoors/internal/stations"
	"closingdoors/internal/store"
)

func main() {
	logger := logging.New(os.Stdout, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ix, err := stations.Load(cfg.StationsCSV)
	if err != nil {
		logger.Error("stations load error", "error", err)
		os.Exit(1)
	}
	logger.Info("loaded stations", "count", ix.Len())

	snapshots, err := store.NewNATSStore(cfg.NATSURL, cfg.NATSBucket, logger, nil)
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

	queries := query.NewService(snapshots, metadata, ix, logger.With(slog.String("component", "query")))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.New(queries, logger).Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
