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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"pandapark/internal/amqp"
	"pandapark/internal/config"
	"pandapark/internal/dataset"
	apphttp "pandapark/internal/http"
	"pandapark/internal/parkdata"
	"pandapark/internal/parkdata/memory"
	"pandapark/internal/storage"
)

// sqliteBackend serves queries from the SQLite repository and refreshes by
// re-importing the source dataset.
type sqliteBackend struct {
	*storage.Repository
	source string
}

func (b *sqliteBackend) Refresh(ctx context.Context) error {
	snap, err := dataset.Load(b.source)
	if err != nil {
		return fmt.Errorf("reload dataset: %w", err)
	}
	return b.Import(ctx, snap)
}

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var (
		statsReader parkdata.StatsReader
		txLister    parkdata.TransactionLister
	)

	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()

		backend := &sqliteBackend{Repository: repo, source: cfg.DatasetPath}
		statsReader, txLister = backend, backend
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath, "dataset", cfg.DatasetPath)
	default:
		store := memory.New(cfg.DatasetPath, dataset.NewCache(cfg.CacheSize, cfg.CacheTTL))
		statsReader, txLister = store, store
		logger.Info("Initialized memory backend", "dataset", cfg.DatasetPath)
	}

	// Optional AMQP client for broadcasting and receiving reload events
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	opts := apphttp.Options{
		Source:    cfg.DatasetPath,
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
	}
	if amqpClient != nil {
		opts.Publisher = amqpClient
	}

	srv := apphttp.NewServer(":"+cfg.Port, statsReader, txLister, opts)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting pandapark server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	if amqpClient != nil {
		refresher, _ := statsReader.(parkdata.Refresher)
		g.Go(func() error {
			err := amqpClient.ConsumeReloads(gctx, func(msg *amqp.ReloadMessage) error {
				logger.Info("Reload message received", "source", msg.Source, "requested_by", msg.RequestedBy)
				if refresher != nil {
					if err := refresher.Refresh(gctx); err != nil {
						return fmt.Errorf("refresh backend: %w", err)
					}
				}
				srv.InvalidateCache()
				return nil
			})
			if err != nil && err != context.Canceled {
				return fmt.Errorf("consume reloads: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
