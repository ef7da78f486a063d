package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"hisab/internal/amqp"
	"hisab/internal/backend"
	"hisab/internal/cache"
	"hisab/internal/cli"
	"hisab/internal/core"
	apphttp "hisab/internal/http"
	"hisab/internal/ports"
	"hisab/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("app")
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", "error", err)
			}
		}()
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	viewers := cache.NewLRUCache[core.Viewer](256, cfg.ViewerCacheTTL)
	caches := cache.NewManager()
	caches.Register(viewers)
	caches.Register(repo)
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	publishers := services.Publishers{services.NewJournalPublisher(repo)}
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// the journal still holds every event; the worker sweeps it
			logger.Warn("AMQP unavailable, events are journaled only", "error", err)
		} else {
			defer amqpClient.Close()
			publishers = append(publishers, amqpClient)
			logger.Info("AMQP publisher connected", "exchange", cfg.AMQPExchange)
		}
	}

	// a nil Backend stays a nil interface through both conversions
	var (
		table    ports.TransactionTable
		identity ports.Identity
	)
	if result.Configured {
		table, identity = result.Backend, result.Backend
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:   services.NewLedgerService(table, publishers),
		Auth:     services.NewAuthService(identity, repo, viewers, cfg.SessionTTL),
		Activity: repo,
		Cookie: apphttp.CookieConfig{
			Name:   cfg.SessionCookieName,
			Secure: cfg.CookieSecure,
			TTL:    cfg.SessionTTL,
		},
		Logger: logger,
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting hisab server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"configured", result.Configured)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		cli.Shutdown(logger, 30*time.Second, func(ctx context.Context) {
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Server shutdown error", "error", err)
			}
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
}
