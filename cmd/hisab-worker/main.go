package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"hisab/internal/amqp"
	"hisab/internal/cli"
	"hisab/internal/services"
	"hisab/internal/sheets"
	gsheet "hisab/internal/sheets/google"
	mem "hisab/internal/sheets/memory"
	"hisab/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("worker")
	logger.Info("Starting hisab-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	var exporter sheets.LedgerExporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
	} else {
		exporter = mem.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, exporting to an in-memory sheet")
	}

	procCfg := services.DefaultExportProcessorConfig()
	procCfg.PollInterval = cfg.SyncInterval
	procCfg.BatchSize = cfg.SyncBatchSize
	processor := services.NewExportProcessor(repo, exporter, procCfg)

	w := worker.NewJournalWorker(repo, processor, cfg.SyncBatchSize)
	if err := w.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start export processor", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		g.Go(func() error {
			err := client.ConsumeLedgerEvents(gctx, w.HandleEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		logger.Info("Consuming ledger events", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP_URL not set, relying on the journal sweep only")
	}

	g.Go(func() error {
		<-gctx.Done()
		cli.Shutdown(logger, 30*time.Second, func(ctx context.Context) {
			if err := processor.Stop(ctx); err != nil {
				logger.Error("Export processor stop error", "error", err)
			}
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("hisab-worker stopped")
}
