package main

import (
	"os"

	"golang.org/x/sync/errgroup"

	"depositos/internal/amqp"
	"depositos/internal/cli"
	"depositos/internal/config"
	applog "depositos/internal/log"
	"depositos/internal/store/sheets"
	"depositos/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel)
	cli.ValidateConfig(logger, cfg, (*config.Config).ValidateWorker)

	logger.Info("Starting depositos-worker")

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	mirror, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		DepositsSheet:   cfg.GoogleDepositsSheet,
		LedgerSheet:     cfg.GoogleLedgerSheet,
		CredentialsFile: cfg.GoogleCredentialsFile,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqp.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirrorWorker := worker.NewMirrorWorker(sqliteRepo, mirror, logger)

	// Catch up with anything written while the worker was down.
	logger.Info("Performing startup sync")
	if err := mirrorWorker.Sync(ctx); err != nil {
		logger.Error("Startup sync failed", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return amqpClient.Consume(gctx, mirrorWorker.HandleEvent) })
	g.Go(func() error { return mirrorWorker.Run(gctx, cfg.SyncInterval) })

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	syncs, last := mirrorWorker.Stats()
	logger.Info("Worker shutdown complete", "syncs", syncs, "last_sync", last)
}
