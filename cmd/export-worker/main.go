package main

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"cardbudget/internal/backend"
	"cardbudget/internal/cli"
	"cardbudget/internal/log"
	"cardbudget/internal/sheets"
	gsheet "cardbudget/internal/sheets/google"
	memsheet "cardbudget/internal/sheets/memory"
	"cardbudget/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentExport)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "Export worker needs a message broker", errors.New("AMQP_URL is not set"))
	}

	var exporter sheets.MonthExporter
	if cfg.GoogleSpreadsheetID != "" {
		if err := cfg.ValidateExport(); err != nil {
			cli.Fatal(logger, "Configuration validation failed", err)
		}
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			OAuthClientJSON:    cfg.GoogleOAuthClientJSON,
			OAuthClientFile:    cfg.GoogleOAuthClientFile,
			OAuthTokenJSON:     cfg.GoogleOAuthTokenJSON,
			OAuthTokenFile:     cfg.GoogleOAuthTokenFile,
		})
		if err != nil {
			cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
		}
		exporter = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = memsheet.New()
		logger.Warn("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, summaries stay in memory")
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).
		CreateBackend(context.Background(), bcfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}
	if res.Events == nil {
		_ = res.Cleanup()
		cli.Fatal(logger, "Failed to initialize AMQP client", errors.New("broker unreachable"))
	}

	export := worker.NewExportWorker(res.Services.Budgets, exporter)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) error {
		return res.Cleanup()
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return res.Events.ConsumeBudgetEvents(gctx, export.HandleBudgetEvent)
	})

	logger.Info("Export worker started", "queue", cfg.AMQPQueue)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		if cerr := res.Cleanup(); cerr != nil {
			logger.Error("Cleanup failed", "error", cerr)
		}
		cli.Fatal(logger, "Message consumption failed", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Export worker stopped")
}
