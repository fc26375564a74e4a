package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"cardbudget/internal/backend"
	"cardbudget/internal/cli"
	"cardbudget/internal/log"
	"cardbudget/internal/worker"
)

func main() {
	once := flag.Bool("once", false, "run a single rollover for the current month and exit")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentRollover)
	cfg := cli.LoadAndValidateConfig(logger)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).
		CreateBackend(context.Background(), bcfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}

	rollover := worker.NewRolloverWorker(res.Services.Recurrence, cfg.RolloverUsers)

	if *once {
		result, err := rollover.RunOnce(context.Background(), time.Now())
		if cerr := res.Cleanup(); cerr != nil {
			logger.Error("Cleanup failed", "error", cerr)
		}
		if err != nil {
			cli.Fatal(logger, "Rollover failed", err)
		}
		logger.Info("Rollover finished",
			"created", result.Created,
			"skipped", result.Skipped,
			"failed", result.Failed)
		return
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) error {
		return errors.Join(rollover.Stop(ctx), res.Cleanup())
	})

	if err := rollover.Start(ctx, cfg.RolloverSchedule); err != nil {
		cli.Fatal(logger, "Failed to schedule rollover", err)
	}
	logger.Info("Rollover worker started",
		"schedule", cfg.RolloverSchedule,
		"users", len(cfg.RolloverUsers))

	cli.WaitForShutdown(ctx, done)
	logger.Info("Rollover worker stopped")
}
