package main

import (
	"context"
	"errors"
	"net/http"

	"cardbudget/internal/backend"
	"cardbudget/internal/cli"
	apphttp "cardbudget/internal/http"
	"cardbudget/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
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

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Budgets:           res.Services.Budgets,
		CashOut:           res.Services.CashOut,
		Recurrence:        res.Services.Recurrence,
		Cards:             res.Services.Cards,
		Loans:             res.Services.Loans,
		Store:             res.Store,
		Logger:            logger.WithComponent(log.ComponentHTTP),
		RequestsPerMinute: cfg.RateLimitPerMinute,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) error {
		return errors.Join(srv.Shutdown(ctx), res.Cleanup())
	})

	go func() {
		logger.Info("Starting cardbudget server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cli.Fatal(logger, "Server error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
