package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/LatVAlY/specWise/internal/app"
	"github.com/LatVAlY/specWise/internal/config"
	"github.com/LatVAlY/specWise/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	application, err := app.New(ctx, cfg, deps.DB, deps.VectorStore, deps.NSQProducer, logger, nil)
	if err != nil {
		return err
	}

	consumers, err := application.StartConsumers()
	if err != nil {
		return err
	}
	defer app.StopConsumers(consumers)

	sweeper, err := application.StartSweeper(ctx)
	if err != nil {
		return err
	}
	defer func() { <-sweeper.Stop().Done() }()

	if !cfg.EnableAPI {
		slog.Info("API disabled, running workers only")
		<-ctx.Done()
		return nil
	}
	return application.Run(ctx)
}
