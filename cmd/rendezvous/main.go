package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rendezvous/internal/app"
	"rendezvous/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	logger := app.NewLogger(os.Getenv("LOG_LEVEL"))

	cfg, configPath, err := config.Load(logger, "")
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger.Info().Str("config_path", configPath).Msg("configuration loaded")

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	appErrCh := make(chan error, 1)
	go func() {
		appErrCh <- application.Start(ctx)
	}()

	select {
	case err := <-appErrCh:
		if err != nil {
			return fmt.Errorf("application error: %w", err)
		}
		return nil
	case sig := <-signalCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := application.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
