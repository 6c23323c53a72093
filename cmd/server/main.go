package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shion-ptpe/oauth/internal/app"
	"github.com/shion-ptpe/oauth/internal/config"
	"github.com/shion-ptpe/oauth/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", map[string]any{
			"error": err.Error(),
		})
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		logger.Fatal("failed to initialize logger", map[string]any{
			"error": err.Error(),
		})
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", map[string]any{
			"error": err.Error(),
		})
	}

	go func() {
		if err := application.Run(); err != nil {
			logger.Fatal("http server failed", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	logger.Info("oauth client started", map[string]any{
		"port":   cfg.AppPort,
		"prefix": cfg.OAuth.RoutePrefix,
	})

	<-ctx.Done()

	logger.Info("shutdown signal received", nil)

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("graceful shutdown failed", map[string]any{
			"error": err.Error(),
		})
	}

	logger.Info("oauth client stopped cleanly", nil)
}
