package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leaf-detect/config"
	telegram "leaf-detect/internal/api"
	"leaf-detect/internal/container"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := NewLogger(cfg.LogLevel)

	if cfg.TelegramToken == "" {
		logger.Error("TELEGRAM_TOKEN is required")
		os.Exit(1)
	}

	// Собираем сервисы приложения
	appContainer := container.New(cfg, logger)
	defer appContainer.Close()

	// Создаём бота
	bot, err := telegram.NewBot(cfg.TelegramToken, appContainer.SessionService, appContainer.AnimateResult, logger.With("component", "bot"))
	if err != nil {
		logger.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SessionIdle > 0 {
		go appContainer.SessionService.RunEviction(ctx, time.Minute, cfg.SessionIdle)
	}

	logger.Info("bot is running", "backend", cfg.BackendURL, "render_backend", cfg.RenderBackend)
	if err := bot.Run(ctx); err != nil {
		logger.Error("bot error", "error", err)
	}
}
