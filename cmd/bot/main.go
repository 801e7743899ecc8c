package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"lelongwatch/config"
	"lelongwatch/internal/store"
	"lelongwatch/internal/telegram"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using process environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if cfg.Telegram.BotToken == "" {
		logger.Fatal("TELEGRAM_BOT_TOKEN is required")
	}

	st, err := store.NewStore(cfg.Storage.DataDir, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize store")
	}

	notifier := telegram.NewNotifier(telegram.Config{
		BotToken:  cfg.Telegram.BotToken,
		ChatID:    cfg.Telegram.ChatID,
		IsEnabled: true,
	}, logger)

	bot := telegram.NewBot(notifier, st, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting Telegram bot")
	if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Fatal("Bot stopped unexpectedly")
	}
	logger.Info("Bot stopped")
}
