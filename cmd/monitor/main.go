package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"lelongwatch/config"
	"lelongwatch/internal/archive"
	"lelongwatch/internal/monitor"
	"lelongwatch/internal/scrape"
	"lelongwatch/internal/store"
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

	st, err := store.NewStore(cfg.Storage.DataDir, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize store")
	}

	arch, err := archive.Open(cfg.Storage.ArchivePath, logger)
	if err != nil {
		logger.WithError(err).Warn("Run archive unavailable, continuing without it")
		arch = nil
	} else {
		defer arch.Close()
	}

	m, err := monitor.NewWithTelegram(cfg, st, arch, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to assemble monitor")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := m.Run(ctx)
	if err != nil {
		if errors.Is(err, scrape.ErrNoListings) {
			logger.Error("Scan found no listings")
		} else {
			logger.WithError(err).Error("Monitoring run failed")
		}
		os.Exit(1)
	}

	logger.WithFields(logrus.Fields{
		"total":   len(result.Current),
		"new":     len(result.NewListings),
		"changed": len(result.Changed),
	}).Info("Done")
}
