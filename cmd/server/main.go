package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"lelongwatch/config"
	"lelongwatch/internal/api"
	"lelongwatch/internal/archive"
	"lelongwatch/internal/monitor"
	"lelongwatch/internal/scheduler"
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

	sched := scheduler.NewScheduler(func(ctx context.Context) error {
		_, err := m.Run(ctx)
		return err
	}, cfg.Server.ScanHour, logger)
	sched.Start()
	defer sched.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	api.SetupRoutes(router, st, arch, logger)
	router.POST("/api/scan", func(c *gin.Context) {
		sched.RunNow()
		c.JSON(http.StatusAccepted, gin.H{"status": "scan triggered"})
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	logger.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown error")
	}
}
