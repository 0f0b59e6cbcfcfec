package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/meddiag-engine/internal/app"
	"github.com/meddiag-engine/internal/config"
	"github.com/meddiag-engine/internal/logging"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := logging.New(cfg.Logging)
	logger.WithField("addr", cfg.Server.Host).WithField("port", cfg.Server.Port).Info("Starting diagnostic server")

	application, err := app.New(configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize")
	}
	defer application.Close()

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Server.Start(ctx); err != nil {
		application.Close()
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
