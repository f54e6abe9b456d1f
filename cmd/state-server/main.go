package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ga1ien/kulti-stream/internal/application"
	"github.com/ga1ien/kulti-stream/internal/infrastructure/config"
	"github.com/ga1ien/kulti-stream/internal/infrastructure/logger"
)

const (
	appName    = "kulti-state-server"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("%s v%s\n", appName, appVersion)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputPath: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting state server",
		zap.String("name", appName),
		zap.String("version", appVersion),
		zap.Int("http_port", cfg.Server.HTTPPort),
		zap.Int("ws_port", cfg.Server.WSPort),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := application.NewApp(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}

	if err := app.Start(ctx); err != nil {
		log.Fatal("Failed to start application", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
		os.Exit(1)
	}

	log.Info("State server stopped")
}

func printUsage() {
	fmt.Printf(`%s v%s

Agents POST state patches to the HTTP port (default 8766); viewers connect
to the WebSocket port (default 8765).

Usage:
  state-server           Start the server
  state-server version   Show version

Configuration is layered: defaults, ~/.kulti/config.yaml, ./config.yaml,
then KULTI_* environment variables.
`, appName, appVersion)
}
