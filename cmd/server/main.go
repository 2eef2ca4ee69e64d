package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"manga/offchain/internal/api"
	"manga/offchain/internal/artifacts"
	"manga/offchain/internal/blockchain/evm"
	"manga/offchain/internal/config"
	"manga/offchain/internal/stats"
	"manga/offchain/internal/validate"

	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := initLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Manga Deployment Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if err := cfg.Validate(config.PurposeServer); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("artifact_backend", cfg.Deployment.Backend),
		zap.String("rpc_url", cfg.Chain.RPCEndpoint))

	// Open deployment record store
	store, closeStore, err := artifacts.Open(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open artifact store", zap.Error(err))
	}
	defer closeStore()

	logger.Info("Artifact store ready")

	// Stats are served only when a hub address is configured
	ctx := context.Background()
	var statsReader api.StatsReader
	if cfg.Contracts.DataUploaderAddress != "" {
		aggregator, client, err := newAggregator(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize stats", zap.Error(err))
		}
		defer client.Close()
		statsReader = aggregator
		logger.Info("Stats enabled", zap.String("hub", cfg.Contracts.DataUploaderAddress))
	} else {
		logger.Warn("DATAUPLOADER_ADDRESS not set, stats endpoints disabled")
	}

	// Initialize API handlers
	apiHandler := api.NewHandler(store, statsReader, logger)
	router := api.SetupRouter(apiHandler, logger)

	// Create HTTP server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("addr", serverAddr))
		serverErrors <- httpServer.ListenAndServe()
	}()

	logger.Info("Service initialized successfully",
		zap.String("status", "ready"),
		zap.Int("port", cfg.Server.Port))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for interrupt signal or server error
	select {
	case err := <-serverErrors:
		logger.Fatal("HTTP server error", zap.Error(err))
	case sig := <-quit:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	logger.Info("Shutting down service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
		httpServer.Close()
	} else {
		logger.Info("HTTP server stopped gracefully")
	}

	logger.Info("Service stopped successfully")
}

// newAggregator binds a read-only client to the configured hub
func newAggregator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stats.Aggregator, *evm.Client, error) {
	hubAddress, err := validate.Address(cfg.Contracts.DataUploaderAddress)
	if err != nil {
		return nil, nil, err
	}
	hubDesc, err := evm.LoadDescriptor(cfg.Contracts.ArtifactsDir, evm.MonthlyDataUploaderName)
	if err != nil {
		return nil, nil, err
	}

	client, err := evm.NewClient(ctx, &cfg.Chain, nil, logger)
	if err != nil {
		return nil, nil, err
	}

	hub := evm.Bind(client, hubDesc, hubAddress, cfg.Chain.ConfirmTimeout, logger)
	return stats.NewAggregator(hub, logger), client, nil
}

func initLogger() (*zap.Logger, error) {
	env := os.Getenv("ENV")
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
