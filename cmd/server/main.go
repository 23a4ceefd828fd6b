package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/agenthands/clinigraph/internal/config"
	"github.com/agenthands/clinigraph/internal/logger"
	"github.com/agenthands/clinigraph/internal/logger/console"
	"github.com/agenthands/clinigraph/internal/server"
	"github.com/agenthands/clinigraph/internal/store"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: cfg.Debug}))
	if envErr != nil {
		logger.Info("No .env file found, using defaults")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := cfg.ValidateGraph(); err != nil {
		logger.Fatal("Invalid graph configuration", "error", err)
	}
	ctx := context.Background()
	gs, err := store.OpenNeo4j(ctx, cfg.Graph)
	if err != nil {
		logger.Fatal("Failed to connect to graph store", "error", err)
	}
	defer gs.Close(ctx)

	srv, err := server.NewServer(gs, cfg.Ingest)
	if err != nil {
		logger.Fatal("Invalid ingest configuration", "error", err)
	}
	r := srv.SetupRouter()

	logger.Info("Starting server", "port", port)
	if err := r.Run(":" + port); err != nil {
		logger.Fatal("Server stopped", "error", err)
	}
}
