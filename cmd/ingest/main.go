package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/agenthands/clinigraph/internal/config"
	"github.com/agenthands/clinigraph/internal/core"
	"github.com/agenthands/clinigraph/internal/logger"
	"github.com/agenthands/clinigraph/internal/logger/console"
	"github.com/agenthands/clinigraph/internal/store"
)

var (
	dryRun      = flag.Bool("dry-run", false, "Materialize into an in-memory store and print the fragments")
	onMalformed = flag.String("on-malformed", "", "Malformed record policy (skip | abort), overrides config")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <records.jsonl>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	_ = godotenv.Load()
	cfg, err := config.Resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: cfg.Debug}))

	// Fail on unreadable input before touching the database.
	f, err := os.Open(path)
	if err != nil {
		logger.Error("Cannot read input file", "path", path, "error", err)
		os.Exit(1)
	}
	f.Close()

	policyName := cfg.Ingest.OnMalformed
	if *onMalformed != "" {
		policyName = *onMalformed
	}
	policy, err := core.ParsePolicy(policyName)
	if err != nil {
		logger.Fatal("Invalid policy", "error", err)
	}

	ctx := context.Background()
	var gs store.GraphStore
	if *dryRun {
		gs = store.NewMemoryStore()
	} else {
		if err := cfg.ValidateGraph(); err != nil {
			logger.Fatal("Invalid graph configuration", "error", err)
		}
		neo, err := store.OpenNeo4j(ctx, cfg.Graph)
		if err != nil {
			logger.Fatal("Failed to connect to graph store", "error", err)
		}
		gs = neo
	}
	defer gs.Close(ctx)

	ingestor := core.NewIngestor(gs, cfg.Ingest.Source, policy)
	report, err := ingestor.IngestFile(ctx, path)
	if err != nil {
		logger.Error("Ingestion failed", "path", path, "error", err)
		os.Exit(1)
	}

	if *dryRun {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report.Fragments); err != nil {
			logger.Fatal("Failed to print fragments", "error", err)
		}
	}
	for _, failure := range report.Failures {
		logger.Warn("Skipped record", "line", failure.Line, "document_id", failure.DocumentID, "error", failure.Err)
	}
}
