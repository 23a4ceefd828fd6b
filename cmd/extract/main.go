package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/agenthands/clinigraph/internal/config"
	"github.com/agenthands/clinigraph/internal/core"
	"github.com/agenthands/clinigraph/internal/core/extraction"
	"github.com/agenthands/clinigraph/internal/core/record"
	"github.com/agenthands/clinigraph/internal/dataset"
	"github.com/agenthands/clinigraph/internal/llm"
	"github.com/agenthands/clinigraph/internal/logger"
	"github.com/agenthands/clinigraph/internal/logger/console"
	"github.com/agenthands/clinigraph/internal/store"
)

var dryRun = flag.Bool("dry-run", false, "Ingest into an in-memory store instead of the graph database")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <meds|trauma|general> <record>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 || !slices.Contains(extraction.Profiles, flag.Arg(0)) {
		flag.Usage()
		os.Exit(2)
	}
	profile := flag.Arg(0)
	index, err := strconv.Atoi(flag.Arg(1))
	if err != nil || index < 0 {
		fmt.Fprintf(os.Stderr, "record must be a non-negative integer, got %q\n", flag.Arg(1))
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.Resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: cfg.Debug}))

	profileCfg, err := extraction.ProfileFromConfig(cfg, profile)
	if err != nil {
		logger.Fatal("Unknown extractor profile", "error", err)
	}
	if err := cfg.ValidateLLM(); err != nil {
		logger.Fatal("Invalid model configuration", "error", err)
	}
	policy, err := core.ParsePolicy(cfg.Ingest.OnMalformed)
	if err != nil {
		logger.Fatal("Invalid policy", "error", err)
	}

	ctx := context.Background()

	// Connect first so a missing database stops us before paying for a model call.
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

	logger.Info("Using extractor profile", "profile", profile)
	note, err := dataset.NewLoader(cfg.Dataset).Note(ctx, index)
	if err != nil {
		logger.Fatal("Failed to load note", "record", index, "error", err)
	}
	logger.Debug("Loaded note", "record", index, "chars", len(note))

	client, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		logger.Fatal("Failed to initialize LLM client", "error", err)
	}

	rec, err := extraction.NewExtractor(client, profile, profileCfg).Extract(ctx, dataset.DocumentID(index), note)
	if err != nil {
		logger.Fatal("Extraction failed", "record", index, "error", err)
	}

	path, err := record.WriteFile(cfg.Ingest.OutputDir, fmt.Sprintf("sample_output_%s%d", profile, index), rec)
	if err != nil {
		logger.Fatal("Failed to save extraction", "error", err)
	}
	logger.Info("Saved extraction", "path", path)

	report, err := core.NewIngestor(gs, cfg.Ingest.Source, policy).IngestFile(ctx, path)
	if err != nil {
		logger.Error("Ingestion failed", "path", path, "error", err)
		os.Exit(1)
	}
	logger.Info("Done", "run_id", report.RunID, "entities", report.Entities, "edges", report.Edges)
}
