package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rpattn/shopsync/internal/audit"
	"github.com/rpattn/shopsync/internal/config"
	"github.com/rpattn/shopsync/internal/ingestion"
	"github.com/rpattn/shopsync/internal/logging"
	"github.com/rpattn/shopsync/internal/shopify"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("metafield-import", pflag.ExitOnError)
	flags.String("shop", "", "shop name or domain (env SHOPIFY_SHOP)")
	flags.String("token", "", "Admin API access token (env SHOPIFY_ACCESS_TOKEN)")
	flags.String("api-version", config.DefaultAPIVersion, "Admin API version")
	flags.Int("batch-size", config.DefaultBatchSize, "records per batch")
	flags.Duration("batch-delay", config.DefaultBatchDelay, "pause between batches")
	flags.Duration("http-timeout", 0, "per request timeout (0 disables)")
	configDir := flags.String("config", "", "directory holding config.yaml")
	input := flags.String("input", "", "edited .csv or .xlsx file (required)")
	dryRun := flags.Bool("dry-run", false, "validate and log changes without calling the API")
	journal := flags.Bool("journal", false, "append each result to <input>-import-results.jsonl as it happens")
	verbose := flags.BoolP("verbose", "v", false, "debug logging")
	_ = flags.Parse(os.Args[1:])

	logger := logging.New(*verbose)
	defer func() { _ = logger.Sync() }()

	if *input == "" {
		logger.Error("--input is required")
		return 1
	}
	cfg, err := config.Load(*configDir, flags)
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return 1
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return 1
	}

	file, err := os.Open(*input)
	if err != nil {
		logger.Error("failed to open input", zap.Error(err))
		return 1
	}
	defer file.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := ingestion.Request{
		FileName: filepath.Base(*input),
		Data:     file,
		DryRun:   *dryRun,
	}
	if *journal {
		j, err := audit.OpenJournal(audit.ResultsPath(*input, "import-results.jsonl"))
		if err != nil {
			logger.Error("failed to open journal", zap.Error(err))
			return 1
		}
		defer func() {
			if err := j.Close(); err != nil {
				logger.Warn("failed to close journal", zap.Error(err))
			}
		}()
		req.Recorder = j
	}

	client := shopify.NewClient(cfg, logger)
	service := ingestion.NewService(cfg, client, client, client, logger)

	report, err := service.Ingest(ctx, req)
	interrupted := errors.Is(err, context.Canceled)
	if err != nil && !interrupted {
		logger.Error("import failed", zap.Error(err))
		return 1
	}

	resultsPath := audit.ResultsPath(*input, "import-results.json")
	if err := audit.WriteReport(resultsPath, report); err != nil {
		logger.Error("failed to write results", zap.Error(err))
		return 1
	}
	logger.Info("results written", zap.String("path", resultsPath))
	audit.PrintSummary(os.Stdout, report)

	if interrupted {
		logger.Warn("import interrupted; results cover the records processed so far")
		return 1
	}
	return 0
}
