package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpattn/shopsync/internal/config"
	"github.com/rpattn/shopsync/internal/domain"
	"github.com/rpattn/shopsync/internal/export"
	"github.com/rpattn/shopsync/internal/logging"
	"github.com/rpattn/shopsync/internal/shopify"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	flags := pflag.NewFlagSet("metafield-export", pflag.ExitOnError)
	flags.String("shop", "", "shop name or domain (env SHOPIFY_SHOP)")
	flags.String("token", "", "Admin API access token (env SHOPIFY_ACCESS_TOKEN)")
	flags.String("api-version", config.DefaultAPIVersion, "Admin API version")
	flags.Duration("http-timeout", 0, "per request timeout (0 disables)")
	configDir := flags.String("config", "", "directory holding config.yaml")
	outDir := flags.String("out-dir", ".", "directory the export is written to")
	output := flags.String("output", "", "file name (.csv or .xlsx); generated when empty")
	productID := flags.String("product-id", "", "export the variants of one product")
	search := flags.String("search", "", "Admin API product search expression")
	limit := flags.Int("limit", export.DefaultLimit, "maximum number of products")
	allPages := flags.Bool("all-pages", false, "follow the listing cursor past the first page")
	allNamespaces := flags.Bool("all-namespaces", false, "export every metafield namespace, including app-owned ones")
	namespaces := flags.StringSlice("namespace", nil, "metafield namespace to export (repeatable; default custom)")
	verbose := flags.BoolP("verbose", "v", false, "debug logging")
	_ = flags.Parse(os.Args[1:])

	logger := logging.New(*verbose)
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configDir, flags)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *allPages && !flags.Changed("limit") {
		*limit = 0
	}

	policy := domain.ResolveNamespacePolicy(*namespaces, *allNamespaces)

	client := shopify.NewClient(cfg, logger)
	logger.Info("exporting variant metafields", zap.String("endpoint", client.Endpoint()))

	service := export.NewService(client, logger, export.WithExportDirectory(*outDir))
	summary, err := service.Export(ctx, export.Request{
		ProductID:  *productID,
		Search:     *search,
		Limit:      *limit,
		Namespaces: policy,
		AllPages:   *allPages,
		FileName:   *output,
	})
	if err != nil {
		logger.Error("export failed", zap.Error(err))
		stop()
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "exported %d variants of %d products (%d columns) to %s\n",
		summary.Variants, summary.Products, summary.Columns, summary.FilePath)
	if summary.Truncated {
		fmt.Fprintln(os.Stdout, "more products match; rerun with --all-pages to export them all")
	}
	if summary.TruncatedProducts > 0 || summary.TruncatedVariants > 0 {
		fmt.Fprintf(os.Stdout, "incomplete rows: %d products had more variants and %d variants had more metafields than were fetched\n",
			summary.TruncatedProducts, summary.TruncatedVariants)
	}
}
