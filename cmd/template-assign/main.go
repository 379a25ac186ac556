package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rpattn/shopsync/internal/audit"
	"github.com/rpattn/shopsync/internal/config"
	"github.com/rpattn/shopsync/internal/domain"
	"github.com/rpattn/shopsync/internal/logging"
	"github.com/rpattn/shopsync/internal/shopify"
	"github.com/rpattn/shopsync/internal/templates"

	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("template-assign", pflag.ExitOnError)
	flags.String("shop", "", "shop name or domain (env SHOPIFY_SHOP)")
	flags.String("token", "", "Admin API access token (env SHOPIFY_ACCESS_TOKEN)")
	flags.String("api-version", config.DefaultAPIVersion, "Admin API version")
	flags.Int("batch-size", config.DefaultBatchSize, "products per batch")
	flags.Duration("batch-delay", config.DefaultBatchDelay, "pause between batches")
	flags.Duration("http-timeout", 0, "per request timeout (0 disables)")
	configDir := flags.String("config", "", "directory holding config.yaml")
	tag := flags.String("tag", "", "only products with this tag")
	vendor := flags.String("vendor", "", "only products from this vendor")
	productType := flags.String("type", "", "only products of this product type")
	collection := flags.String("collection", "", "only products in the collection with this handle")
	search := flags.String("search", "", "Admin API product search expression")
	ids := flags.StringSlice("ids", nil, "explicit product ids (comma separated)")
	template := flags.String("template", "", "template to assign: "+strings.Join(domain.TemplateNames(), ", "))
	limit := flags.Int("limit", templates.DefaultLimit, "maximum number of products")
	force := flags.Bool("force", false, "skip the confirmation prompt")
	dryRun := flags.Bool("dry-run", false, "list matching products without updating them")
	results := flags.String("results", "", "write the JSON report to this path")
	verbose := flags.BoolP("verbose", "v", false, "debug logging")
	_ = flags.Parse(os.Args[1:])

	logger := logging.New(*verbose)
	defer func() { _ = logger.Sync() }()

	if _, err := domain.LookupTemplate(*template); err != nil {
		logger.Error("invalid --template", zap.Error(err))
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := shopify.NewClient(cfg, logger)
	service := templates.NewService(cfg, client, logger,
		templates.WithConfirmer(templates.PromptConfirmer(os.Stdin, os.Stderr)))

	filter := domain.ProductFilter{
		Tag:              *tag,
		Vendor:           *vendor,
		ProductType:      *productType,
		CollectionHandle: *collection,
		Search:           *search,
		IDs:              lo.Compact(lo.Map(*ids, func(id string, _ int) string { return strings.TrimSpace(id) })),
	}

	report, err := service.Assign(ctx, templates.Request{
		Filter:   filter,
		Template: *template,
		Limit:    *limit,
		Force:    *force,
		DryRun:   *dryRun,
	})
	switch {
	case errors.Is(err, templates.ErrDeclined):
		fmt.Fprintln(os.Stdout, "aborted; no products were changed")
		return 0
	case err != nil && !errors.Is(err, context.Canceled):
		logger.Error("template assignment failed", zap.Error(err))
		return 1
	}

	if *results != "" {
		if werr := audit.WriteReport(*results, report); werr != nil {
			logger.Error("failed to write results", zap.Error(werr))
			return 1
		}
		logger.Info("results written", zap.String("path", *results))
	}
	audit.PrintSummary(os.Stdout, report)
	if err != nil {
		logger.Warn("template assignment interrupted", zap.Error(err))
		return 1
	}
	return 0
}
