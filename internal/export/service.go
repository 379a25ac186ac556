package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rpattn/shopsync/internal/domain"
	"github.com/rpattn/shopsync/internal/logging"
	"github.com/rpattn/shopsync/internal/repository"
	"github.com/rpattn/shopsync/internal/tabular"

	"go.uber.org/zap"
)

// DefaultLimit is the product count used when a request does not set one.
const DefaultLimit = 50

// maxPageSize is the largest page the Admin API serves.
const maxPageSize = 250

// Service reads variants and their metafields from the shop and writes them
// to a tabular file.
type Service struct {
	catalog   repository.CatalogReader
	logger    *zap.Logger
	exportDir string
	now       func() time.Time
}

type Option func(*Service)

func WithExportDirectory(dir string) Option {
	return func(s *Service) {
		if strings.TrimSpace(dir) != "" {
			s.exportDir = filepath.Clean(dir)
		}
	}
}

// WithClock overrides the time source used for default file names.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(catalog repository.CatalogReader, logger *zap.Logger, opts ...Option) *Service {
	service := &Service{
		catalog:   catalog,
		logger:    logging.Component(logger, "export"),
		exportDir: ".",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Request selects what to export. ProductID wins over Search; with neither
// the first Limit products are exported.
type Request struct {
	ProductID  string
	Search     string
	Limit      int
	Namespaces domain.NamespacePolicy
	// AllPages follows the listing cursor. Without it only the first page is
	// read and Result.Truncated reports whether more products exist.
	AllPages bool
	FileName string
}

// Result is the in-memory export: one row per variant, identical columns.
// TruncatedProducts and TruncatedVariants count connections that had more
// entries than one request returns; those rows are incomplete.
type Result struct {
	Columns   []string
	Rows      []domain.Row
	Products  int
	Truncated bool

	TruncatedProducts int
	TruncatedVariants int
}

// Summary describes a written export file.
type Summary struct {
	FilePath     string `json:"filePath"`
	Products     int    `json:"products"`
	Variants     int    `json:"variants"`
	Columns      int    `json:"columns"`
	BytesWritten int64  `json:"bytesWritten"`
	Truncated    bool   `json:"truncated"`

	TruncatedProducts int `json:"truncatedProducts,omitempty"`
	TruncatedVariants int `json:"truncatedVariants,omitempty"`
}

// Collect resolves the metafield column set, fetches the selected products
// and flattens every variant into a row. Any API error aborts the whole read.
func (s *Service) Collect(ctx context.Context, req Request) (Result, error) {
	definitions, err := s.catalog.MetafieldDefinitions(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load metafield definitions: %w", err)
	}
	definitions = req.Namespaces.FilterDefinitions(definitions)
	s.logger.Info("metafield definitions resolved", zap.Int("count", len(definitions)))

	products, truncated, err := s.fetchProducts(ctx, req)
	if err != nil {
		return Result{}, err
	}

	keys := metafieldColumns(definitions, products, req.Namespaces)
	columns := domain.ExportColumns(keys)

	result := Result{
		Columns:   columns,
		Rows:      make([]domain.Row, 0),
		Products:  len(products),
		Truncated: truncated,
	}
	for _, product := range products {
		if product.VariantsTruncated {
			result.TruncatedProducts++
			s.logger.Warn("product has more variants than were fetched; extra variants are missing from the export",
				zap.String("product_id", product.ID),
				zap.Int("fetched", len(product.Variants)))
		}
		for _, variant := range product.Variants {
			if variant.MetafieldsTruncated {
				result.TruncatedVariants++
				s.logger.Warn("variant has more metafields than were fetched; extra metafields are missing from the export",
					zap.String("variant_id", variant.ID),
					zap.Int("fetched", len(variant.Metafields)))
			}
			result.Rows = append(result.Rows, domain.FlattenVariant(product, variant, keys))
		}
	}
	return result, nil
}

func (s *Service) fetchProducts(ctx context.Context, req Request) ([]domain.Product, bool, error) {
	if id := strings.TrimSpace(req.ProductID); id != "" {
		product, err := s.catalog.ProductByID(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("load product %s: %w", id, err)
		}
		if product == nil {
			s.logger.Warn("product not found", zap.String("product_id", id))
			return []domain.Product{}, false, nil
		}
		return []domain.Product{*product}, false, nil
	}

	limit := req.Limit
	if limit <= 0 && !req.AllPages {
		limit = DefaultLimit
	}

	var products []domain.Product
	after := ""
	for {
		first := maxPageSize
		if limit > 0 {
			remaining := limit - len(products)
			if remaining <= 0 {
				break
			}
			if remaining < first {
				first = remaining
			}
		}
		page, err := s.catalog.ListProducts(ctx, repository.ProductListOptions{
			Query: req.Search,
			First: first,
			After: after,
		})
		if err != nil {
			return nil, false, fmt.Errorf("list products: %w", err)
		}
		products = append(products, page.Products...)
		s.logger.Info("products fetched", zap.Int("page_size", len(page.Products)), zap.Int("total", len(products)))

		more := page.HasNextPage && page.EndCursor != ""
		if !more {
			return products, false, nil
		}
		if !req.AllPages {
			s.logger.Warn("more products match than were exported; only the first page is read (use --all-pages to follow the cursor)",
				zap.Int("exported", len(products)))
			return products, true, nil
		}
		if limit > 0 && len(products) >= limit {
			return products, true, nil
		}
		after = page.EndCursor
	}
	return products, false, nil
}

// metafieldColumns returns the defined keys followed by any allowed keys seen
// on variants without a definition, so every row carries the same columns.
func metafieldColumns(definitions []domain.MetafieldDefinition, products []domain.Product, policy domain.NamespacePolicy) []domain.MetafieldKey {
	keys := make([]domain.MetafieldKey, 0, len(definitions))
	known := make(map[domain.MetafieldKey]struct{}, len(definitions))
	for _, def := range definitions {
		key := def.MetafieldKey()
		keys = append(keys, key)
		known[key] = struct{}{}
	}

	extra := map[domain.MetafieldKey]string{}
	for _, product := range products {
		for _, variant := range product.Variants {
			for key := range variant.Metafields {
				if _, ok := known[key]; ok || !key.Valid() || !policy.Allows(key.Namespace) {
					continue
				}
				extra[key] = ""
			}
		}
	}
	return append(keys, domain.SortedMetafieldKeys(extra)...)
}

// Export collects rows and writes them to the export directory. The file is
// written to a temporary name and renamed into place only on success.
func (s *Service) Export(ctx context.Context, req Request) (Summary, error) {
	fileName := s.finalFileName(req)
	format, err := tabular.FormatFor(fileName)
	if err != nil {
		return Summary{}, err
	}

	result, err := s.Collect(ctx, req)
	if err != nil {
		return Summary{}, err
	}

	if err := s.ensureExportDirectory(); err != nil {
		return Summary{}, err
	}
	tempFile, err := os.CreateTemp(s.exportDir, ".export-*"+filepath.Ext(fileName))
	if err != nil {
		return Summary{}, fmt.Errorf("create temp export file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	buffered := bufio.NewWriterSize(tempFile, 1<<20)
	counter := &countingWriter{writer: buffered}
	switch format {
	case tabular.FormatXLSX:
		err = tabular.WriteXLSX(counter, result.Columns, result.Rows)
	default:
		err = tabular.WriteCSV(counter, result.Columns, result.Rows)
	}
	if err != nil {
		return Summary{}, err
	}
	if err := buffered.Flush(); err != nil {
		return Summary{}, fmt.Errorf("flush export file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return Summary{}, fmt.Errorf("sync export file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return Summary{}, fmt.Errorf("close export file: %w", err)
	}

	finalPath := filepath.Join(s.exportDir, fileName)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return Summary{}, fmt.Errorf("promote export file: %w", err)
	}
	cleanup = false

	summary := Summary{
		FilePath:     finalPath,
		Products:     result.Products,
		Variants:     len(result.Rows),
		Columns:      len(result.Columns),
		BytesWritten: counter.count,
		Truncated:    result.Truncated,

		TruncatedProducts: result.TruncatedProducts,
		TruncatedVariants: result.TruncatedVariants,
	}
	s.logger.Info("export completed",
		zap.String("path", finalPath),
		zap.Int("products", summary.Products),
		zap.Int("rows", summary.Variants))
	return summary, nil
}

func (s *Service) ensureExportDirectory() error {
	if strings.TrimSpace(s.exportDir) == "" {
		return errors.New("export directory is not configured")
	}
	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return fmt.Errorf("ensure export directory: %w", err)
	}
	return nil
}

func (s *Service) finalFileName(req Request) string {
	if name := strings.TrimSpace(req.FileName); name != "" {
		return filepath.Base(name)
	}
	if id := strings.TrimSpace(req.ProductID); id != "" {
		return fmt.Sprintf("product-%s-variant-metafields.csv", sanitizeFileComponent(lastPathSegment(id)))
	}
	return fmt.Sprintf("variant-metafields-%s.csv", s.now().Format("20060102-150405"))
}

func lastPathSegment(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			builder.WriteRune(r)
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "export"
	}
	return result
}

type countingWriter struct {
	writer *bufio.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}
