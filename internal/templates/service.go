package templates

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rpattn/shopsync/internal/config"
	"github.com/rpattn/shopsync/internal/domain"
	"github.com/rpattn/shopsync/internal/logging"
	"github.com/rpattn/shopsync/internal/repository"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// OperationName labels template reports.
const OperationName = "template assignment"

// DefaultLimit caps how many products one run may touch.
const DefaultLimit = 250

var (
	// ErrNoFilter refuses to touch the whole catalog by accident.
	ErrNoFilter = errors.New("at least one filter (tag, vendor, type, collection, search or ids) is required")
	// ErrDeclined is returned when the operator answers no at the prompt.
	ErrDeclined = errors.New("assignment declined")
)

// Confirmer asks the operator a yes/no question.
type Confirmer func(prompt string) (bool, error)

// SleepFunc pauses between batches; it returns early when ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Service reassigns the product template of every product matching a filter.
type Service struct {
	store   repository.ProductTemplateStore
	cfg     config.Config
	logger  *zap.Logger
	confirm Confirmer
	sleep   SleepFunc
	now     func() time.Time
}

type Option func(*Service)

func WithConfirmer(confirm Confirmer) Option {
	return func(s *Service) {
		if confirm != nil {
			s.confirm = confirm
		}
	}
}

func WithSleep(sleep SleepFunc) Option {
	return func(s *Service) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(cfg config.Config, store repository.ProductTemplateStore, logger *zap.Logger, opts ...Option) *Service {
	service := &Service{
		store:  store,
		cfg:    cfg,
		logger: logging.Component(logger, "templates"),
		confirm: func(string) (bool, error) {
			return false, errors.New("no confirmation prompt configured; use --force")
		},
		sleep: sleepContext,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	if service.cfg.BatchSize <= 0 {
		service.cfg.BatchSize = config.DefaultBatchSize
	}
	return service
}

// Request describes one reassignment run.
type Request struct {
	Filter   domain.ProductFilter
	Template string
	Limit    int
	Force    bool
	DryRun   bool
}

// Select lists the products matching filter, at most limit of them.
func (s *Service) Select(ctx context.Context, filter domain.ProductFilter, limit int) ([]domain.Product, error) {
	if filter.IsEmpty() {
		return nil, ErrNoFilter
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	if len(filter.IDs) > 0 {
		products, err := s.store.ProductSummariesByID(ctx, lo.Uniq(filter.IDs))
		if err != nil {
			return nil, fmt.Errorf("load products by id: %w", err)
		}
		if len(products) < len(lo.Uniq(filter.IDs)) {
			s.logger.Warn("some product ids were not found", zap.Int("requested", len(filter.IDs)), zap.Int("found", len(products)))
		}
		products = lo.Filter(products, func(p domain.Product, _ int) bool { return filter.Matches(p) })
		return lo.Subset(products, 0, uint(limit)), nil
	}

	list := func(opts repository.ProductListOptions) (repository.ProductPage, error) {
		return s.store.ListProductSummaries(ctx, opts)
	}
	local := false
	if handle := strings.TrimSpace(filter.CollectionHandle); handle != "" {
		if strings.TrimSpace(filter.Search) != "" {
			s.logger.Warn("search text is ignored for collection listings", zap.String("collection", handle))
		}
		list = func(opts repository.ProductListOptions) (repository.ProductPage, error) {
			return s.store.CollectionProductSummaries(ctx, handle, opts)
		}
		local = true
	}

	var products []domain.Product
	after := ""
	query := filter.SearchQuery()
	for len(products) < limit {
		page, err := list(repository.ProductListOptions{Query: query, First: min(limit-len(products), 250), After: after})
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		for _, p := range page.Products {
			if local && !filter.Matches(p) {
				continue
			}
			products = append(products, p)
		}
		if !page.HasNextPage || page.EndCursor == "" {
			break
		}
		after = page.EndCursor
	}
	return lo.Subset(products, 0, uint(limit)), nil
}

// Assign applies the template to every selected product. Products already
// on the template are skipped. Without Force the operator must confirm.
func (s *Service) Assign(ctx context.Context, req Request) (domain.Report, error) {
	report := domain.NewReport(OperationName, req.Template, req.DryRun, s.now())
	done := func(err error) (domain.Report, error) {
		report.Finish(s.now())
		return report, err
	}

	template, err := domain.LookupTemplate(req.Template)
	if err != nil {
		return done(err)
	}
	report.Source = template.Name

	products, err := s.Select(ctx, req.Filter, req.Limit)
	if err != nil {
		return done(err)
	}
	if len(products) == 0 {
		s.logger.Info("no products matched")
		return done(nil)
	}

	for _, p := range products {
		s.logger.Info("matched product",
			zap.String("id", p.ID),
			zap.String("title", p.Title),
			zap.String("current_template", displaySuffix(p.TemplateSuffix)))
	}

	if !req.DryRun && !req.Force {
		ok, err := s.confirm(fmt.Sprintf("Assign template %q to %d product(s)?", template.Name, len(products)))
		if err != nil {
			return done(err)
		}
		if !ok {
			return done(ErrDeclined)
		}
	}

	batches := lo.Chunk(products, s.cfg.BatchSize)
	for batchNo, batch := range batches {
		for _, p := range batch {
			if err := ctx.Err(); err != nil {
				return done(err)
			}
			report.Add(s.assignOne(ctx, p, template, req.DryRun))
		}
		if !req.DryRun && batchNo < len(batches)-1 && s.cfg.BatchDelay > 0 {
			if err := s.sleep(ctx, s.cfg.BatchDelay); err != nil {
				return done(err)
			}
		}
	}
	return done(nil)
}

func (s *Service) assignOne(ctx context.Context, p domain.Product, template domain.Template, dryRun bool) domain.RecordResult {
	result := domain.RecordResult{ID: p.ID}
	if p.TemplateSuffix == template.Suffix {
		result.Status = domain.RecordStatusSkipped
		result.Note = "already uses template"
		return result
	}
	if dryRun {
		s.logger.Info("[dry run] would assign template",
			zap.String("id", p.ID),
			zap.String("from", displaySuffix(p.TemplateSuffix)),
			zap.String("to", template.Name))
		result.Status = domain.RecordStatusSuccess
		result.Note = "dry run"
		return result
	}
	if err := s.store.UpdateProductTemplate(ctx, p.ID, template.Suffix); err != nil {
		s.logger.Warn("template update failed", zap.String("id", p.ID), zap.Error(err))
		result.Status = domain.RecordStatusFailed
		result.Error = err.Error()
		return result
	}
	s.logger.Info("template assigned", zap.String("id", p.ID), zap.String("template", template.Name))
	result.Status = domain.RecordStatusSuccess
	return result
}

func displaySuffix(suffix string) string {
	if suffix == "" {
		return "default"
	}
	return suffix
}

// PromptConfirmer asks on out and reads a y/yes answer from in.
func PromptConfirmer(in io.Reader, out io.Writer) Confirmer {
	reader := bufio.NewReader(in)
	return func(prompt string) (bool, error) {
		fmt.Fprintf(out, "%s [y/N]: ", prompt)
		answer, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("read confirmation: %w", err)
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes", nil
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
