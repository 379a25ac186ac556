package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rpattn/shopsync/internal/config"
	"github.com/rpattn/shopsync/internal/domain"
	"github.com/rpattn/shopsync/internal/logging"
	"github.com/rpattn/shopsync/internal/parentloader"
	"github.com/rpattn/shopsync/internal/repository"
	"github.com/rpattn/shopsync/internal/tabular"
	"github.com/rpattn/shopsync/pkg/validator"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// OperationName labels import reports.
const OperationName = "metafield import"

var (
	// ErrMissingVariantColumn is returned when the header lacks variant_id.
	ErrMissingVariantColumn = fmt.Errorf("header must contain a %q column", domain.ColumnVariantID)
	// ErrEmptyFile is returned for an input without any content.
	ErrEmptyFile = errors.New("file is empty")
)

// Recorder receives each record result as soon as it is known.
type Recorder interface {
	Record(result domain.RecordResult) error
}

// SleepFunc pauses between batches; it returns early when ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Service applies edited metafield rows back to the shop, one variant at a
// time, in fixed size batches with a fixed pause between batches.
type Service struct {
	definitions repository.MetafieldDefinitionLister
	writer      repository.MetafieldWriter
	parents     repository.VariantParentLookup
	validator   *validator.MetafieldValidator
	cfg         config.Config
	logger      *zap.Logger
	sleep       SleepFunc
	now         func() time.Time
}

type Option func(*Service)

// WithSleep replaces the pause between batches.
func WithSleep(sleep SleepFunc) Option {
	return func(s *Service) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithClock overrides the report time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new ingestion service. definitions may be nil, in
// which case metafield types come from cfg alone.
func NewService(
	cfg config.Config,
	definitions repository.MetafieldDefinitionLister,
	writer repository.MetafieldWriter,
	parents repository.VariantParentLookup,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	service := &Service{
		definitions: definitions,
		writer:      writer,
		parents:     parents,
		validator:   validator.NewMetafieldValidator(),
		cfg:         cfg,
		logger:      logging.Component(logger, "import"),
		sleep:       sleepContext,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	if service.cfg.BatchSize <= 0 {
		service.cfg.BatchSize = config.DefaultBatchSize
	}
	return service
}

// Request describes the ingestion input.
type Request struct {
	FileName string
	Data     io.Reader
	DryRun   bool
	Recorder Recorder
}

// Ingest parses the uploaded file and applies every row. File level problems
// are returned as errors before any mutation; per record problems only ever
// show up in the report. A cancelled context stops the run between records
// and returns the partial report together with the context error.
func (s *Service) Ingest(ctx context.Context, req Request) (domain.Report, error) {
	report := domain.NewReport(OperationName, req.FileName, req.DryRun, s.now())

	if req.Data == nil {
		return report, errors.New("data reader is required")
	}
	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return report, fmt.Errorf("failed to read input: %w", err)
	}
	if len(strings.TrimSpace(string(payload))) == 0 {
		return report, ErrEmptyFile
	}

	table, err := tabular.Decode(req.FileName, payload)
	if err != nil {
		return report, err
	}
	if !table.HasColumn(domain.ColumnVariantID) {
		return report, ErrMissingVariantColumn
	}
	for _, warning := range table.Warnings {
		s.logger.Warn(warning)
	}
	if !lo.ContainsBy(table.Columns, domain.IsMetafieldColumn) {
		s.logger.Warn("no attribute_* columns found; every row will be skipped")
	}
	report.Dropped = table.Dropped

	s.logger.Info("input parsed",
		zap.String("file", req.FileName),
		zap.Int("rows", len(table.Rows)),
		zap.Int("dropped", table.Dropped),
		zap.Bool("dry_run", req.DryRun))

	err = s.Apply(ctx, &report, table, req.DryRun, req.Recorder)
	report.Finish(s.now())
	return report, err
}

// planned is the outcome of extraction and validation for one row, shared
// by dry and live runs.
type planned struct {
	line        int
	variantID   string
	productHint string
	inputs      []domain.MetafieldInput
	changes     []domain.MetafieldValue
	// outcome is set when the row is decided without any API call.
	outcome *domain.RecordResult
}

// Apply processes the table rows batch by batch and appends every outcome
// to report.
func (s *Service) Apply(ctx context.Context, report *domain.Report, table tabular.Table, dryRun bool, recorder Recorder) error {
	schema, err := s.loadSchema(ctx)
	if err != nil {
		return err
	}

	indexes := make([]int, len(table.Rows))
	for i := range indexes {
		indexes[i] = i
	}
	batches := lo.Chunk(indexes, s.cfg.BatchSize)

	var loader *parentloader.ParentLoader
	if !dryRun {
		loader = parentloader.NewParentLoader(s.parents)
	}

	for batchNo, batch := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.logger.Info(fmt.Sprintf("batch %d/%d", batchNo+1, len(batches)), zap.Int("rows", len(batch)))

		plans := make([]planned, len(batch))
		for i, idx := range batch {
			line := 0
			if idx < len(table.Lines) {
				line = table.Lines[idx]
			}
			plans[i] = s.plan(table.Rows[idx], line, schema)
		}

		if !dryRun {
			var ids []string
			for _, p := range plans {
				if p.outcome == nil {
					ids = append(ids, p.variantID)
				}
			}
			loader.Prime(ctx, ids)
		}

		for _, p := range plans {
			if err := ctx.Err(); err != nil {
				return err
			}
			var result domain.RecordResult
			switch {
			case p.outcome != nil:
				result = *p.outcome
			case dryRun:
				result = s.preview(p)
			default:
				result = s.apply(ctx, loader, p)
			}
			s.record(report, recorder, result)
		}

		if !dryRun && batchNo < len(batches)-1 && s.cfg.BatchDelay > 0 {
			s.logger.Debug("pausing between batches", zap.Duration("delay", s.cfg.BatchDelay))
			if err := s.sleep(ctx, s.cfg.BatchDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// plan extracts and validates the metafield changes of one row without
// touching the network.
func (s *Service) plan(row domain.Row, line int, schema metafieldSchema) planned {
	p := planned{
		line:        line,
		variantID:   row.Get(domain.ColumnVariantID),
		productHint: row.Get(domain.ColumnProductID),
	}

	p.changes = row.MetafieldValues(schema.namespaces)
	if len(p.changes) == 0 {
		p.outcome = &domain.RecordResult{
			ID:     p.variantID,
			Row:    line,
			Status: domain.RecordStatusSkipped,
			Note:   "no metafield values",
		}
		return p
	}

	if p.variantID == "" {
		p.outcome = &domain.RecordResult{
			Row:     line,
			Status:  domain.RecordStatusFailed,
			Error:   "missing variant_id",
			Changes: p.changes,
		}
		return p
	}
	if !domain.ValidVariantID(p.variantID) {
		p.outcome = &domain.RecordResult{
			ID:      p.variantID,
			Row:     line,
			Status:  domain.RecordStatusFailed,
			Error:   fmt.Sprintf("invalid variant_id %q", p.variantID),
			Changes: p.changes,
		}
		return p
	}

	p.inputs = make([]domain.MetafieldInput, len(p.changes))
	for i, change := range p.changes {
		p.inputs[i] = domain.MetafieldInput{
			Namespace: change.Namespace,
			Key:       change.Key,
			Value:     change.Value,
			Type:      schema.typeOf(change.MetafieldKey),
		}
	}

	validation := s.validator.ValidateInputs(p.inputs)
	if !validation.IsValid {
		p.outcome = &domain.RecordResult{
			ID:      p.variantID,
			Row:     line,
			Status:  domain.RecordStatusFailed,
			Error:   strings.Join(validation.Messages(), "; "),
			Changes: p.changes,
		}
		return p
	}
	for _, warning := range validation.Warnings {
		s.logger.Debug("validation warning", zap.String("variant_id", p.variantID), zap.String("field", warning.Field), zap.String("message", warning.Message))
	}
	return p
}

// metafieldSchema holds the declared type of every known metafield and the
// namespaces used to split attribute column names.
type metafieldSchema struct {
	types      map[domain.MetafieldKey]string
	namespaces []string
}

func (m metafieldSchema) typeOf(key domain.MetafieldKey) string {
	if t, ok := m.types[key]; ok && t != "" {
		return t
	}
	return config.DefaultMetafieldType
}

// loadSchema reads the shop's definitions once per run, in dry and live runs
// alike, so both classify rows the same way. Types from config override the
// shop's.
func (s *Service) loadSchema(ctx context.Context) (metafieldSchema, error) {
	schema := metafieldSchema{types: map[domain.MetafieldKey]string{}}
	namespaces := s.cfg.KnownNamespaces()

	if s.definitions != nil {
		definitions, err := s.definitions.MetafieldDefinitions(ctx)
		if err != nil {
			return schema, fmt.Errorf("load metafield definitions: %w", err)
		}
		for _, def := range definitions {
			key := def.MetafieldKey()
			if !key.Valid() {
				continue
			}
			schema.types[key] = def.Type
			namespaces = append(namespaces, def.Namespace)
		}
		s.logger.Info("metafield definitions loaded", zap.Int("count", len(definitions)))
	}
	for key, typ := range s.cfg.MetafieldTypes {
		schema.types[key] = typ
	}

	schema.namespaces = lo.Uniq(namespaces)
	sort.Strings(schema.namespaces)
	return schema, nil
}

func (s *Service) preview(p planned) domain.RecordResult {
	s.logger.Info("[dry run] would update variant",
		zap.String("variant_id", p.variantID),
		zap.Int("row", p.line),
		zap.Strings("metafields", describeChanges(p.changes)))
	return domain.RecordResult{
		ID:      p.variantID,
		Row:     p.line,
		Status:  domain.RecordStatusSuccess,
		Changes: p.changes,
		Note:    "dry run",
	}
}

func (s *Service) apply(ctx context.Context, loader *parentloader.ParentLoader, p planned) domain.RecordResult {
	result := domain.RecordResult{
		ID:      p.variantID,
		Row:     p.line,
		Changes: p.changes,
	}

	productID, err := loader.ProductID(ctx, p.variantID)
	if err != nil {
		result.Status = domain.RecordStatusFailed
		result.Error = err.Error()
		s.logger.Warn("variant lookup failed", zap.String("variant_id", p.variantID), zap.Error(err))
		return result
	}
	if p.productHint != "" && domain.ProductGID(p.productHint) != productID {
		s.logger.Warn("product_id column disagrees with the shop; using the shop's value",
			zap.String("variant_id", p.variantID),
			zap.String("column", p.productHint),
			zap.String("shop", productID))
	}

	if err := s.writer.UpdateVariantMetafields(ctx, productID, p.variantID, p.inputs); err != nil {
		result.Status = domain.RecordStatusFailed
		result.Error = err.Error()
		s.logger.Warn("variant update failed", zap.String("variant_id", p.variantID), zap.Error(err))
		return result
	}

	result.Status = domain.RecordStatusSuccess
	s.logger.Info("variant updated",
		zap.String("variant_id", p.variantID),
		zap.Strings("metafields", describeChanges(p.changes)))
	return result
}

func (s *Service) record(report *domain.Report, recorder Recorder, result domain.RecordResult) {
	report.Add(result)
	if result.Status == domain.RecordStatusSkipped {
		s.logger.Debug("row skipped", zap.Int("row", result.Row), zap.String("variant_id", result.ID))
	}
	if recorder == nil {
		return
	}
	if err := recorder.Record(result); err != nil {
		s.logger.Warn("failed to journal result", zap.String("variant_id", result.ID), zap.Error(err))
	}
}

func describeChanges(changes []domain.MetafieldValue) []string {
	return lo.Map(changes, func(c domain.MetafieldValue, _ int) string {
		return fmt.Sprintf("%s=%s", c.MetafieldKey, c.Value)
	})
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
