package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/shopsync/internal/domain"
	"github.com/rpattn/shopsync/internal/repository"
	"github.com/rpattn/shopsync/internal/tabular"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubCatalog struct {
	definitions []domain.MetafieldDefinition
	products    map[string]*domain.Product
	pages       []repository.ProductPage
	listCalls   []repository.ProductListOptions
	err         error
}

func (s *stubCatalog) MetafieldDefinitions(context.Context) ([]domain.MetafieldDefinition, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.definitions, nil
}

func (s *stubCatalog) ProductByID(_ context.Context, id string) (*domain.Product, error) {
	return s.products[id], nil
}

func (s *stubCatalog) ListProducts(_ context.Context, opts repository.ProductListOptions) (repository.ProductPage, error) {
	s.listCalls = append(s.listCalls, opts)
	if s.err != nil {
		return repository.ProductPage{}, s.err
	}
	if len(s.listCalls) > len(s.pages) {
		return repository.ProductPage{}, nil
	}
	return s.pages[len(s.listCalls)-1], nil
}

var (
	colorKey = domain.MetafieldKey{Namespace: "custom", Key: "color"}
	sizeKey  = domain.MetafieldKey{Namespace: "custom", Key: "size"}
)

func sampleProduct() *domain.Product {
	return &domain.Product{
		ID:     "gid://shopify/Product/123",
		Title:  "Tee",
		Handle: "tee",
		Variants: []domain.Variant{
			{ID: "gid://shopify/ProductVariant/1", Title: "S", Metafields: map[domain.MetafieldKey]string{colorKey: "Red"}},
			{ID: "gid://shopify/ProductVariant/2", Title: "M", Metafields: map[domain.MetafieldKey]string{sizeKey: "M"}},
			{ID: "gid://shopify/ProductVariant/3", Title: "L", Metafields: map[domain.MetafieldKey]string{}},
		},
	}
}

func TestCollectSingleProductPadsEveryDefinition(t *testing.T) {
	catalog := &stubCatalog{
		definitions: []domain.MetafieldDefinition{
			{Namespace: "custom", Key: "color", Type: "single_line_text_field"},
			{Namespace: "custom", Key: "size", Type: "single_line_text_field"},
		},
		products: map[string]*domain.Product{"123": sampleProduct()},
	}
	service := NewService(catalog, zap.NewNop())

	result, err := service.Collect(context.Background(), Request{ProductID: "123", Namespaces: domain.AllNamespaces})
	require.NoError(t, err)

	require.Len(t, result.Rows, 3)
	assert.Equal(t, 1, result.Products)
	assert.Contains(t, result.Columns, "attribute_custom_color")
	assert.Contains(t, result.Columns, "attribute_custom_size")
	for _, row := range result.Rows {
		assert.Len(t, row, len(result.Columns))
	}
	assert.Equal(t, "", result.Rows[2]["attribute_custom_color"])
	assert.Equal(t, "", result.Rows[2]["attribute_custom_size"])
	assert.Empty(t, catalog.listCalls)
}

func TestCollectNamespacePolicyAndUndefinedKeys(t *testing.T) {
	product := sampleProduct()
	product.Variants[0].Metafields[domain.MetafieldKey{Namespace: "custom", Key: "fabric"}] = "cotton"
	product.Variants[1].Metafields[domain.MetafieldKey{Namespace: "legacy", Key: "code"}] = "X1"

	catalog := &stubCatalog{
		definitions: []domain.MetafieldDefinition{
			{Namespace: "custom", Key: "color"},
			{Namespace: "legacy", Key: "code"},
		},
		pages: []repository.ProductPage{{Products: []domain.Product{*product}}},
	}
	service := NewService(catalog, zap.NewNop())

	result, err := service.Collect(context.Background(), Request{Namespaces: domain.NamespacePolicy{Namespaces: []string{"custom"}}})
	require.NoError(t, err)

	metafieldColumns := result.Columns[len(domain.BaseColumns):]
	assert.Equal(t, []string{"attribute_custom_color", "attribute_custom_fabric", "attribute_custom_size"}, metafieldColumns)
	assert.Equal(t, "cotton", result.Rows[0]["attribute_custom_fabric"])
}

func TestCollectFirstPageOnlyReportsTruncation(t *testing.T) {
	catalog := &stubCatalog{
		pages: []repository.ProductPage{
			{Products: []domain.Product{*sampleProduct()}, HasNextPage: true, EndCursor: "c1"},
			{Products: []domain.Product{*sampleProduct()}},
		},
	}
	service := NewService(catalog, zap.NewNop())

	result, err := service.Collect(context.Background(), Request{Search: "vendor:Acme"})
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	assert.Equal(t, 1, result.Products)
	require.Len(t, catalog.listCalls, 1)
	assert.Equal(t, "vendor:Acme", catalog.listCalls[0].Query)
	assert.Equal(t, DefaultLimit, catalog.listCalls[0].First)
}

func TestCollectAllPagesFollowsCursor(t *testing.T) {
	catalog := &stubCatalog{
		pages: []repository.ProductPage{
			{Products: []domain.Product{*sampleProduct()}, HasNextPage: true, EndCursor: "c1"},
			{Products: []domain.Product{*sampleProduct()}},
		},
	}
	service := NewService(catalog, zap.NewNop())

	result, err := service.Collect(context.Background(), Request{AllPages: true})
	require.NoError(t, err)

	assert.False(t, result.Truncated)
	assert.Equal(t, 2, result.Products)
	require.Len(t, catalog.listCalls, 2)
	assert.Equal(t, "c1", catalog.listCalls[1].After)
}

func TestCollectFlagsTruncatedConnections(t *testing.T) {
	product := sampleProduct()
	product.VariantsTruncated = true
	product.Variants[1].MetafieldsTruncated = true
	catalog := &stubCatalog{
		definitions: []domain.MetafieldDefinition{{Namespace: "custom", Key: "color"}},
		products:    map[string]*domain.Product{"123": product},
	}
	core, logs := observer.New(zap.WarnLevel)
	service := NewService(catalog, zap.New(core))

	result, err := service.Collect(context.Background(), Request{ProductID: "123"})
	require.NoError(t, err)

	assert.Len(t, result.Rows, 3)
	assert.Equal(t, 1, result.TruncatedProducts)
	assert.Equal(t, 1, result.TruncatedVariants)
	assert.Equal(t, 1, logs.FilterMessageSnippet("more variants than were fetched").Len())
	warned := logs.FilterMessageSnippet("more metafields than were fetched").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "gid://shopify/ProductVariant/2", warned[0].ContextMap()["variant_id"])
}

func TestExportWritesFileAtomically(t *testing.T) {
	dir := t.TempDir()
	catalog := &stubCatalog{
		definitions: []domain.MetafieldDefinition{{Namespace: "custom", Key: "color"}, {Namespace: "custom", Key: "size"}},
		products:    map[string]*domain.Product{"123": sampleProduct()},
	}
	service := NewService(catalog, zap.NewNop(), WithExportDirectory(dir))

	summary, err := service.Export(context.Background(), Request{ProductID: "123"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "product-123-variant-metafields.csv"), summary.FilePath)
	assert.Equal(t, 3, summary.Variants)

	payload, err := os.ReadFile(summary.FilePath)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), summary.BytesWritten)

	table, err := tabular.DecodeCSV(payload)
	require.NoError(t, err)
	assert.Len(t, table.Rows, 3)
	assert.Equal(t, "Red", table.Rows[0]["attribute_custom_color"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExportFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	catalog := &stubCatalog{err: errors.New("throttled")}
	service := NewService(catalog, zap.NewNop(), WithExportDirectory(dir))

	_, err := service.Export(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExportDefaultNameUsesClock(t *testing.T) {
	dir := t.TempDir()
	clock := func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	service := NewService(&stubCatalog{}, zap.NewNop(), WithExportDirectory(dir), WithClock(clock))

	summary, err := service.Export(context.Background(), Request{FileName: ""})
	require.NoError(t, err)

	assert.Equal(t, "variant-metafields-20240501-093000.csv", filepath.Base(summary.FilePath))
	payload, err := os.ReadFile(summary.FilePath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "product_id,"))
	assert.NotContains(t, string(payload), "\n")
}
