package repository

import (
	"context"

	"github.com/rpattn/shopsync/internal/domain"
)

// ProductListOptions selects one page of a product listing.
type ProductListOptions struct {
	Query string
	First int
	After string
}

// ProductPage is one page of products plus the cursor needed to continue.
type ProductPage struct {
	Products    []domain.Product
	HasNextPage bool
	EndCursor   string
}

// MetafieldDefinitionLister lists the variant metafield definitions of the shop.
type MetafieldDefinitionLister interface {
	MetafieldDefinitions(ctx context.Context) ([]domain.MetafieldDefinition, error)
}

// CatalogReader defines the read side used by the export.
type CatalogReader interface {
	MetafieldDefinitionLister
	// ProductByID returns nil and no error when the product does not exist.
	ProductByID(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, opts ProductListOptions) (ProductPage, error)
}

// VariantParentLookup resolves the owning product of each variant. Unknown
// variants are absent from the returned map.
type VariantParentLookup interface {
	VariantParents(ctx context.Context, variantIDs []string) (map[string]string, error)
}

// MetafieldWriter applies metafield values to one variant.
type MetafieldWriter interface {
	UpdateVariantMetafields(ctx context.Context, productID, variantID string, inputs []domain.MetafieldInput) error
}

// ProductTemplateStore lists products without variants and reassigns their template.
type ProductTemplateStore interface {
	ListProductSummaries(ctx context.Context, opts ProductListOptions) (ProductPage, error)
	CollectionProductSummaries(ctx context.Context, handle string, opts ProductListOptions) (ProductPage, error)
	ProductSummariesByID(ctx context.Context, ids []string) ([]domain.Product, error)
	UpdateProductTemplate(ctx context.Context, productID, templateSuffix string) error
}
