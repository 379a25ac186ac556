package shopify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpattn/shopsync/internal/domain"
	"github.com/rpattn/shopsync/internal/repository"

	"github.com/samber/lo"
)

const (
	definitionsPageSize = 250
	maxPageSize         = 250
	// maxNodesPerQuery is the Admin API limit on nodes(ids:).
	maxNodesPerQuery = 250
)

type productNode struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Handle         string   `json:"handle"`
	Vendor         string   `json:"vendor"`
	ProductType    string   `json:"productType"`
	Tags           []string `json:"tags"`
	TemplateSuffix *string  `json:"templateSuffix"`
	Variants       struct {
		Nodes    []variantNode `json:"nodes"`
		PageInfo pageInfo      `json:"pageInfo"`
	} `json:"variants"`
}

type variantNode struct {
	ID                string                  `json:"id"`
	Title             string                  `json:"title"`
	SKU               *string                 `json:"sku"`
	Price             string                  `json:"price"`
	InventoryQuantity *int                    `json:"inventoryQuantity"`
	SelectedOptions   []domain.SelectedOption `json:"selectedOptions"`
	Metafields        struct {
		Nodes []struct {
			Namespace string `json:"namespace"`
			Key       string `json:"key"`
			Value     string `json:"value"`
			Type      string `json:"type"`
		} `json:"nodes"`
		PageInfo pageInfo `json:"pageInfo"`
	} `json:"metafields"`
}

type productConnection struct {
	Nodes    []productNode `json:"nodes"`
	PageInfo pageInfo      `json:"pageInfo"`
}

func (n productNode) toDomain() domain.Product {
	product := domain.Product{
		ID:          n.ID,
		Title:       n.Title,
		Handle:      n.Handle,
		Vendor:      n.Vendor,
		ProductType: n.ProductType,
		Tags:        n.Tags,
		Variants:    make([]domain.Variant, 0, len(n.Variants.Nodes)),

		VariantsTruncated: n.Variants.PageInfo.HasNextPage,
	}
	if n.TemplateSuffix != nil {
		product.TemplateSuffix = *n.TemplateSuffix
	}
	for _, v := range n.Variants.Nodes {
		variant := domain.Variant{
			ID:              v.ID,
			ProductID:       n.ID,
			Title:           v.Title,
			Price:           v.Price,
			SelectedOptions: v.SelectedOptions,
			Metafields:      make(map[domain.MetafieldKey]string, len(v.Metafields.Nodes)),

			MetafieldsTruncated: v.Metafields.PageInfo.HasNextPage,
		}
		if v.SKU != nil {
			variant.SKU = *v.SKU
		}
		if v.InventoryQuantity != nil {
			variant.InventoryQuantity = *v.InventoryQuantity
		}
		for _, mf := range v.Metafields.Nodes {
			variant.Metafields[domain.MetafieldKey{Namespace: mf.Namespace, Key: mf.Key}] = mf.Value
		}
		product.Variants = append(product.Variants, variant)
	}
	return product
}

func (c productConnection) toPage() repository.ProductPage {
	page := repository.ProductPage{
		Products:    make([]domain.Product, 0, len(c.Nodes)),
		HasNextPage: c.PageInfo.HasNextPage,
		EndCursor:   c.PageInfo.EndCursor,
	}
	for _, node := range c.Nodes {
		page.Products = append(page.Products, node.toDomain())
	}
	return page
}

// MetafieldDefinitions returns every variant metafield definition of the shop.
func (c *Client) MetafieldDefinitions(ctx context.Context) ([]domain.MetafieldDefinition, error) {
	var definitions []domain.MetafieldDefinition
	after := ""
	for {
		var resp struct {
			MetafieldDefinitions struct {
				Nodes []struct {
					Namespace string `json:"namespace"`
					Key       string `json:"key"`
					Name      string `json:"name"`
					Type      struct {
						Name string `json:"name"`
					} `json:"type"`
				} `json:"nodes"`
				PageInfo pageInfo `json:"pageInfo"`
			} `json:"metafieldDefinitions"`
		}
		vars := map[string]any{"first": definitionsPageSize}
		if after != "" {
			vars["after"] = after
		}
		if err := c.run(ctx, opMetafieldDefinitions, vars, &resp); err != nil {
			return nil, err
		}
		for _, node := range resp.MetafieldDefinitions.Nodes {
			definitions = append(definitions, domain.MetafieldDefinition{
				Namespace: node.Namespace,
				Key:       node.Key,
				Name:      node.Name,
				Type:      node.Type.Name,
			})
		}
		info := resp.MetafieldDefinitions.PageInfo
		if !info.HasNextPage || info.EndCursor == "" {
			break
		}
		after = info.EndCursor
	}
	return definitions, nil
}

// ProductByID fetches one product with its variants and their metafields.
func (c *Client) ProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var resp struct {
		Product *productNode `json:"product"`
	}
	vars := map[string]any{
		"id":         domain.ProductGID(id),
		"variants":   c.variantsPerProduct,
		"metafields": c.metafieldsPerVariant,
	}
	if err := c.run(ctx, opProductByID, vars, &resp); err != nil {
		return nil, err
	}
	if resp.Product == nil {
		return nil, nil
	}
	product := resp.Product.toDomain()
	return &product, nil
}

// ListProducts fetches one page of products with variants and metafields.
func (c *Client) ListProducts(ctx context.Context, opts repository.ProductListOptions) (repository.ProductPage, error) {
	var resp struct {
		Products productConnection `json:"products"`
	}
	vars := listVars(opts)
	vars["variants"] = c.variantsPerProduct
	vars["metafields"] = c.metafieldsPerVariant
	if err := c.run(ctx, opProducts, vars, &resp); err != nil {
		return repository.ProductPage{}, err
	}
	return resp.Products.toPage(), nil
}

// ListProductSummaries fetches one page of products without variants.
func (c *Client) ListProductSummaries(ctx context.Context, opts repository.ProductListOptions) (repository.ProductPage, error) {
	var resp struct {
		Products productConnection `json:"products"`
	}
	if err := c.run(ctx, opProductSummaries, listVars(opts), &resp); err != nil {
		return repository.ProductPage{}, err
	}
	return resp.Products.toPage(), nil
}

// CollectionProductSummaries fetches one page of the products in a collection.
func (c *Client) CollectionProductSummaries(ctx context.Context, handle string, opts repository.ProductListOptions) (repository.ProductPage, error) {
	var resp struct {
		CollectionByHandle *struct {
			ID       string            `json:"id"`
			Products productConnection `json:"products"`
		} `json:"collectionByHandle"`
	}
	vars := listVars(opts)
	delete(vars, "query")
	vars["handle"] = strings.TrimSpace(handle)
	if err := c.run(ctx, opCollectionProductSummaries, vars, &resp); err != nil {
		return repository.ProductPage{}, err
	}
	if resp.CollectionByHandle == nil {
		return repository.ProductPage{}, fmt.Errorf("collection %q not found", handle)
	}
	return resp.CollectionByHandle.Products.toPage(), nil
}

// ProductSummariesByID fetches the given products; unknown IDs are omitted.
// IDs are sent in chunks of at most maxNodesPerQuery.
func (c *Client) ProductSummariesByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	gids := make([]string, 0, len(ids))
	for _, id := range ids {
		if gid := domain.ProductGID(id); gid != "" {
			gids = append(gids, gid)
		}
	}
	products := make([]domain.Product, 0, len(gids))
	for _, chunk := range lo.Chunk(gids, maxNodesPerQuery) {
		var resp struct {
			Nodes []*productNode `json:"nodes"`
		}
		if err := c.run(ctx, opProductSummariesByID, map[string]any{"ids": chunk}, &resp); err != nil {
			return nil, err
		}
		for _, node := range resp.Nodes {
			if node == nil || node.ID == "" {
				continue
			}
			products = append(products, node.toDomain())
		}
	}
	return products, nil
}

func listVars(opts repository.ProductListOptions) map[string]any {
	first := opts.First
	if first <= 0 || first > maxPageSize {
		first = maxPageSize
	}
	vars := map[string]any{"first": first}
	if opts.After != "" {
		vars["after"] = opts.After
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		vars["query"] = q
	}
	return vars
}
