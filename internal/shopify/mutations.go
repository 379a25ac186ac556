package shopify

import (
	"context"
	"errors"

	"github.com/rpattn/shopsync/internal/domain"
)

// VariantParents resolves the owning product of each variant with a single
// nodes query. Variants the API does not know are left out of the map.
func (c *Client) VariantParents(ctx context.Context, variantIDs []string) (map[string]string, error) {
	parents := make(map[string]string, len(variantIDs))
	if len(variantIDs) == 0 {
		return parents, nil
	}
	gids := make([]string, len(variantIDs))
	for i, id := range variantIDs {
		gids[i] = domain.VariantGID(id)
	}

	var resp struct {
		Nodes []*struct {
			ID      string `json:"id"`
			Product *struct {
				ID string `json:"id"`
			} `json:"product"`
		} `json:"nodes"`
	}
	if err := c.run(ctx, opVariantParents, map[string]any{"ids": gids}, &resp); err != nil {
		return nil, err
	}
	for _, node := range resp.Nodes {
		if node == nil || node.ID == "" || node.Product == nil {
			continue
		}
		parents[node.ID] = node.Product.ID
	}
	// Callers may have passed bare numeric IDs; answer under the key they used.
	for i, id := range variantIDs {
		if parent, ok := parents[gids[i]]; ok {
			parents[id] = parent
		}
	}
	return parents, nil
}

// UpdateVariantMetafields writes all inputs to one variant in one mutation.
func (c *Client) UpdateVariantMetafields(ctx context.Context, productID, variantID string, inputs []domain.MetafieldInput) error {
	if len(inputs) == 0 {
		return errors.New("no metafields to update")
	}
	metafields := make([]map[string]any, len(inputs))
	for i, in := range inputs {
		metafields[i] = map[string]any{
			"namespace": in.Namespace,
			"key":       in.Key,
			"value":     in.Value,
			"type":      in.Type,
		}
	}
	vars := map[string]any{
		"productId": domain.ProductGID(productID),
		"variants": []map[string]any{{
			"id":         domain.VariantGID(variantID),
			"metafields": metafields,
		}},
	}

	var resp struct {
		ProductVariantsBulkUpdate struct {
			ProductVariants []struct {
				ID string `json:"id"`
			} `json:"productVariants"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"productVariantsBulkUpdate"`
	}
	if err := c.run(ctx, opVariantMetafieldsUpdate, vars, &resp); err != nil {
		return err
	}
	return userErrors(resp.ProductVariantsBulkUpdate.UserErrors)
}

// UpdateProductTemplate sets the template suffix of a product. An empty
// suffix restores the default template.
func (c *Client) UpdateProductTemplate(ctx context.Context, productID, templateSuffix string) error {
	input := map[string]any{
		"id":             domain.ProductGID(productID),
		"templateSuffix": templateSuffix,
	}
	if templateSuffix == "" {
		input["templateSuffix"] = nil
	}
	var resp struct {
		ProductUpdate struct {
			Product *struct {
				ID             string  `json:"id"`
				TemplateSuffix *string `json:"templateSuffix"`
			} `json:"product"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"productUpdate"`
	}
	if err := c.run(ctx, opProductTemplateUpdate, map[string]any{"input": input}, &resp); err != nil {
		return err
	}
	return userErrors(resp.ProductUpdate.UserErrors)
}
