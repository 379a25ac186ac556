package shopify

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Operation is a named GraphQL document sent to the Admin API.
type Operation struct {
	Name     string
	Kind     ast.Operation
	Document string
}

// mustOperation parses document and panics unless it holds exactly one named
// operation. All documents are package level so a typo fails at start up.
func mustOperation(document string) Operation {
	op, err := ParseOperation(document)
	if err != nil {
		panic(err)
	}
	return op
}

// ParseOperation extracts the single named operation of document.
func ParseOperation(document string) (Operation, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "operation", Input: document})
	if err != nil {
		return Operation{}, fmt.Errorf("parse graphql document: %v", err)
	}
	if len(doc.Operations) != 1 {
		return Operation{}, fmt.Errorf("graphql document must contain one operation, found %d", len(doc.Operations))
	}
	def := doc.Operations[0]
	if def.Name == "" {
		return Operation{}, fmt.Errorf("graphql operation must be named")
	}
	return Operation{Name: def.Name, Kind: def.Operation, Document: document}, nil
}

const productSummaryFragment = `
fragment ProductSummary on Product {
  id
  title
  handle
  vendor
  productType
  tags
  templateSuffix
}`

const productFieldsFragment = `
fragment ProductFields on Product {
  ...ProductSummary
  variants(first: $variants) {
    nodes {
      id
      title
      sku
      price
      inventoryQuantity
      selectedOptions { name value }
      metafields(first: $metafields) {
        nodes { namespace key value type }
        pageInfo { hasNextPage }
      }
    }
    pageInfo { hasNextPage }
  }
}` + productSummaryFragment

var (
	opMetafieldDefinitions = mustOperation(`
query MetafieldDefinitions($first: Int!, $after: String) {
  metafieldDefinitions(first: $first, after: $after, ownerType: PRODUCTVARIANT) {
    nodes {
      namespace
      key
      name
      type { name }
    }
    pageInfo { hasNextPage endCursor }
  }
}`)

	opProductByID = mustOperation(`
query ProductByID($id: ID!, $variants: Int!, $metafields: Int!) {
  product(id: $id) { ...ProductFields }
}` + productFieldsFragment)

	opProducts = mustOperation(`
query Products($first: Int!, $after: String, $query: String, $variants: Int!, $metafields: Int!) {
  products(first: $first, after: $after, query: $query) {
    nodes { ...ProductFields }
    pageInfo { hasNextPage endCursor }
  }
}` + productFieldsFragment)

	opProductSummaries = mustOperation(`
query ProductSummaries($first: Int!, $after: String, $query: String) {
  products(first: $first, after: $after, query: $query) {
    nodes { ...ProductSummary }
    pageInfo { hasNextPage endCursor }
  }
}` + productSummaryFragment)

	opCollectionProductSummaries = mustOperation(`
query CollectionProductSummaries($handle: String!, $first: Int!, $after: String) {
  collectionByHandle(handle: $handle) {
    id
    products(first: $first, after: $after) {
      nodes { ...ProductSummary }
      pageInfo { hasNextPage endCursor }
    }
  }
}` + productSummaryFragment)

	opProductSummariesByID = mustOperation(`
query ProductSummariesByID($ids: [ID!]!) {
  nodes(ids: $ids) {
    ... on Product { ...ProductSummary }
  }
}` + productSummaryFragment)

	opVariantParents = mustOperation(`
query VariantParents($ids: [ID!]!) {
  nodes(ids: $ids) {
    ... on ProductVariant {
      id
      product { id }
    }
  }
}`)

	opVariantMetafieldsUpdate = mustOperation(`
mutation VariantMetafieldsUpdate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants) {
    productVariants { id }
    userErrors { field message }
  }
}`)

	opProductTemplateUpdate = mustOperation(`
mutation ProductTemplateUpdate($input: ProductInput!) {
  productUpdate(input: $input) {
    product { id templateSuffix }
    userErrors { field message }
  }
}`)
)
