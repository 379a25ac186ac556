package domain

import (
	"sort"
	"strconv"
	"strings"
)

// Fixed export columns. ColumnProductID and ColumnVariantID are the lookup
// keys the import trusts without re-validation.
const (
	ColumnProductID         = "product_id"
	ColumnProductTitle      = "product_title"
	ColumnProductHandle     = "product_handle"
	ColumnVariantID         = "variant_id"
	ColumnVariantTitle      = "variant_title"
	ColumnSKU               = "sku"
	ColumnPrice             = "price"
	ColumnInventoryQuantity = "inventory_quantity"
	ColumnOption1           = "option1"
	ColumnOption2           = "option2"
	ColumnOption3           = "option3"

	// MetafieldColumnPrefix marks a column as a metafield entry:
	// attribute_{namespace}_{key}.
	MetafieldColumnPrefix = "attribute_"
)

// BaseColumns lists the fixed columns in export order.
var BaseColumns = []string{
	ColumnProductID,
	ColumnProductTitle,
	ColumnProductHandle,
	ColumnVariantID,
	ColumnVariantTitle,
	ColumnSKU,
	ColumnPrice,
	ColumnInventoryQuantity,
	ColumnOption1,
	ColumnOption2,
	ColumnOption3,
}

// Row is the flattened projection of one variant: column name -> value.
// An absent metafield is an empty string, never a missing column.
type Row map[string]string

// Get returns the trimmed value of column.
func (r Row) Get(column string) string {
	return strings.TrimSpace(r[column])
}

// MetafieldValue is one metafield entry extracted from a row.
type MetafieldValue struct {
	MetafieldKey
	Value string `json:"value"`
}

// MetafieldColumn builds the column name for a metafield key.
func MetafieldColumn(key MetafieldKey) string {
	return MetafieldColumnPrefix + key.Namespace + "_" + key.Key
}

// ParseMetafieldColumn reverses MetafieldColumn. Namespaces themselves may
// contain underscores, so knownNamespaces is consulted first (longest match
// wins); otherwise the namespace ends at the first underscore.
func ParseMetafieldColumn(column string, knownNamespaces []string) (MetafieldKey, bool) {
	column = strings.TrimSpace(column)
	if !strings.HasPrefix(column, MetafieldColumnPrefix) {
		return MetafieldKey{}, false
	}
	rest := strings.TrimPrefix(column, MetafieldColumnPrefix)

	best := ""
	for _, ns := range knownNamespaces {
		if ns == "" || len(ns) <= len(best) {
			continue
		}
		if strings.HasPrefix(rest, ns+"_") && len(rest) > len(ns)+1 {
			best = ns
		}
	}
	if best != "" {
		return MetafieldKey{Namespace: best, Key: rest[len(best)+1:]}, true
	}

	ns, key, found := strings.Cut(rest, "_")
	if !found || ns == "" || key == "" {
		return MetafieldKey{}, false
	}
	return MetafieldKey{Namespace: ns, Key: key}, true
}

// IsMetafieldColumn reports whether column follows the metafield naming convention.
func IsMetafieldColumn(column string) bool {
	return strings.HasPrefix(strings.TrimSpace(column), MetafieldColumnPrefix)
}

// MetafieldValues extracts the populated metafield entries of the row, ordered
// by column name. Blank cells are not entries.
func (r Row) MetafieldValues(knownNamespaces []string) []MetafieldValue {
	columns := make([]string, 0, len(r))
	for column := range r {
		if IsMetafieldColumn(column) {
			columns = append(columns, column)
		}
	}
	sort.Strings(columns)

	values := make([]MetafieldValue, 0, len(columns))
	for _, column := range columns {
		raw := r[column]
		if strings.TrimSpace(raw) == "" {
			continue
		}
		key, ok := ParseMetafieldColumn(column, knownNamespaces)
		if !ok {
			continue
		}
		values = append(values, MetafieldValue{MetafieldKey: key, Value: raw})
	}
	return values
}

// ExportColumns returns the full ordered column set for the given metafield keys.
func ExportColumns(metafields []MetafieldKey) []string {
	columns := make([]string, 0, len(BaseColumns)+len(metafields))
	columns = append(columns, BaseColumns...)
	for _, key := range metafields {
		columns = append(columns, MetafieldColumn(key))
	}
	return columns
}

// FlattenVariant projects a variant and its product into a row that carries
// every column in metafields, padding absent values with "".
func FlattenVariant(product Product, variant Variant, metafields []MetafieldKey) Row {
	row := Row{
		ColumnProductID:         product.ID,
		ColumnProductTitle:      product.Title,
		ColumnProductHandle:     product.Handle,
		ColumnVariantID:         variant.ID,
		ColumnVariantTitle:      variant.Title,
		ColumnSKU:               variant.SKU,
		ColumnPrice:             variant.Price,
		ColumnInventoryQuantity: strconv.Itoa(variant.InventoryQuantity),
		ColumnOption1:           variant.OptionValue(0),
		ColumnOption2:           variant.OptionValue(1),
		ColumnOption3:           variant.OptionValue(2),
	}
	for _, key := range metafields {
		row[MetafieldColumn(key)] = variant.Metafields[key]
	}
	return row
}

// Values returns the row's cells in column order.
func (r Row) Values(columns []string) []string {
	values := make([]string, len(columns))
	for i, column := range columns {
		values[i] = r[column]
	}
	return values
}
