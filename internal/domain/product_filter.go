package domain

import (
	"strings"
)

// ProductFilter narrows a product listing. Non-empty criteria are combined
// with AND. IDs bypass search entirely.
type ProductFilter struct {
	Tag              string
	Vendor           string
	ProductType      string
	CollectionHandle string
	Search           string
	IDs              []string
}

// IsEmpty reports whether no criterion is set.
func (f ProductFilter) IsEmpty() bool {
	return strings.TrimSpace(f.Tag) == "" &&
		strings.TrimSpace(f.Vendor) == "" &&
		strings.TrimSpace(f.ProductType) == "" &&
		strings.TrimSpace(f.CollectionHandle) == "" &&
		strings.TrimSpace(f.Search) == "" &&
		len(f.IDs) == 0
}

// SearchQuery renders the Admin API product search syntax for the field
// criteria. Collection and ID criteria are not part of the query string.
func (f ProductFilter) SearchQuery() string {
	var parts []string
	if tag := strings.TrimSpace(f.Tag); tag != "" {
		parts = append(parts, "tag:"+quoteSearchValue(tag))
	}
	if vendor := strings.TrimSpace(f.Vendor); vendor != "" {
		parts = append(parts, "vendor:"+quoteSearchValue(vendor))
	}
	if productType := strings.TrimSpace(f.ProductType); productType != "" {
		parts = append(parts, "product_type:"+quoteSearchValue(productType))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		if len(parts) > 0 {
			search = "(" + search + ")"
		}
		parts = append(parts, search)
	}
	return strings.Join(parts, " AND ")
}

func quoteSearchValue(value string) string {
	if !strings.ContainsAny(value, " :\"'()") {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", "\\'") + "'"
}

// Matches reports whether p satisfies the tag/vendor/type criteria locally.
// It is used on collection listings, which the API cannot filter server side.
func (f ProductFilter) Matches(p Product) bool {
	if tag := strings.TrimSpace(f.Tag); tag != "" {
		found := false
		for _, t := range p.Tags {
			if strings.EqualFold(strings.TrimSpace(t), tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if vendor := strings.TrimSpace(f.Vendor); vendor != "" && !strings.EqualFold(p.Vendor, vendor) {
		return false
	}
	if productType := strings.TrimSpace(f.ProductType); productType != "" && !strings.EqualFold(p.ProductType, productType) {
		return false
	}
	return true
}
