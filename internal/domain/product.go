package domain

import (
	"sort"
	"strings"
)

// Product is a snapshot of a catalog product as returned by the Admin API.
type Product struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Handle         string    `json:"handle"`
	Vendor         string    `json:"vendor,omitempty"`
	ProductType    string    `json:"productType,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	TemplateSuffix string    `json:"templateSuffix,omitempty"`
	Variants       []Variant `json:"variants"`
	// VariantsTruncated is set when the product has more variants than
	// were fetched.
	VariantsTruncated bool `json:"variantsTruncated,omitempty"`
}

// Variant is a sellable variant of a product. The ID and ProductID never
// change for the lifetime of the variant.
type Variant struct {
	ID                string                  `json:"id"`
	ProductID         string                  `json:"productId"`
	Title             string                  `json:"title"`
	SKU               string                  `json:"sku,omitempty"`
	Price             string                  `json:"price"`
	InventoryQuantity int                     `json:"inventoryQuantity"`
	SelectedOptions   []SelectedOption        `json:"selectedOptions,omitempty"`
	Metafields        map[MetafieldKey]string `json:"-"`
	// MetafieldsTruncated is set when the variant has more metafields than
	// were fetched.
	MetafieldsTruncated bool `json:"metafieldsTruncated,omitempty"`
}

// SelectedOption is one option value of a variant, e.g. Size=M.
type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OptionValue returns the value of the n-th selected option (zero based) or
// an empty string.
func (v Variant) OptionValue(n int) string {
	if n < 0 || n >= len(v.SelectedOptions) {
		return ""
	}
	return v.SelectedOptions[n].Value
}

// MetafieldKey identifies a metafield within one owner.
type MetafieldKey struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
}

func (k MetafieldKey) String() string {
	return k.Namespace + "." + k.Key
}

// Valid reports whether both parts are non-empty.
func (k MetafieldKey) Valid() bool {
	return strings.TrimSpace(k.Namespace) != "" && strings.TrimSpace(k.Key) != ""
}

// MetafieldDefinition declares a metafield expected across the variant population.
type MetafieldDefinition struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Name      string `json:"name,omitempty"`
	Type      string `json:"type"`
}

// MetafieldKey returns the definition's key pair.
func (d MetafieldDefinition) MetafieldKey() MetafieldKey {
	return MetafieldKey{Namespace: d.Namespace, Key: d.Key}
}

// NamespacePolicy selects which metafield namespaces become export columns.
// An empty allow-list means every namespace.
type NamespacePolicy struct {
	Namespaces []string
}

// AllNamespaces is the policy that keeps every namespace.
var AllNamespaces = NamespacePolicy{}

// DefaultNamespaces is the allow-list used when none is given: the
// merchant-defined namespace, without app-owned ones.
var DefaultNamespaces = []string{"custom"}

// ResolveNamespacePolicy picks the export policy from the command line. all
// wins; an explicit allow-list replaces DefaultNamespaces.
func ResolveNamespacePolicy(namespaces []string, all bool) NamespacePolicy {
	if all {
		return AllNamespaces
	}
	cleaned := make([]string, 0, len(namespaces))
	for _, ns := range namespaces {
		if ns = strings.TrimSpace(ns); ns != "" {
			cleaned = append(cleaned, ns)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultNamespaces...)
	}
	return NamespacePolicy{Namespaces: cleaned}
}

// Allows reports whether namespace passes the policy.
func (p NamespacePolicy) Allows(namespace string) bool {
	if len(p.Namespaces) == 0 {
		return true
	}
	for _, allowed := range p.Namespaces {
		if strings.EqualFold(strings.TrimSpace(allowed), namespace) {
			return true
		}
	}
	return false
}

// FilterDefinitions keeps definitions allowed by the policy, preserving order
// and dropping duplicates.
func (p NamespacePolicy) FilterDefinitions(defs []MetafieldDefinition) []MetafieldDefinition {
	seen := make(map[MetafieldKey]struct{}, len(defs))
	out := make([]MetafieldDefinition, 0, len(defs))
	for _, def := range defs {
		key := def.MetafieldKey()
		if !key.Valid() || !p.Allows(def.Namespace) {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, def)
	}
	return out
}

// SortedMetafieldKeys returns the keys of m ordered by namespace then key.
func SortedMetafieldKeys(m map[MetafieldKey]string) []MetafieldKey {
	keys := make([]MetafieldKey, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Namespace != keys[j].Namespace {
			return keys[i].Namespace < keys[j].Namespace
		}
		return keys[i].Key < keys[j].Key
	})
	return keys
}

// MetafieldInput is one metafield write with its declared type.
type MetafieldInput struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}
