package domain

import (
	"strings"
	"unicode"
)

const gidPrefix = "gid://shopify/"

// GID normalizes an identifier to a global ID of the given resource type.
// Bare numeric IDs are expanded; anything already prefixed is returned as is.
func GID(resource, id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, gidPrefix) {
		return id
	}
	for _, r := range id {
		if !unicode.IsDigit(r) {
			return id
		}
	}
	return gidPrefix + resource + "/" + id
}

// ProductGID normalizes a product identifier.
func ProductGID(id string) string { return GID("Product", id) }

// VariantGID normalizes a variant identifier.
func VariantGID(id string) string { return GID("ProductVariant", id) }

// ValidVariantID reports whether id is a bare numeric ID or a
// gid://shopify/ProductVariant/<n> global ID.
func ValidVariantID(id string) bool {
	id = strings.TrimPrefix(strings.TrimSpace(id), gidPrefix+"ProductVariant/")
	if id == "" {
		return false
	}
	for _, r := range id {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
