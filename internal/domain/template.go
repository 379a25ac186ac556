package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Template is a named product template from the theme's fixed set.
type Template struct {
	Name   string
	Suffix string
}

// templates maps the names accepted on the command line to template suffixes.
// "default" clears the suffix so the theme's product.json applies.
var templates = map[string]Template{
	"default":   {Name: "default", Suffix: ""},
	"alternate": {Name: "alternate", Suffix: "alternate"},
	"bundle":    {Name: "bundle", Suffix: "bundle"},
	"preorder":  {Name: "preorder", Suffix: "preorder"},
	"landing":   {Name: "landing", Suffix: "landing"},
}

// LookupTemplate resolves a template by name.
func LookupTemplate(name string) (Template, error) {
	t, ok := templates[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Template{}, fmt.Errorf("unknown template %q (valid: %s)", name, strings.Join(TemplateNames(), ", "))
	}
	return t, nil
}

// TemplateNames lists the accepted template names in sorted order.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
