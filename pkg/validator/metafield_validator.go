package validator

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/shopsync/internal/domain"
)

// MetafieldValidator checks metafield values against their declared type
// before they are sent to the Admin API.
type MetafieldValidator struct{}

// NewMetafieldValidator creates a new metafield validator
func NewMetafieldValidator() *MetafieldValidator {
	return &MetafieldValidator{}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
}

// Messages flattens errors and warnings into display strings.
func (r ValidationResult) Messages() []string {
	messages := make([]string, 0, len(r.Errors)+len(r.Warnings))
	for _, e := range r.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	for _, w := range r.Warnings {
		messages = append(messages, fmt.Sprintf("warning %s: %s", w.Field, w.Message))
	}
	return messages
}

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ValidateInputs validates every input. Unknown types produce a warning
// only; the API remains the final authority.
func (mv *MetafieldValidator) ValidateInputs(inputs []domain.MetafieldInput) ValidationResult {
	result := ValidationResult{
		IsValid:  true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	for _, in := range inputs {
		field := in.Namespace + "." + in.Key
		if strings.TrimSpace(in.Namespace) == "" || strings.TrimSpace(in.Key) == "" {
			result.IsValid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: "namespace and key are required",
				Value:   in.Value,
			})
			continue
		}

		known, err := mv.validateValue(in.Type, in.Value)
		if !known {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("type %q is not checked locally", in.Type),
				Value:   in.Value,
			})
			continue
		}
		if err != nil {
			result.IsValid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: err.Error(),
				Value:   in.Value,
			})
		}
	}

	return result
}

// validateValue reports whether the type is known and, if so, whether the
// value conforms.
func (mv *MetafieldValidator) validateValue(metafieldType, value string) (bool, error) {
	metafieldType = strings.ToLower(strings.TrimSpace(metafieldType))

	if inner, ok := strings.CutPrefix(metafieldType, "list."); ok {
		return mv.validateList(inner, value)
	}
	if strings.HasSuffix(metafieldType, "_reference") {
		if !strings.HasPrefix(strings.TrimSpace(value), "gid://shopify/") {
			return true, fmt.Errorf("must be a global ID (gid://shopify/...)")
		}
		return true, nil
	}

	switch metafieldType {
	case "single_line_text_field":
		if strings.ContainsAny(value, "\r\n") {
			return true, fmt.Errorf("single line text must not contain line breaks")
		}
	case "multi_line_text_field":
		// any text
	case "boolean":
		if value != "true" && value != "false" {
			return true, fmt.Errorf("must be true or false, got %q", value)
		}
	case "number_integer":
		if _, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err != nil {
			return true, fmt.Errorf("must be an integer, got %q", value)
		}
	case "number_decimal":
		if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
			return true, fmt.Errorf("must be a decimal, got %q", value)
		}
	case "date":
		if _, err := time.Parse("2006-01-02", strings.TrimSpace(value)); err != nil {
			return true, fmt.Errorf("must be a date (YYYY-MM-DD), got %q", value)
		}
	case "date_time":
		if !isDateTime(value) {
			return true, fmt.Errorf("must be an ISO 8601 date time, got %q", value)
		}
	case "url":
		u, err := url.Parse(strings.TrimSpace(value))
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return true, fmt.Errorf("must be an http or https URL, got %q", value)
		}
	case "color":
		if !colorPattern.MatchString(strings.TrimSpace(value)) {
			return true, fmt.Errorf("must be a hex color (#RRGGBB), got %q", value)
		}
	case "json":
		if !json.Valid([]byte(value)) {
			return true, fmt.Errorf("must be valid JSON")
		}
	case "weight", "volume", "dimension", "rating", "money":
		var obj map[string]any
		if err := json.Unmarshal([]byte(value), &obj); err != nil {
			return true, fmt.Errorf("must be a JSON object for type %s", metafieldType)
		}
	default:
		return false, nil
	}
	return true, nil
}

func (mv *MetafieldValidator) validateList(inner, value string) (bool, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(value), &items); err != nil {
		return true, fmt.Errorf("list.%s must be a JSON array", inner)
	}
	for i, raw := range items {
		var item string
		if err := json.Unmarshal(raw, &item); err != nil {
			// numbers and objects are encoded as JSON values inside lists
			item = string(raw)
		}
		known, err := mv.validateValue(inner, item)
		if !known {
			return false, nil
		}
		if err != nil {
			return true, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return true, nil
}

func isDateTime(value string) bool {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}
