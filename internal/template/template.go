// Package template renders prompt templates by placeholder substitution.
// A template references fields of its value as {{dotted.path}}; the value
// is flattened through its JSON form, so any struct with json tags or any
// map works. Unknown placeholders are left in place.
package template

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Service implements domain.TemplateService.
type Service struct{}

// NewService creates a template service.
func NewService() *Service {
	return &Service{}
}

// Render substitutes {{path}} placeholders in the template with values
// drawn from value's JSON projection. Scalar leaves render verbatim, string
// slices join with newlines, and other composites render as JSON.
func (s *Service) Render(template string, value any) (string, error) {
	flat, err := flatten(value)
	if err != nil {
		return "", fmt.Errorf("failed to flatten template value: %w", err)
	}
	out := template
	for path, rendered := range flat {
		out = strings.ReplaceAll(out, "{{"+path+"}}", rendered)
	}
	return out, nil
}

func flatten(value any) (map[string]string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}

	flat := make(map[string]string)
	walk("", decoded, flat)
	return flat, nil
}

func walk(prefix string, value any, flat map[string]string) {
	switch v := value.(type) {
	case map[string]any:
		for key, child := range v {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			walk(path, child, flat)
		}
		if prefix != "" {
			flat[prefix] = renderComposite(v)
		}
	case []any:
		if prefix != "" {
			flat[prefix] = renderList(v)
		}
	case nil:
		if prefix != "" {
			flat[prefix] = ""
		}
	default:
		if prefix != "" {
			flat[prefix] = renderScalar(v)
		}
	}
}

func renderScalar(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return fmt.Sprintf("%t", v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// renderList joins string lists line by line; mixed lists fall back to JSON.
func renderList(values []any) string {
	parts := make([]string, 0, len(values))
	for _, value := range values {
		s, ok := value.(string)
		if !ok {
			data, err := json.Marshal(values)
			if err != nil {
				return ""
			}
			return string(data)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n")
}

func renderComposite(value map[string]any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(data)
}
