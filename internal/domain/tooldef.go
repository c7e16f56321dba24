package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ToolDefinition describes a tool: its name, what it does, and the JSON
// schema of its arguments.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// UsagePrompt renders the definition for inclusion in a system prompt, for
// providers without structured tool support.
func (d ToolDefinition) UsagePrompt() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("- **%s**: %s\n", d.Name, d.Description))

	props, ok := d.Parameters["properties"].(map[string]any)
	if !ok {
		return sb.String()
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if propMap, ok := props[name].(map[string]any); ok {
			sb.WriteString(fmt.Sprintf("  - `%s`: %v\n", name, propMap["description"]))
		}
	}
	return sb.String()
}
