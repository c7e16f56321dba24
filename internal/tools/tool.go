// Package tools provides the capability set an agent may invoke: a
// registry of tools and the service that executes calls against it.
package tools

import "context"

// Tool is a single capability: a name, a description, a JSON schema for
// its arguments, and an execution entry point.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (string, error)
}
