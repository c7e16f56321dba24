package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/loop-index/forge/internal/domain"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Service implements domain.ToolService on top of a registry. Arguments
// are validated against each tool's parameter schema before execution, and
// failures of any kind are encoded in the returned result rather than
// propagated.
type Service struct {
	registry *Registry
	logger   zerolog.Logger

	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
}

// NewService wraps a registry.
func NewService(registry *Registry, logger zerolog.Logger) *Service {
	return &Service{
		registry: registry,
		logger:   logger,
		schemas:  make(map[string]*jsonschema.Schema),
	}
}

// Call validates and executes one tool call. The result is never an error
// value; execution failures set IsError so the model can observe them.
func (s *Service) Call(ctx context.Context, call domain.ToolCallFull) domain.ToolResult {
	result := domain.ToolResultFromCall(call)

	tool, ok := s.registry.Get(call.Name)
	if !ok {
		return result.WithError(fmt.Sprintf("unknown tool: %s", call.Name))
	}

	if err := s.validate(tool, call.Arguments); err != nil {
		s.logger.Warn().Err(err).Str("tool", call.Name).Msg("tool arguments rejected")
		return result.WithError(fmt.Sprintf("invalid arguments: %v", err))
	}

	s.logger.Info().
		Str("tool", call.Name).
		Interface("args", call.Arguments).
		Msg("executing tool")

	output, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		s.logger.Warn().Err(err).Str("tool", call.Name).Msg("tool execution failed")
		return result.WithError(err.Error())
	}
	return result.WithContent(output)
}

// List returns the definitions of every registered tool.
func (s *Service) List() []domain.ToolDefinition {
	tools := s.registry.List()
	defs := make([]domain.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, domain.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}
	return defs
}

// UsagePrompt concatenates every tool's usage prompt for providers without
// structured tool support.
func (s *Service) UsagePrompt() string {
	var sb strings.Builder
	for _, def := range s.List() {
		sb.WriteString(def.UsagePrompt())
	}
	return sb.String()
}

// validate checks arguments against the tool's parameter schema. Schemas
// compile lazily and are cached per tool name.
func (s *Service) validate(tool Tool, args map[string]any) error {
	schema, err := s.schemaFor(tool)
	if err != nil {
		return err
	}
	if args == nil {
		args = map[string]any{}
	}
	// Round-trip so argument values are plain JSON types for the validator.
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	return schema.Validate(decoded)
}

func (s *Service) schemaFor(tool Tool) (*jsonschema.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := tool.Name()
	if schema, ok := s.schemas[name]; ok {
		return schema, nil
	}

	data, err := json.Marshal(tool.Parameters())
	if err != nil {
		return nil, fmt.Errorf("invalid parameter schema for %s: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	resource := name + ".schema.json"
	if err := compiler.AddResource(resource, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("invalid parameter schema for %s: %w", name, err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("invalid parameter schema for %s: %w", name, err)
	}

	s.schemas[name] = schema
	return schema, nil
}
