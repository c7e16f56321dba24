package domain

import "fmt"

// ConversationNotFoundError reports an unknown conversation id. Fatal for
// the turn that observed it.
type ConversationNotFoundError struct {
	ID ConversationID
}

func (e *ConversationNotFoundError) Error() string {
	return fmt.Sprintf("conversation %q not found", string(e.ID))
}

// AgentNotFoundError reports a failed workflow lookup.
type AgentNotFoundError struct {
	ID AgentID
}

func (e *AgentNotFoundError) Error() string {
	return fmt.Sprintf("agent %q not found in workflow", string(e.ID))
}

// ToolCallParseError reports a failure to reassemble partial tool calls or
// to parse XML-embedded ones. Fatal for the turn.
type ToolCallParseError struct {
	Reason string
	Err    error
}

func (e *ToolCallParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tool call parse error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("tool call parse error: %s", e.Reason)
}

func (e *ToolCallParseError) Unwrap() error {
	return e.Err
}

// ProviderError reports an upstream LLM failure. Fatal for the turn.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// TransformError reports a failed context transform. Fatal for the turn.
type TransformError struct {
	Kind TransformKind
	Err  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("%s transform failed: %v", e.Kind, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}
