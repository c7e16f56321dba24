package domain

import "strings"

// Context is the ordered transcript a model sees on one call, plus the tool
// schemas attached for providers with structured tool support. The system
// message, if any, is always at position 0.
type Context struct {
	Messages []ContextMessage `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
}

// SetFirstSystemMessage inserts or replaces the leading system message.
func (c Context) SetFirstSystemMessage(content string) Context {
	msg := SystemMessage(content)
	if len(c.Messages) > 0 && c.Messages[0].Role == RoleSystem {
		messages := append([]ContextMessage{}, c.Messages...)
		messages[0] = msg
		c.Messages = messages
		return c
	}
	c.Messages = append([]ContextMessage{msg}, c.Messages...)
	return c
}

// AddMessage appends a message.
func (c Context) AddMessage(msg ContextMessage) Context {
	c.Messages = append(c.Messages, msg)
	return c
}

// AddToolResults appends a batch of tool-result messages.
func (c Context) AddToolResults(results []ToolResult) Context {
	for _, result := range results {
		c.Messages = append(c.Messages, ToolMessage(result))
	}
	return c
}

// ExtendTools declares available tool schemas.
func (c Context) ExtendTools(tools []ToolDefinition) Context {
	c.Tools = append(c.Tools, tools...)
	return c
}

// ToText renders a flat textual projection of the transcript, used by
// pass-through transforms and summarization spans.
func (c Context) ToText() string {
	var sb strings.Builder
	for _, msg := range c.Messages {
		sb.WriteString(string(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		for _, call := range msg.ToolCalls {
			sb.WriteString("\n[tool_call ")
			sb.WriteString(call.Name)
			sb.WriteString("]")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Clone returns a deep copy so callers can mutate without aliasing the
// stored conversation state.
func (c Context) Clone() Context {
	clone := Context{}
	if c.Messages != nil {
		clone.Messages = make([]ContextMessage, len(c.Messages))
		copy(clone.Messages, c.Messages)
	}
	if c.Tools != nil {
		clone.Tools = make([]ToolDefinition, len(c.Tools))
		copy(clone.Tools, c.Tools)
	}
	return clone
}
