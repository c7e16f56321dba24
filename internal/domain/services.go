package domain

import "context"

// ProviderService is a streaming chat interface to a remote LLM, plus model
// parameter introspection. The returned channel is closed when the stream
// terminates; a chunk with Err set ends the stream.
type ProviderService interface {
	Chat(ctx context.Context, model string, chat Context) (<-chan CompletionChunk, error)
	Models(ctx context.Context) ([]Model, error)
	Parameters(ctx context.Context, model string) (Parameters, error)
}

// ToolService executes tool calls. Call never fails: execution errors are
// encoded in the returned result's IsError flag.
type ToolService interface {
	Call(ctx context.Context, call ToolCallFull) ToolResult
	List() []ToolDefinition
	UsagePrompt() string
}

// ConversationService owns durable conversation state. Every operation is
// atomic with respect to other operations on the same conversation id, and
// the orchestrator observes its own writes within a turn. Get returns nil
// without error for an unknown id.
type ConversationService interface {
	Get(ctx context.Context, id ConversationID) (*Conversation, error)
	Create(ctx context.Context, workflow Workflow) (ConversationID, error)
	IncTurn(ctx context.Context, id ConversationID, agent AgentID) error
	SetContext(ctx context.Context, id ConversationID, agent AgentID, chat Context) error
	InsertEvent(ctx context.Context, id ConversationID, event Event) error
}

// TemplateService renders prompt templates; template and value are opaque
// to the orchestrator.
type TemplateService interface {
	Render(template string, value any) (string, error)
}

// Suggestion is one entry of the suggestion store.
type Suggestion struct {
	Suggestion string `json:"suggestion"`
}

// SuggestionService backs the optional user-prompt enrichment.
type SuggestionService interface {
	Search(ctx context.Context, query string) ([]Suggestion, error)
	Insert(ctx context.Context, suggestion Suggestion) error
}

// MessageSink receives progress messages in emission order. A send error is
// demoted to a warning by the orchestrator; it is not fatal for the turn.
type MessageSink interface {
	Send(ctx context.Context, msg AgentMessage) error
}

// TokenCounter reports token counts for summarization budgets. The
// orchestrator treats counts as inputs; tokenization itself lives outside
// the core.
type TokenCounter interface {
	Count(text string) int
}

// App is the record of services an orchestrator runs against.
type App interface {
	ProviderService() ProviderService
	ToolService() ToolService
	ConversationService() ConversationService
	TemplateService() TemplateService
	SuggestionService() SuggestionService
}
