package domain

// ChatRequest is one user turn addressed to a conversation.
type ChatRequest struct {
	ConversationID ConversationID `json:"conversation_id"`
	Content        string         `json:"content"`
}

// Usage is a provider token-usage report.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionMessage is one record of a provider stream. It may carry a
// text chunk, tool-call parts (full or partial), and a usage report, in any
// combination.
type ChatCompletionMessage struct {
	Content   string
	ToolCalls []ToolCallPart
	Usage     *Usage
}

// CompletionChunk is one element of a provider stream channel. Exactly one
// of Message or Err is meaningful.
type CompletionChunk struct {
	Message ChatCompletionMessage
	Err     error
}

// Model describes a provider model.
type Model struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Parameters reports per-model capabilities.
type Parameters struct {
	ToolSupported bool `json:"tool_supported"`
}
