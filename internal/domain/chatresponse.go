package domain

// ChatResponseType discriminates the progress messages an orchestrator
// emits while an agent's turn runs.
type ChatResponseType int

const (
	ResponseText ChatResponseType = iota
	ResponseUsage
	ResponseToolCallStart
	ResponseToolCallEnd
	ResponseCustom
)

func (t ChatResponseType) String() string {
	switch t {
	case ResponseText:
		return "text"
	case ResponseUsage:
		return "usage"
	case ResponseToolCallStart:
		return "tool_call_start"
	case ResponseToolCallEnd:
		return "tool_call_end"
	case ResponseCustom:
		return "event"
	default:
		return "unknown"
	}
}

// ChatResponse is one progress message. The populated field depends on
// Type.
type ChatResponse struct {
	Type       ChatResponseType
	Text       string
	Usage      *Usage
	ToolCall   *ToolCallFull
	ToolResult *ToolResult
	Event      *Event
}

// TextResponse builds a text chunk message.
func TextResponse(text string) ChatResponse {
	return ChatResponse{Type: ResponseText, Text: text}
}

// UsageResponse builds a usage report message.
func UsageResponse(usage Usage) ChatResponse {
	return ChatResponse{Type: ResponseUsage, Usage: &usage}
}

// ToolCallStartResponse announces a tool call about to execute.
func ToolCallStartResponse(call ToolCallFull) ChatResponse {
	return ChatResponse{Type: ResponseToolCallStart, ToolCall: &call}
}

// ToolCallEndResponse carries an executed tool call's result.
func ToolCallEndResponse(result ToolResult) ChatResponse {
	return ChatResponse{Type: ResponseToolCallEnd, ToolResult: &result}
}

// CustomResponse carries an agent-emitted event.
func CustomResponse(event Event) ChatResponse {
	return ChatResponse{Type: ResponseCustom, Event: &event}
}

// AgentMessage wraps a progress message with the emitting agent's id.
type AgentMessage struct {
	AgentID AgentID      `json:"agent"`
	Message ChatResponse `json:"message"`
}
