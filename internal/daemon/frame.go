package daemon

import "github.com/loop-index/forge/internal/domain"

// ChatRequest is one inbound WebSocket message.
type ChatRequest struct {
	Message string `json:"message"`
}

// Frame is one outbound WebSocket message. Type selects which field is
// populated.
type Frame struct {
	Type       string               `json:"type"`
	Agent      string               `json:"agent,omitempty"`
	Text       string               `json:"text,omitempty"`
	Usage      *domain.Usage        `json:"usage,omitempty"`
	ToolCall   *domain.ToolCallFull `json:"tool_call,omitempty"`
	ToolResult *domain.ToolResult   `json:"tool_result,omitempty"`
	Event      *domain.Event        `json:"event,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// FrameFromMessage converts an orchestrator progress message to its wire
// form.
func FrameFromMessage(msg domain.AgentMessage) Frame {
	frame := Frame{
		Type:  msg.Message.Type.String(),
		Agent: string(msg.AgentID),
	}
	switch msg.Message.Type {
	case domain.ResponseText:
		frame.Text = msg.Message.Text
	case domain.ResponseUsage:
		frame.Usage = msg.Message.Usage
	case domain.ResponseToolCallStart:
		frame.ToolCall = msg.Message.ToolCall
	case domain.ResponseToolCallEnd:
		frame.ToolResult = msg.Message.ToolResult
	case domain.ResponseCustom:
		frame.Event = msg.Message.Event
	}
	return frame
}
