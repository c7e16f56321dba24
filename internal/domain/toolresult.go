package domain

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// ToolResult is the outcome of one executed tool call. Failures are encoded
// with IsError rather than an error return so the model can observe them
// and retry.
type ToolResult struct {
	Name    string `json:"name"`
	CallID  string `json:"call_id,omitempty"`
	Content any    `json:"content"`
	IsError bool   `json:"is_error"`
}

// NewToolResult builds a successful result for the named tool.
func NewToolResult(name string) ToolResult {
	return ToolResult{Name: name}
}

// ToolResultFromCall builds an empty result bound to a call.
func ToolResultFromCall(call ToolCallFull) ToolResult {
	return ToolResult{Name: call.Name, CallID: call.CallID}
}

// WithContent returns a copy carrying the given content.
func (r ToolResult) WithContent(content any) ToolResult {
	r.Content = content
	return r
}

// WithError returns a copy carrying the given content flagged as an error.
func (r ToolResult) WithError(content any) ToolResult {
	r.Content = content
	r.IsError = true
	return r
}

// String renders the result to its XML boundary format:
// <tool_result><tool_name>...</tool_name><success|error>...</success|error></tool_result>
// The element body carries the JSON-encoded content verbatim, with no entity
// escaping, so embedded JSON strings survive a round trip through the reader.
func (r ToolResult) String() string {
	body, err := json.Marshal(r.Content)
	if err != nil {
		body = []byte("null")
	}
	tag := "success"
	if r.IsError {
		tag = "error"
	}
	return fmt.Sprintf("<tool_result><tool_name>%s</tool_name><%s>%s</%s></tool_result>",
		r.Name, tag, body, tag)
}

// ParseToolResult reads the XML boundary format back into a result. HTML
// entity escapes in the body are decoded before the JSON content is parsed.
func ParseToolResult(s string) (ToolResult, error) {
	inner, ok := between(s, "<tool_result>", "</tool_result>")
	if !ok {
		return ToolResult{}, fmt.Errorf("missing <tool_result> envelope")
	}
	name, ok := between(inner, "<tool_name>", "</tool_name>")
	if !ok {
		return ToolResult{}, fmt.Errorf("missing <tool_name> element")
	}

	result := ToolResult{Name: strings.TrimSpace(name)}

	body, ok := between(inner, "<success>", "</success>")
	if !ok {
		body, ok = between(inner, "<error>", "</error>")
		if !ok {
			return ToolResult{}, fmt.Errorf("missing <success> or <error> element")
		}
		result.IsError = true
	}

	decoded := html.UnescapeString(body)
	var content any
	if err := json.Unmarshal([]byte(decoded), &content); err != nil {
		return ToolResult{}, fmt.Errorf("invalid tool result content: %w", err)
	}
	result.Content = content
	return result, nil
}

// between extracts the text between the first open tag and the last close
// tag. The last close tag is used so JSON bodies containing the close
// sequence inside string values still parse.
func between(s, open, close string) (string, bool) {
	start := strings.Index(s, open)
	if start < 0 {
		return "", false
	}
	start += len(open)
	end := strings.LastIndex(s, close)
	if end < start {
		return "", false
	}
	return s[start:end], true
}
