package domain

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// ToolCallFull is a fully assembled tool invocation.
type ToolCallFull struct {
	CallID    string         `json:"call_id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolCallPartial is a streaming fragment of a tool invocation, keyed by
// index. Fragments of the same index are joined in stream order.
type ToolCallPartial struct {
	Index             int    `json:"index"`
	CallID            string `json:"call_id,omitempty"`
	Name              string `json:"name,omitempty"`
	ArgumentsFragment string `json:"arguments_fragment,omitempty"`
}

// ToolCallPart is one tool-call entry of a streamed completion message,
// either full or partial.
type ToolCallPart struct {
	Full    *ToolCallFull
	Partial *ToolCallPartial
}

// NewCallID mints an id for tool calls whose provider did not supply one.
func NewCallID() string {
	return "call-" + uuid.NewString()
}

// FullFromPartials joins partial fragments into complete tool calls.
// Fragments are grouped by index; each group's name and call id come from
// the first fragment that carried them, and argument fragments concatenate
// in stream order before being JSON-parsed. Groups are emitted in ascending
// index order.
func FullFromPartials(partials []ToolCallPartial) ([]ToolCallFull, error) {
	if len(partials) == 0 {
		return nil, nil
	}

	type group struct {
		name   string
		callID string
		args   string
	}

	groups := make(map[int]*group)
	var indices []int
	for _, part := range partials {
		g, ok := groups[part.Index]
		if !ok {
			g = &group{}
			groups[part.Index] = g
			indices = append(indices, part.Index)
		}
		if g.name == "" {
			g.name = part.Name
		}
		if g.callID == "" {
			g.callID = part.CallID
		}
		g.args += part.ArgumentsFragment
	}
	sort.Ints(indices)

	calls := make([]ToolCallFull, 0, len(indices))
	for _, index := range indices {
		g := groups[index]
		if g.name == "" {
			return nil, &ToolCallParseError{
				Reason: fmt.Sprintf("partial tool call at index %d carries no name", index),
			}
		}
		args := map[string]any{}
		if g.args != "" {
			if err := json.Unmarshal([]byte(g.args), &args); err != nil {
				return nil, &ToolCallParseError{
					Reason: fmt.Sprintf("invalid arguments for partial tool call %q", g.name),
					Err:    err,
				}
			}
		}
		callID := g.callID
		if callID == "" {
			callID = NewCallID()
		}
		calls = append(calls, ToolCallFull{CallID: callID, Name: g.name, Arguments: args})
	}
	return calls, nil
}

// AssembleToolCalls drains a finished provider stream into the complete,
// ordered set of tool calls: full calls first in stream order, then joined
// partials in ascending index order, then XML-embedded calls found in the
// concatenated assistant text in document order. Duplicate call ids within
// one assembly are rejected.
func AssembleToolCalls(messages []ChatCompletionMessage, content string, toolNames []string) ([]ToolCallFull, error) {
	var calls []ToolCallFull
	var partials []ToolCallPartial

	for _, msg := range messages {
		for _, part := range msg.ToolCalls {
			switch {
			case part.Full != nil:
				full := *part.Full
				if full.CallID == "" {
					full.CallID = NewCallID()
				}
				if full.Arguments == nil {
					full.Arguments = map[string]any{}
				}
				calls = append(calls, full)
			case part.Partial != nil:
				partials = append(partials, *part.Partial)
			}
		}
	}

	joined, err := FullFromPartials(partials)
	if err != nil {
		return nil, err
	}
	calls = append(calls, joined...)

	embedded, err := ToolCallsFromXML(content, toolNames)
	if err != nil {
		return nil, err
	}
	calls = append(calls, embedded...)

	seen := make(map[string]bool, len(calls))
	for _, call := range calls {
		if seen[call.CallID] {
			return nil, &ToolCallParseError{
				Reason: fmt.Sprintf("duplicate tool call id %q", call.CallID),
			}
		}
		seen[call.CallID] = true
	}

	return calls, nil
}
