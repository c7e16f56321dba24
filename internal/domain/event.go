// Package domain defines the core data model of the orchestrator: events,
// agents, workflows, contexts, conversations, tool calls and results, and
// the service contracts the orchestrator runs against.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Well-known event names anchoring the dispatch protocol.
const (
	EventNameTaskInit   = "user_task_init"
	EventNameTaskUpdate = "user_task_update"
)

// DispatchToolName is the reserved tool name whose invocations are
// reinterpreted as events instead of being executed by the tool service.
const DispatchToolName = "dispatch_event"

// EventType classifies an event by its name.
type EventType int

const (
	EventUserTaskInit EventType = iota
	EventUserTaskUpdate
	EventCustom
)

// Event is a named, value-bearing record; the unit of inter-agent dispatch.
// Events are immutable once minted and equal by ID.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent mints an event with a unique id and a wall-clock timestamp.
func NewEvent(name string, value any) Event {
	return Event{
		ID:        uuid.NewString(),
		Name:      name,
		Value:     value,
		Timestamp: time.Now(),
	}
}

// TaskInitEvent builds the event carrying the user's initial request.
func TaskInitEvent(content string) Event {
	return NewEvent(EventNameTaskInit, content)
}

// TaskUpdateEvent builds the event carrying a subsequent user turn.
func TaskUpdateEvent(content string) Event {
	return NewEvent(EventNameTaskUpdate, content)
}

// Type classifies the event by name.
func (e Event) Type() EventType {
	return EventTypeOf(e.Name)
}

// EventTypeOf classifies an event name.
func EventTypeOf(name string) EventType {
	switch name {
	case EventNameTaskInit:
		return EventUserTaskInit
	case EventNameTaskUpdate:
		return EventUserTaskUpdate
	default:
		return EventCustom
	}
}

// ValueString renders the event value as text. String values pass through
// unchanged, everything else is JSON-encoded.
func (e Event) ValueString() string {
	if s, ok := e.Value.(string); ok {
		return s
	}
	data, err := json.Marshal(e.Value)
	if err != nil {
		return ""
	}
	return string(data)
}

// ParseEvent reinterprets a tool call to the reserved dispatch tool as an
// event. The call's arguments supply the event name and value. All other
// tool calls return false.
func ParseEvent(call ToolCallFull) (Event, bool) {
	if call.Name != DispatchToolName {
		return Event{}, false
	}
	name, _ := call.Arguments["name"].(string)
	if name == "" {
		return Event{}, false
	}
	return NewEvent(name, call.Arguments["value"]), true
}

// DispatchToolDefinition describes the reserved dispatch tool. It is offered
// to every agent whose allow-list names it, so the model can emit events.
func DispatchToolDefinition() ToolDefinition {
	return ToolDefinition{
		Name: DispatchToolName,
		Description: "Dispatch a named event to the agents subscribed to it. " +
			"Use this to hand a sub-task to another agent instead of executing a tool.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "The event name to dispatch",
				},
				"value": map[string]any{
					"description": "The event payload",
				},
			},
			"required": []string{"name"},
		},
	}
}
