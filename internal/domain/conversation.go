package domain

import "github.com/google/uuid"

// ConversationID identifies a conversation.
type ConversationID string

// NewConversationID mints a conversation id.
func NewConversationID() ConversationID {
	return ConversationID(uuid.NewString())
}

// Conversation is the durable state of one session: its workflow, per-agent
// contexts and turn counters, and the append-only event log.
type Conversation struct {
	ID        ConversationID        `json:"id"`
	Workflow  Workflow              `json:"workflow"`
	Contexts  map[AgentID]Context   `json:"contexts"`
	TurnCount map[AgentID]int       `json:"turn_count"`
	Events    []Event               `json:"events"`
}

// NewConversation creates a conversation bound to a workflow.
func NewConversation(workflow Workflow) Conversation {
	return Conversation{
		ID:        NewConversationID(),
		Workflow:  workflow,
		Contexts:  make(map[AgentID]Context),
		TurnCount: make(map[AgentID]int),
	}
}

// Context returns the stored context for an agent, if any.
func (c Conversation) Context(id AgentID) (Context, bool) {
	ctx, ok := c.Contexts[id]
	return ctx, ok
}

// RFindEvent returns the newest event with the given name, or nil.
func (c Conversation) RFindEvent(name string) *Event {
	for i := len(c.Events) - 1; i >= 0; i-- {
		if c.Events[i].Name == name {
			event := c.Events[i]
			return &event
		}
	}
	return nil
}

// RFindEventByType returns the newest event of the given type, or nil.
func (c Conversation) RFindEventByType(t EventType) *Event {
	for i := len(c.Events) - 1; i >= 0; i-- {
		if c.Events[i].Type() == t {
			event := c.Events[i]
			return &event
		}
	}
	return nil
}

// Clone returns a defensive copy. Contexts are deep-copied so callers can
// mutate without aliasing stored state.
func (c Conversation) Clone() Conversation {
	clone := c
	clone.Contexts = make(map[AgentID]Context, len(c.Contexts))
	for id, ctx := range c.Contexts {
		clone.Contexts[id] = ctx.Clone()
	}
	clone.TurnCount = make(map[AgentID]int, len(c.TurnCount))
	for id, count := range c.TurnCount {
		clone.TurnCount[id] = count
	}
	clone.Events = append([]Event{}, c.Events...)
	return clone
}
