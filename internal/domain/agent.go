package domain

// AgentID identifies an agent within a workflow.
type AgentID string

// TransformKind discriminates the context transform variants.
type TransformKind string

const (
	// TransformAssistant summarizes oversized histories through another agent.
	TransformAssistant TransformKind = "assistant"
	// TransformUser augments the latest user message through another agent.
	TransformUser TransformKind = "user"
	// TransformPassThrough sends the context's text form to another agent
	// without modifying the caller's context.
	TransformPassThrough TransformKind = "pass_through"
)

// Transform is one step of an agent's pre-provider context pipeline.
type Transform struct {
	Kind       TransformKind `json:"kind" yaml:"type"`
	AgentID    AgentID       `json:"agent_id" yaml:"agent"`
	TokenLimit int           `json:"token_limit,omitempty" yaml:"token_limit"`
	Input      string        `json:"input,omitempty" yaml:"input"`
	Output     string        `json:"output,omitempty" yaml:"output"`
}

// Agent is a declaratively configured LLM worker. It is read-only at
// runtime.
type Agent struct {
	ID           AgentID     `json:"id" yaml:"id"`
	Model        string      `json:"model" yaml:"model"`
	Ephemeral    bool        `json:"ephemeral" yaml:"ephemeral"`
	Suggestions  bool        `json:"suggestions" yaml:"suggestions"`
	Tools        []string    `json:"tools" yaml:"tools"`
	Subscribe    []string    `json:"subscribe" yaml:"subscribe"`
	SystemPrompt string      `json:"system_prompt" yaml:"system_prompt"`
	UserPrompt   string      `json:"user_prompt" yaml:"user_prompt"`
	Transforms   []Transform `json:"transforms,omitempty" yaml:"transforms"`
}

// AllowsTool reports whether the agent may invoke the named tool.
func (a Agent) AllowsTool(name string) bool {
	for _, tool := range a.Tools {
		if tool == name {
			return true
		}
	}
	return false
}
