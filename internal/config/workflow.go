package config

import (
	"fmt"
	"os"

	"github.com/loop-index/forge/internal/domain"
	"github.com/loop-index/forge/templates"
	"gopkg.in/yaml.v3"
)

// LoadWorkflow reads a workflow declaration from a YAML file and validates
// it.
func LoadWorkflow(path string) (domain.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("failed to read workflow file: %w", err)
	}

	var workflow domain.Workflow
	if err := yaml.Unmarshal(data, &workflow); err != nil {
		return domain.Workflow{}, fmt.Errorf("failed to parse workflow file: %w", err)
	}

	if err := ValidateWorkflow(workflow); err != nil {
		return domain.Workflow{}, err
	}
	return workflow, nil
}

// ValidateWorkflow checks the static invariants a workflow must satisfy:
// unique agent ids, transform references that resolve, and a cycle-free
// transform graph. Cycle-freedom is a loader precondition of the
// orchestrator's recursive dispatch.
func ValidateWorkflow(workflow domain.Workflow) error {
	ids := make(map[domain.AgentID]bool, len(workflow.Agents))
	for _, agent := range workflow.Agents {
		if agent.ID == "" {
			return fmt.Errorf("workflow contains an agent without an id")
		}
		if ids[agent.ID] {
			return fmt.Errorf("duplicate agent id %q", agent.ID)
		}
		ids[agent.ID] = true
		if agent.Model == "" {
			return fmt.Errorf("agent %q has no model", agent.ID)
		}
	}

	for _, agent := range workflow.Agents {
		for _, transform := range agent.Transforms {
			switch transform.Kind {
			case domain.TransformAssistant, domain.TransformUser, domain.TransformPassThrough:
			default:
				return fmt.Errorf("agent %q has a transform of unknown type %q", agent.ID, transform.Kind)
			}
			if !ids[transform.AgentID] {
				return fmt.Errorf("agent %q transform references unknown agent %q", agent.ID, transform.AgentID)
			}
			if transform.Kind == domain.TransformAssistant && transform.TokenLimit <= 0 {
				return fmt.Errorf("agent %q assistant transform needs a positive token_limit", agent.ID)
			}
		}
	}

	return checkTransformCycles(workflow)
}

// checkTransformCycles runs Kahn's algorithm over the transform-reference
// graph. A cycle would make transform execution recurse forever.
func checkTransformCycles(workflow domain.Workflow) error {
	inDegree := make(map[domain.AgentID]int, len(workflow.Agents))
	dependents := make(map[domain.AgentID][]domain.AgentID, len(workflow.Agents))

	for _, agent := range workflow.Agents {
		if _, ok := inDegree[agent.ID]; !ok {
			inDegree[agent.ID] = 0
		}
		for _, transform := range agent.Transforms {
			inDegree[transform.AgentID]++
			dependents[agent.ID] = append(dependents[agent.ID], transform.AgentID)
		}
	}

	var queue []domain.AgentID
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++

		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if visited != len(inDegree) {
		return fmt.Errorf("circular transform reference detected in workflow")
	}
	return nil
}

// DefaultWorkflow builds the built-in single-conversation workflow: a coder
// agent handling user turns, backed by an ephemeral summarizer that keeps
// long histories within budget.
func DefaultWorkflow(model string) (domain.Workflow, error) {
	systemPrompt, err := templates.System()
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("failed to load system template: %w", err)
	}
	userPrompt, err := templates.User()
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("failed to load user template: %w", err)
	}
	summarizerPrompt, err := templates.Summarizer()
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("failed to load summarizer template: %w", err)
	}

	workflow := domain.Workflow{
		Agents: []domain.Agent{
			{
				ID:           "coder",
				Model:        model,
				Suggestions:  true,
				Tools:        []string{"shell", "write", domain.DispatchToolName},
				Subscribe:    []string{domain.EventNameTaskInit, domain.EventNameTaskUpdate},
				SystemPrompt: systemPrompt,
				UserPrompt:   userPrompt,
				Transforms: []domain.Transform{
					{
						Kind:       domain.TransformAssistant,
						AgentID:    "summarizer",
						TokenLimit: 8000,
						Input:      "summarize_context",
						Output:     "context_summary",
					},
				},
			},
			{
				ID:           "summarizer",
				Model:        model,
				Ephemeral:    true,
				Tools:        []string{domain.DispatchToolName},
				Subscribe:    []string{"summarize_context"},
				SystemPrompt: summarizerPrompt,
				UserPrompt:   "{{event.value}}",
			},
		},
	}

	if err := ValidateWorkflow(workflow); err != nil {
		return domain.Workflow{}, err
	}
	return workflow, nil
}
