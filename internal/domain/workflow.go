package domain

// Workflow is a static declaration of cooperating agents, ordered as
// declared. It is immutable once loaded.
type Workflow struct {
	Agents []Agent `json:"agents" yaml:"agents"`
}

// Get looks up an agent by id.
func (w Workflow) Get(id AgentID) (Agent, error) {
	for _, agent := range w.Agents {
		if agent.ID == id {
			return agent, nil
		}
	}
	return Agent{}, &AgentNotFoundError{ID: id}
}

// Entries returns the agents subscribed to the named event, in declared
// order.
func (w Workflow) Entries(eventName string) []Agent {
	var agents []Agent
	for _, agent := range w.Agents {
		for _, name := range agent.Subscribe {
			if name == eventName {
				agents = append(agents, agent)
				break
			}
		}
	}
	return agents
}
