package adapters

import (
	"fmt"

	"github.com/forgecli/forge/registry"
)

// AgentRegistry is the subset of *registry.Registry the Agent adapter
// needs.
type AgentRegistry interface {
	GetAgent(name string) *registry.Agent
}

// AgentAdapter invokes plugin-registered coding-agent adapters.
type AgentAdapter struct {
	registry AgentRegistry
}

// NewAgentAdapter constructs an AgentAdapter over reg.
func NewAgentAdapter(reg AgentRegistry) *AgentAdapter {
	return &AgentAdapter{registry: reg}
}

// Invoke finds the named agent, validates requestedCapabilities against
// its declared capabilities, and invokes it. Unknown agents surface as
// an error result without invoking anything.
func (a *AgentAdapter) Invoke(name string, requestedCapabilities []string, req registry.AgentInvocation) registry.AgentResult {
	agent := a.registry.GetAgent(name)
	if agent == nil {
		return registry.AgentResult{Success: false, Error: fmt.Sprintf("unknown agent %q", name)}
	}

	declared := toSet(agent.Adapter.GetCapabilities())
	for _, cap := range requestedCapabilities {
		if !declared[cap] {
			return registry.AgentResult{Success: false, Error: fmt.Sprintf("agent %q does not support capability %q", name, cap)}
		}
	}

	result, err := agent.Adapter.Invoke(req)
	if err != nil {
		return registry.AgentResult{Success: false, Error: err.Error()}
	}
	return result
}

func toSet(values []string) map[string]bool {
	s := make(map[string]bool, len(values))
	for _, v := range values {
		s[v] = true
	}
	return s
}
