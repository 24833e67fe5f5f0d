package process

import (
	"fmt"
	"sort"

	"github.com/BaSui01/agentprocessor/agentspec"
)

// Registry is the compiled, read-only set of agents the controller serves.
// It is built once at startup from a descriptor directory and never mutated
// afterward; concurrent reads need no lock.
type Registry struct {
	agents map[string]*AgentDescriptor
	names  []string
}

// LoadRegistry reads every recognized descriptor file under dir, validates
// and compiles each into an AgentDescriptor, and returns the resulting
// Registry. A duplicate agent name across files is an error.
func LoadRegistry(loader agentspec.Loader, dir string) (*Registry, error) {
	defs, err := loader.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load agent descriptors from %s: %w", dir, err)
	}

	reg := &Registry{agents: make(map[string]*AgentDescriptor, len(defs))}
	for _, def := range defs {
		agent, err := CompileDescriptor(def)
		if err != nil {
			return nil, err
		}
		if _, exists := reg.agents[agent.Name]; exists {
			return nil, fmt.Errorf("duplicate agent name %q in %s", agent.Name, dir)
		}
		reg.agents[agent.Name] = agent
		reg.names = append(reg.names, agent.Name)
	}
	sort.Strings(reg.names)

	return reg, nil
}

// Agent looks up a registered agent by name.
func (r *Registry) Agent(name string) (*AgentDescriptor, bool) {
	a, ok := r.agents[name]
	return a, ok
}

// Names returns every registered agent name in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Handler looks up one action of one agent.
func (r *Registry) Handler(agent, action string) (*HandlerDescriptor, bool) {
	a, ok := r.agents[agent]
	if !ok {
		return nil, false
	}
	h, ok := a.Handlers[action]
	return h, ok
}
