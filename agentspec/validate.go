package agentspec

import "fmt"

// Validate checks that an AgentDefinition satisfies the invariants required
// before it can be compiled into a process.AgentDescriptor: a non-empty name,
// at least one initializer handler, the initializer/predecessor-states
// invariant on every handler, and a name and known type on every parameter.
// Name uniqueness across agents is not checked here.
func Validate(def *AgentDefinition) error {
	if def == nil {
		return fmt.Errorf("agent definition is nil")
	}
	if def.Name == "" {
		return fmt.Errorf("agent definition: name is required")
	}
	if len(def.Handlers) == 0 {
		return fmt.Errorf("agent %q: at least one handler is required", def.Name)
	}

	hasInitializer := false
	for action, h := range def.Handlers {
		if h.IsInitializer {
			hasInitializer = true
			if len(h.AllowedPredecessorStates) != 0 {
				return fmt.Errorf("agent %q action %q: initializer must declare no allowed_predecessor_states", def.Name, action)
			}
		} else if len(h.AllowedPredecessorStates) == 0 {
			return fmt.Errorf("agent %q action %q: non-initializer must declare at least one allowed_predecessor_state", def.Name, action)
		}

		for _, p := range h.Params {
			if p.Name == "" {
				return fmt.Errorf("agent %q action %q: parameter missing name", def.Name, action)
			}
			if !isKnownParamType(p.Type) {
				return fmt.Errorf("agent %q action %q: parameter %q has unrecognized type %q", def.Name, action, p.Name, p.Type)
			}
		}
	}

	if !hasInitializer {
		return fmt.Errorf("agent %q: no initializer action declared", def.Name)
	}

	return nil
}

func isKnownParamType(t string) bool {
	switch t {
	case "string", "integer", "number", "boolean", "object", "array":
		return true
	default:
		return false
	}
}
