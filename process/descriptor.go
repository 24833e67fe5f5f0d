package process

import (
	"fmt"

	"github.com/BaSui01/agentprocessor/agentspec"
	"github.com/BaSui01/agentprocessor/types"
)

// Param is a single declared handler input, compiled from an
// agentspec.ParamDefinition into a JSON Schema property plus the bookkeeping
// the Schema Deriver needs (is it required, what's its default).
type Param struct {
	Name        string
	Type        types.SchemaType
	Description string
	Required    bool
	Default     any
}

// HandlerDescriptor is one callable action of an agent: its guard set, its
// derived input/output schema, and whether it is an initializer (mounted
// under /programs instead of /processes/{pid}/actions).
type HandlerDescriptor struct {
	Agent                    string
	Action                   string
	Description              string
	IsInitializer            bool
	AllowedPredecessorStates map[string]struct{}
	Params                   []Param
	InputSchema              *types.JSONSchema
}

// AllowsPredecessor reports whether state may precede this handler's action.
// An initializer's only allowed predecessor is the virtual UNINITIALIZED
// state; "processing" is never an allowed predecessor for anything, since an
// execution in flight owns the process until it reaches a terminal state.
func (h *HandlerDescriptor) AllowsPredecessor(state string) bool {
	if state == StateProcessing {
		return false
	}
	if h.IsInitializer {
		return state == StateUninitialized
	}
	_, ok := h.AllowedPredecessorStates[state]
	return ok
}

// AgentDescriptor is a named collection of handlers, compiled once at
// startup from an agentspec.AgentDefinition and never mutated afterward.
type AgentDescriptor struct {
	Name        string
	Description string
	Handlers    map[string]*HandlerDescriptor
}

// Initializers returns the agent's initializer handlers in map iteration
// order, which is not stable between calls.
func (a *AgentDescriptor) Initializers() []*HandlerDescriptor {
	var out []*HandlerDescriptor
	for _, h := range a.Handlers {
		if h.IsInitializer {
			out = append(out, h)
		}
	}
	return out
}

// CompileDescriptor builds an AgentDescriptor from a loaded agentspec
// definition, deriving each handler's input schema from its declared params.
func CompileDescriptor(def *agentspec.AgentDefinition) (*AgentDescriptor, error) {
	if err := agentspec.Validate(def); err != nil {
		return nil, fmt.Errorf("compile agent %q: %w", def.Name, err)
	}

	agent := &AgentDescriptor{
		Name:        def.Name,
		Description: def.Description,
		Handlers:    make(map[string]*HandlerDescriptor, len(def.Handlers)),
	}

	for action, hd := range def.Handlers {
		handler, err := compileHandler(def.Name, action, hd)
		if err != nil {
			return nil, fmt.Errorf("compile agent %q action %q: %w", def.Name, action, err)
		}
		agent.Handlers[action] = handler
	}

	return agent, nil
}

func compileHandler(agentName, action string, hd agentspec.HandlerDefinition) (*HandlerDescriptor, error) {
	allowed := make(map[string]struct{}, len(hd.AllowedPredecessorStates))
	for _, s := range hd.AllowedPredecessorStates {
		allowed[s] = struct{}{}
	}

	schema := types.NewObjectSchema()
	params := make([]Param, 0, len(hd.Params))
	for _, p := range hd.Params {
		schemaType, err := paramSchemaType(p.Type)
		if err != nil {
			return nil, err
		}

		prop := &types.JSONSchema{Type: schemaType, Description: p.Description, Default: p.Default}
		schema.AddProperty(p.Name, prop)

		required := p.Default == nil
		if required {
			schema.AddRequired(p.Name)
		}

		params = append(params, Param{
			Name:        p.Name,
			Type:        schemaType,
			Description: p.Description,
			Required:    required,
			Default:     p.Default,
		})
	}

	return &HandlerDescriptor{
		Agent:                    agentName,
		Action:                   action,
		Description:              hd.Description,
		IsInitializer:            hd.IsInitializer,
		AllowedPredecessorStates: allowed,
		Params:                   params,
		InputSchema:              schema,
	}, nil
}

func paramSchemaType(t string) (types.SchemaType, error) {
	switch t {
	case "string":
		return types.SchemaTypeString, nil
	case "integer":
		return types.SchemaTypeInteger, nil
	case "number":
		return types.SchemaTypeNumber, nil
	case "boolean":
		return types.SchemaTypeBoolean, nil
	case "object":
		return types.SchemaTypeObject, nil
	case "array":
		return types.SchemaTypeArray, nil
	default:
		return "", fmt.Errorf("unknown param type %q", t)
	}
}
