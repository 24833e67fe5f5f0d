package agentspec

// AgentDefinition is the declarative form of an agent: a name plus the set of
// action handlers that make up its state machine. It is designed to be
// deserialized from a YAML or JSON resource file and later compiled into a
// process.AgentDescriptor.
type AgentDefinition struct {
	// Name uniquely identifies the agent across the registry.
	Name string `yaml:"name" json:"name"`

	// Description is free text, copied onto the compiled AgentDescriptor;
	// the GET /docs listing does not include it.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Impl is the fully-qualified implementation identifier resolved by the
	// host at startup (a registered Go handler set, not a dynamic plugin).
	Impl string `yaml:"impl" json:"impl"`

	// Handlers maps action name to its declared shape. At least one handler
	// must have IsInitializer set.
	Handlers map[string]HandlerDefinition `yaml:"handlers" json:"handlers"`

	Metadata map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// HandlerDefinition is the declarative form of a Handler Descriptor.
type HandlerDefinition struct {
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// IsInitializer marks an action that creates a new process. Such actions
	// must declare no AllowedPredecessorStates.
	IsInitializer bool `yaml:"is_initializer,omitempty" json:"is_initializer,omitempty"`

	// AllowedPredecessorStates names the states from which this action may
	// fire. Empty iff IsInitializer.
	AllowedPredecessorStates []string `yaml:"allowed_predecessor_states,omitempty" json:"allowed_predecessor_states,omitempty"`

	// Params is the ordered input parameter list.
	Params []ParamDefinition `yaml:"params,omitempty" json:"params,omitempty"`
}

// ParamDefinition declares one input parameter of a handler.
type ParamDefinition struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"` // string|integer|number|boolean|object|array
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Default, when non-nil, makes the parameter optional.
	Default any `yaml:"default,omitempty" json:"default,omitempty"`
}
