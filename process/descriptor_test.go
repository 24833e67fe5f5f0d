package process

import (
	"testing"

	"github.com/BaSui01/agentprocessor/agentspec"
	"github.com/BaSui01/agentprocessor/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func helloworldDefinition() *agentspec.AgentDefinition {
	return &agentspec.AgentDefinition{
		Name: "helloworld",
		Impl: "internal/demoagents.Helloworld",
		Handlers: map[string]agentspec.HandlerDefinition{
			"idle": {
				Description:   "greets the caller",
				IsInitializer: true,
				Params: []agentspec.ParamDefinition{
					{Name: "question", Type: "string"},
				},
			},
		},
	}
}

func paramtesterDefinition() *agentspec.AgentDefinition {
	return &agentspec.AgentDefinition{
		Name: "paramtester",
		Impl: "internal/demoagents.Paramtester",
		Handlers: map[string]agentspec.HandlerDefinition{
			"foo": {
				IsInitializer: true,
				Params: []agentspec.ParamDefinition{
					{Name: "x", Type: "integer"},
					{Name: "y", Type: "integer", Default: 5},
					{Name: "z", Type: "integer", Default: 10},
				},
			},
		},
	}
}

func TestCompileDescriptorHelloworld(t *testing.T) {
	agent, err := CompileDescriptor(helloworldDefinition())
	require.NoError(t, err)
	assert.Equal(t, "helloworld", agent.Name)

	h, ok := agent.Handlers["idle"]
	require.True(t, ok)
	assert.True(t, h.IsInitializer)
	assert.Empty(t, h.AllowedPredecessorStates)
	assert.True(t, h.AllowsPredecessor(StateUninitialized))
	assert.False(t, h.AllowsPredecessor("terminated"))
	assert.False(t, h.AllowsPredecessor(StateProcessing))

	require.Len(t, h.Params, 1)
	assert.Equal(t, "question", h.Params[0].Name)
	assert.True(t, h.Params[0].Required)
	assert.Equal(t, types.SchemaTypeString, h.Params[0].Type)
}

func TestCompileDescriptorParamDefaults(t *testing.T) {
	agent, err := CompileDescriptor(paramtesterDefinition())
	require.NoError(t, err)

	h := agent.Handlers["foo"]
	byName := map[string]Param{}
	for _, p := range h.Params {
		byName[p.Name] = p
	}
	assert.True(t, byName["x"].Required)
	assert.Nil(t, byName["x"].Default)
	assert.False(t, byName["y"].Required)
	assert.Equal(t, 5, byName["y"].Default)
	assert.False(t, byName["z"].Required)
	assert.Equal(t, 10, byName["z"].Default)
}

func TestAllowsPredecessorNonInitializer(t *testing.T) {
	h := &HandlerDescriptor{
		AllowedPredecessorStates: map[string]struct{}{"idle": {}},
	}
	assert.True(t, h.AllowsPredecessor("idle"))
	assert.False(t, h.AllowsPredecessor("terminated"))
	assert.False(t, h.AllowsPredecessor(StateUninitialized))
	assert.False(t, h.AllowsPredecessor(StateProcessing))
}

func TestCompileDescriptorRejectsUnknownParamType(t *testing.T) {
	def := &agentspec.AgentDefinition{
		Name: "broken",
		Handlers: map[string]agentspec.HandlerDefinition{
			"init": {
				IsInitializer: true,
				Params:        []agentspec.ParamDefinition{{Name: "x", Type: "bogus"}},
			},
		},
	}
	_, err := CompileDescriptor(def)
	assert.Error(t, err)
}

func TestCompileDescriptorRejectsInvalidDefinition(t *testing.T) {
	def := &agentspec.AgentDefinition{
		Name: "broken",
		Handlers: map[string]agentspec.HandlerDefinition{
			"advance": {IsInitializer: false},
		},
	}
	_, err := CompileDescriptor(def)
	assert.Error(t, err)
}

func TestAgentDescriptorInitializers(t *testing.T) {
	agent, err := CompileDescriptor(helloworldDefinition())
	require.NoError(t, err)
	inits := agent.Initializers()
	require.Len(t, inits, 1)
	assert.Equal(t, "idle", inits[0].Action)
}
