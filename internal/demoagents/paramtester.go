package demoagents

import (
	"context"

	"github.com/BaSui01/agentprocessor/process"
)

// RegisterParamtester wires paramtester's single action into impls.
func RegisterParamtester(impls *process.Implementations) {
	impls.Register("paramtester", "foo", paramtesterFoo)
}

func paramtesterFoo(_ context.Context, input map[string]any) (process.Result, error) {
	return process.Result{
		Data: map[string]any{
			"x": input["x"],
			"y": input["y"],
			"z": input["z"],
		},
	}, nil
}

// Register wires every demo agent implementation into impls. Callers that
// only want one agent can call its specific Register function instead.
func Register(impls *process.Implementations) {
	RegisterHelloworld(impls)
	RegisterParamtester(impls)
}
