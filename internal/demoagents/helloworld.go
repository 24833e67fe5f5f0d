// Package demoagents holds the handler bodies for the reference agents
// shipped under agents/: helloworld, a single-action state machine used to
// exercise the happy path, the async/callback path, and the domain
// HTTP-error path, and paramtester, which exercises the schema deriver's
// required/default/coercion rules. Production deployments register their
// own implementation packages the same way: a Register func that binds
// agent.action names into a *process.Implementations table.
package demoagents

import (
	"context"

	"github.com/BaSui01/agentprocessor/process"
)

// RegisterHelloworld wires helloworld's single action into impls.
func RegisterHelloworld(impls *process.Implementations) {
	impls.Register("helloworld", "idle", helloworldIdle)
}

func helloworldIdle(_ context.Context, input map[string]any) (process.Result, error) {
	question, _ := input["question"].(string)

	switch question {
	case "hello":
		return process.Result{
			State: "terminated",
			Data: map[string]any{
				"question": question,
				"answer":   "world",
			},
		}, nil
	case "hola":
		return process.Result{}, &process.HTTPError{
			Status: 500,
			Detail: "huge system error, please contact the administrator",
		}
	default:
		return process.Result{
			State: "idle",
			Data:  map[string]any{"question": question},
		}, nil
	}
}
