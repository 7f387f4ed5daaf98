package tools

import "context"

// ToolExecutor is implemented by every tool the agent can call.
type ToolExecutor interface {
	// Definition returns the schema shown to the model.
	Definition() Tool

	// Execute runs the tool with the JSON arguments the model produced and returns
	// the observation that is fed back to the model.
	Execute(ctx context.Context, arguments string) (string, error)
}
