package tools

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrToolNotFound is returned when the model asks for a tool that is not registered.
	ErrToolNotFound = errors.New("tool not found")
	// ErrDuplicateTool is returned when two tools share a name.
	ErrDuplicateTool = errors.New("duplicate tool name")
)

// ToolManager is the fixed registry of tools bound into an agent. It is filled once
// during assembly and only read afterwards, so it is safe to share between requests.
type ToolManager struct {
	tools map[string]ToolExecutor
	order []string
}

func NewToolManager() *ToolManager {
	return &ToolManager{
		tools: make(map[string]ToolExecutor),
	}
}

// Register adds a tool. Names must be unique and non-empty.
func (tm *ToolManager) Register(tool ToolExecutor) error {
	name := tool.Definition().Function.Name
	if name == "" {
		return errors.New("tool name cannot be empty")
	}
	if _, exists := tm.tools[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, name)
	}
	tm.tools[name] = tool
	tm.order = append(tm.order, name)
	return nil
}

// GetDefinitions returns the tool schemas in registration order.
func (tm *ToolManager) GetDefinitions() []Tool {
	defs := make([]Tool, 0, len(tm.order))
	for _, name := range tm.order {
		defs = append(defs, tm.tools[name].Definition())
	}
	return defs
}

// Has reports whether a tool with the given name is registered.
func (tm *ToolManager) Has(name string) bool {
	_, ok := tm.tools[name]
	return ok
}

// Names returns the registered tool names in registration order.
func (tm *ToolManager) Names() []string {
	names := make([]string, len(tm.order))
	copy(names, tm.order)
	return names
}

// Execute runs a tool by name with the given arguments.
func (tm *ToolManager) Execute(ctx context.Context, name, arguments string) (string, error) {
	tool, ok := tm.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return tool.Execute(ctx, arguments)
}

// ToolCount returns the number of registered tools.
func (tm *ToolManager) ToolCount() int {
	return len(tm.tools)
}
