package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput is returned by a tool whose required input is blank.
var ErrEmptyInput = errors.New("empty tool input")

// Handler is the single-argument callable behind a tool.
type Handler func(ctx context.Context, input string) (string, error)

// FuncTool binds a catalog entry to a handler. It is the descriptor shape every
// hospital tool uses: name, routing description, one free-text argument.
type FuncTool struct {
	entry   CatalogEntry
	handler Handler
}

var _ ToolExecutor = (*FuncTool)(nil)

func NewFuncTool(entry CatalogEntry, handler Handler) *FuncTool {
	return &FuncTool{entry: entry, handler: handler}
}

func (t *FuncTool) Definition() Tool {
	return t.entry.Definition()
}

// Execute extracts the single input from the model's arguments and calls the handler.
func (t *FuncTool) Execute(ctx context.Context, arguments string) (string, error) {
	input, err := ParseInput(arguments, t.entry.Parameter)
	if err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", t.entry.Name, err)
	}
	return t.handler(ctx, input)
}

// ParseInput pulls the free-text input out of a tool call's arguments. Models usually
// send {"<param>": "..."}, but some send the LangChain-style {"__arg1": "..."}, a bare
// JSON string, or plain text. All are accepted.
func ParseInput(arguments, param string) (string, error) {
	trimmed := strings.TrimSpace(arguments)
	if trimmed == "" {
		return "", nil
	}

	switch trimmed[0] {
	case '{':
		var args map[string]any
		if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
			return "", err
		}
		for _, key := range []string{param, "__arg1", "input"} {
			if v, ok := args[key]; ok {
				return stringify(v), nil
			}
		}
		if len(args) == 0 {
			return "", nil
		}
		if len(args) == 1 {
			for _, v := range args {
				return stringify(v), nil
			}
		}
		return "", fmt.Errorf("expected argument %q", param)
	case '"':
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
			return "", err
		}
		return s, nil
	default:
		return trimmed, nil
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
