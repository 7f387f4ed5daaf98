// Package tools holds the agent's tool descriptors and the provider-agnostic types used
// to describe them to a chat model. Each chat client translates these into its own
// provider's function-calling format.
package tools

// ToolTypeFunction is the only tool type the agent exposes.
const ToolTypeFunction = "function"

// Tool is the schema sent to the model so it knows a tool exists.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function names a callable tool and describes its arguments.
type Function struct {
	Name string `json:"name"`
	// Description is the routing guidance the model reads when choosing a tool.
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
}

// JSONSchema is the subset of JSON Schema the tool parameters need.
type JSONSchema struct {
	Type        string                 `json:"type" yaml:"type"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required    []string               `json:"required,omitempty" yaml:"required,omitempty"`
}

// ToolCall is a request from the model to run a tool.
type ToolCall struct {
	// ID matches the tool's result back to the request in the next turn.
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction carries the tool name and raw JSON arguments chosen by the model.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewFunctionTool builds a Tool of type "function".
func NewFunctionTool(name, description string, parameters JSONSchema) Tool {
	return Tool{
		Type: ToolTypeFunction,
		Function: Function{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// SingleInputSchema describes a tool that takes one free-text argument.
func SingleInputSchema(param, description string) JSONSchema {
	return JSONSchema{
		Type: "object",
		Properties: map[string]*JSONSchema{
			param: {Type: "string", Description: description},
		},
		Required: []string{param},
	}
}
