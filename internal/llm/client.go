// Package llm contains the chat-completion clients the agent drives, a retry wrapper
// for transient provider failures, and a Redis-backed model health profile.
package llm

import (
	"context"

	"github.com/dileep-u-k/hospital-agent/internal/api"
	"github.com/dileep-u-k/hospital-agent/internal/tools"
)

// Role represents the originator of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the conversation sent to the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Name is the tool name on RoleTool messages. Gemini needs it to pair a
	// function response with its call.
	Name       string            `json:"name,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	ToolCalls  []*tools.ToolCall `json:"tool_calls,omitempty"`
}

// GenerationConfig controls one generation request.
type GenerationConfig struct {
	// Model is the provider model identifier, e.g. "gpt-4o".
	Model string
	// Temperature is a pointer so an explicit 0 is distinguishable from unset.
	Temperature *float32
	MaxTokens   int
}

// GenerationResult is the model's reply: either tool calls, a final answer, or both
// text and tool calls (the text then becomes the step's log).
type GenerationResult struct {
	Content   string
	ToolCalls []*tools.ToolCall
	Usage     api.Usage
}

// LLMClient is implemented by every chat-completion provider.
type LLMClient interface {
	// Generate performs one blocking completion over the full conversation.
	Generate(
		ctx context.Context,
		messages []Message,
		config *GenerationConfig,
		availableTools []tools.Tool,
	) (*GenerationResult, error)
}

// Float32 returns a pointer to v.
func Float32(v float32) *float32 {
	return &v
}
