// Package api defines the public request and response shapes of the hospital agent service.
package api

// QueryRequest is the body accepted by the agent endpoint.
type QueryRequest struct {
	Text string `json:"text" binding:"required"`
}

// Usage is the token accounting reported by the chat-completion provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage report into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Action is the tool call the model proposed for one step.
type Action struct {
	Tool      string `json:"tool"`
	ToolInput string `json:"tool_input"`
	Log       string `json:"log,omitempty"`
}

// IntermediateStep is one entry of the trace returned to the caller.
type IntermediateStep struct {
	Action      Action `json:"action"`
	Observation string `json:"observation"`
	Error       bool   `json:"error,omitempty"`
}

// QueryResponse is returned by the agent endpoint.
type QueryResponse struct {
	RunID             string             `json:"run_id"`
	Input             string             `json:"input"`
	Output            string             `json:"output"`
	IntermediateSteps []IntermediateStep `json:"intermediate_steps"`
	Model             string             `json:"model"`
	Usage             Usage              `json:"usage"`
	LatencyMS         int64              `json:"latency_ms"`
	CacheStatus       string             `json:"cache_status"`
}

// ErrorResponse is returned when an invocation fails. The partial trace is kept so
// callers can see which step failed.
type ErrorResponse struct {
	Error             string             `json:"error"`
	RunID             string             `json:"run_id,omitempty"`
	IntermediateSteps []IntermediateStep `json:"intermediate_steps,omitempty"`
}
