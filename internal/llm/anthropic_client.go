package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/dileep-u-k/hospital-agent/internal/api"
	"github.com/dileep-u-k/hospital-agent/internal/tools"
)

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
}

var _ LLMClient = (*AnthropicClient)(nil)

// NewAnthropicClient creates a client for Claude models. An empty baseURL means the
// public endpoint.
func NewAnthropicClient(apiKey, baseURL string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key cannot be empty")
	}
	opts := []anthropic.ClientOption{
		anthropic.WithHTTPClient(&http.Client{Timeout: defaultTimeout}),
	}
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &AnthropicClient{client: anthropic.NewClient(apiKey, opts...)}, nil
}

// Generate performs one Messages API call.
func (c *AnthropicClient) Generate(
	ctx context.Context,
	messages []Message,
	config *GenerationConfig,
	availableTools []tools.Tool,
) (*GenerationResult, error) {
	system, msgs := toAnthropicMessages(messages)
	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(config.Model),
		System:      system,
		Messages:    msgs,
		MaxTokens:   defaultMaxTokens,
		Temperature: config.Temperature,
		Tools:       toAnthropicTools(availableTools),
	}
	if config.MaxTokens > 0 {
		req.MaxTokens = config.MaxTokens
	}

	resp, err := c.client.CreateMessages(ctx, req)
	if err != nil {
		return nil, wrapAnthropicError(err)
	}
	return parseAnthropicResponse(resp), nil
}

// anthropicErrorStatus maps the error types of a JSON error body back to the HTTP
// status the API documents for them; the SDK drops the status in that case.
var anthropicErrorStatus = map[anthropic.ErrType]int{
	anthropic.ErrTypeInvalidRequest: http.StatusBadRequest,
	anthropic.ErrTypeAuthentication: http.StatusUnauthorized,
	anthropic.ErrTypePermission:     http.StatusForbidden,
	anthropic.ErrTypeNotFound:       http.StatusNotFound,
	anthropic.ErrTypeTooLarge:       http.StatusRequestEntityTooLarge,
	anthropic.ErrTypeRateLimit:      http.StatusTooManyRequests,
	anthropic.ErrTypeApi:            http.StatusInternalServerError,
	anthropic.ErrTypeOverloaded:     529,
}

func wrapAnthropicError(err error) error {
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		return &StatusError{Provider: "anthropic", StatusCode: reqErr.StatusCode, Err: err}
	}
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: "anthropic", StatusCode: anthropicErrorStatus[apiErr.Type], Err: err}
	}
	return &StatusError{Provider: "anthropic", Err: err}
}

// toAnthropicMessages lifts system messages into the top-level system prompt and
// folds consecutive tool results into a single user turn, which the API requires.
func toAnthropicMessages(messages []Message) (string, []anthropic.Message) {
	var system []string
	out := make([]anthropic.Message, 0, len(messages))
	lastWasToolResult := false

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
			continue
		case RoleTool:
			result := anthropic.NewToolResultsMessage(msg.ToolCallID, msg.Content, false)
			if lastWasToolResult {
				prev := &out[len(out)-1]
				prev.Content = append(prev.Content, result.Content...)
			} else {
				out = append(out, result)
			}
			lastWasToolResult = true
			continue
		case RoleAssistant:
			m := anthropic.Message{Role: anthropic.RoleAssistant}
			if msg.Content != "" {
				m.Content = append(m.Content, anthropic.NewTextMessageContent(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				input := json.RawMessage(tc.Function.Arguments)
				if !json.Valid(input) {
					input = json.RawMessage("{}")
				}
				m.Content = append(m.Content, anthropic.MessageContent{
					Type: anthropic.MessagesContentTypeToolUse,
					MessageContentToolUse: &anthropic.MessageContentToolUse{
						ID:    tc.ID,
						Name:  tc.Function.Name,
						Input: input,
					},
				})
			}
			out = append(out, m)
		default:
			out = append(out, anthropic.NewUserTextMessage(msg.Content))
		}
		lastWasToolResult = false
	}
	return strings.Join(system, "\n\n"), out
}

func toAnthropicTools(availableTools []tools.Tool) []anthropic.ToolDefinition {
	if len(availableTools) == 0 {
		return nil
	}
	out := make([]anthropic.ToolDefinition, 0, len(availableTools))
	for _, t := range availableTools {
		out = append(out, anthropic.ToolDefinition{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: t.Function.Parameters,
		})
	}
	return out
}

func parseAnthropicResponse(resp anthropic.MessagesResponse) *GenerationResult {
	var text strings.Builder
	result := &GenerationResult{
		Usage: api.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	for i, block := range resp.Content {
		switch block.Type {
		case anthropic.MessagesContentTypeText:
			text.WriteString(block.GetText())
		case anthropic.MessagesContentTypeToolUse:
			if block.MessageContentToolUse == nil {
				continue
			}
			id := block.MessageContentToolUse.ID
			if id == "" {
				id = fmt.Sprintf("anthropic-toolcall-%d", i)
			}
			result.ToolCalls = append(result.ToolCalls, &tools.ToolCall{
				ID:   id,
				Type: tools.ToolTypeFunction,
				Function: tools.ToolCallFunction{
					Name:      block.MessageContentToolUse.Name,
					Arguments: string(block.MessageContentToolUse.Input),
				},
			})
		}
	}
	result.Content = strings.TrimSpace(text.String())
	return result
}
