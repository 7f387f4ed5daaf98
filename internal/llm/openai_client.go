package llm

import (
	"context"
	"errors"
	"math"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dileep-u-k/hospital-agent/internal/api"
	"github.com/dileep-u-k/hospital-agent/internal/tools"
)

const mistralBaseURL = "https://api.mistral.ai/v1"

// OpenAIClient talks to the OpenAI chat completions API, or to any endpoint that speaks
// the same protocol (Mistral is served this way).
type OpenAIClient struct {
	client   *openai.Client
	provider string
}

var _ LLMClient = (*OpenAIClient)(nil)

// NewOpenAIClient creates a client for the OpenAI API. An empty baseURL means the
// public endpoint.
func NewOpenAIClient(apiKey, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key cannot be empty")
	}
	return newOpenAICompatibleClient("openai", apiKey, baseURL), nil
}

// NewMistralClient creates a client for Mistral's OpenAI-compatible endpoint.
func NewMistralClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("Mistral API key cannot be empty")
	}
	return newOpenAICompatibleClient("mistral", apiKey, mistralBaseURL), nil
}

func newOpenAICompatibleClient(provider, apiKey, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	return &OpenAIClient{
		client:   openai.NewClientWithConfig(cfg),
		provider: provider,
	}
}

// Generate performs one chat completion.
func (c *OpenAIClient) Generate(
	ctx context.Context,
	messages []Message,
	config *GenerationConfig,
	availableTools []tools.Tool,
) (*GenerationResult, error) {
	req := openai.ChatCompletionRequest{
		Model:    config.Model,
		Messages: toOpenAIMessages(messages),
		Tools:    toOpenAITools(availableTools),
	}
	if config.MaxTokens > 0 {
		req.MaxTokens = config.MaxTokens
	}
	if config.Temperature != nil {
		req.Temperature = openAITemperature(*config.Temperature)
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, c.wrapError(err)
	}
	return parseOpenAIResponse(resp)
}

// openAITemperature maps 0 to the smallest positive float32. The SDK drops a zero
// temperature from the request body (omitempty), and the API would then use its
// default of 1 instead of greedy decoding.
func openAITemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func (c *OpenAIClient) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: c.provider, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &StatusError{Provider: c.provider, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &StatusError{Provider: c.provider, Err: err}
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		m := openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		switch msg.Role {
		case RoleTool:
			m.ToolCallID = msg.ToolCallID
		case RoleAssistant:
			for _, tc := range msg.ToolCalls {
				m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
		}
		out = append(out, m)
	}
	return out
}

func toOpenAITools(availableTools []tools.Tool) []openai.Tool {
	if len(availableTools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(availableTools))
	for _, t := range availableTools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}
	return out
}

func parseOpenAIResponse(resp openai.ChatCompletionResponse) (*GenerationResult, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices returned from OpenAI")
	}
	choice := resp.Choices[0]
	result := &GenerationResult{
		Content: choice.Message.Content,
		Usage: api.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, &tools.ToolCall{
			ID:   tc.ID,
			Type: tools.ToolTypeFunction,
			Function: tools.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return result, nil
}
