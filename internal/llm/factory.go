package llm

import (
	"context"
	"fmt"
	"strings"
)

// APIKeys holds provider credentials. OpenAIBaseURL and AnthropicBaseURL override the
// public endpoints when set.
type APIKeys struct {
	OpenAI           string
	OpenAIBaseURL    string
	Anthropic        string
	AnthropicBaseURL string
	Gemini           string
	Mistral          string
}

// Provider reports which provider serves modelID, by prefix. Ids with no known
// prefix (fine-tunes, chatgpt-* aliases, models behind OPENAI_API_BASE_URL) go to
// OpenAI.
func Provider(modelID string) string {
	switch {
	case strings.HasPrefix(modelID, "claude"):
		return "anthropic"
	case strings.HasPrefix(modelID, "gemini"):
		return "gemini"
	case strings.HasPrefix(modelID, "mistral"), strings.HasPrefix(modelID, "open-mistral"),
		strings.HasPrefix(modelID, "codestral"):
		return "mistral"
	}
	return "openai"
}

// NewClientForModel creates the raw provider client for modelID.
func NewClientForModel(ctx context.Context, modelID string, keys APIKeys) (LLMClient, error) {
	var (
		client LLMClient
		err    error
	)
	switch Provider(modelID) {
	case "openai":
		client, err = NewOpenAIClient(keys.OpenAI, keys.OpenAIBaseURL)
	case "anthropic":
		client, err = NewAnthropicClient(keys.Anthropic, keys.AnthropicBaseURL)
	case "gemini":
		client, err = NewGeminiClient(ctx, keys.Gemini)
	case "mistral":
		client, err = NewMistralClient(keys.Mistral)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", modelID, err)
	}
	return client, nil
}
