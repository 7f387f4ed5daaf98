// Package agent assembles the hospital agent (tools, chat model, prompt) and runs the
// function-calling loop that answers one query.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/dileep-u-k/hospital-agent/internal/llm"
	"github.com/dileep-u-k/hospital-agent/internal/prompt"
	"github.com/dileep-u-k/hospital-agent/internal/tools"
)

// ToolDeps are the external collaborators the four tools delegate to.
type ToolDeps struct {
	Reviews   tools.ReviewSearcher
	Graph     tools.GraphQuerier
	WaitTimes tools.WaitTimeSource
}

// BuildTools registers Experiences, Graph, Waits and Availability, in that order.
func BuildTools(catalog *tools.Catalog, deps ToolDeps) (*tools.ToolManager, error) {
	if catalog == nil {
		catalog = tools.DefaultCatalog()
	}
	if deps.Reviews == nil || deps.Graph == nil || deps.WaitTimes == nil {
		return nil, configErr("reviews, graph and wait-time collaborators are all required")
	}

	experiences, err := tools.NewExperiencesTool(catalog, deps.Reviews)
	if err != nil {
		return nil, wrapConfig(err)
	}
	graph, err := tools.NewGraphTool(catalog, deps.Graph)
	if err != nil {
		return nil, wrapConfig(err)
	}
	waits, err := tools.NewWaitsTool(catalog, deps.WaitTimes)
	if err != nil {
		return nil, wrapConfig(err)
	}
	availability, err := tools.NewAvailabilityTool(catalog, deps.WaitTimes)
	if err != nil {
		return nil, wrapConfig(err)
	}

	manager := tools.NewToolManager()
	for _, t := range []tools.ToolExecutor{experiences, graph, waits, availability} {
		if err := manager.Register(t); err != nil {
			return nil, wrapConfig(err)
		}
	}
	return manager, nil
}

// ChatModel is a chat client bound to one model and generation config.
type ChatModel struct {
	client llm.LLMClient
	config llm.GenerationConfig
}

// NewChatModel binds client to modelID with temperature 0.
func NewChatModel(client llm.LLMClient, modelID string) (*ChatModel, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, configErr("model id is empty")
	}
	if client == nil {
		return nil, configErr("chat client is nil")
	}
	return &ChatModel{
		client: client,
		config: llm.GenerationConfig{Model: modelID, Temperature: llm.Float32(0)},
	}, nil
}

// ModelID returns the bound model identifier.
func (m *ChatModel) ModelID() string { return m.config.Model }

func (m *ChatModel) generate(ctx context.Context, messages []llm.Message, defs []tools.Tool) (*llm.GenerationResult, error) {
	cfg := m.config
	return m.client.Generate(ctx, messages, &cfg, defs)
}

type clientOptions struct {
	retry    llm.RetryConfig
	recorder llm.ProfileRecorder
	factory  func(ctx context.Context, modelID string, keys llm.APIKeys) (llm.LLMClient, error)
}

// ClientOption customizes BuildClient.
type ClientOption func(*clientOptions)

// WithRetryConfig overrides the model retry policy.
func WithRetryConfig(cfg llm.RetryConfig) ClientOption {
	return func(o *clientOptions) { o.retry = cfg }
}

// WithProfileRecorder reports every model call to r.
func WithProfileRecorder(r llm.ProfileRecorder) ClientOption {
	return func(o *clientOptions) { o.recorder = r }
}

// WithClientFactory replaces provider client construction.
func WithClientFactory(f func(ctx context.Context, modelID string, keys llm.APIKeys) (llm.LLMClient, error)) ClientOption {
	return func(o *clientOptions) { o.factory = f }
}

// BuildClient creates the chat model for modelID. Each attempt is profiled when a
// recorder is set, and failed calls are retried with exponential backoff.
func BuildClient(ctx context.Context, modelID string, keys llm.APIKeys, opts ...ClientOption) (*ChatModel, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, configErr("model id is empty")
	}
	o := clientOptions{retry: llm.DefaultRetryConfig(), factory: llm.NewClientForModel}
	for _, opt := range opts {
		opt(&o)
	}

	raw, err := o.factory(ctx, modelID, keys)
	if err != nil {
		return nil, wrapConfig(err)
	}
	if o.recorder != nil {
		raw = llm.NewProfiledClient(raw, o.recorder)
	}
	return NewChatModel(llm.NewRetryingClient(raw, o.retry), modelID)
}

// LoadPrompt pulls the agent prompt. Any registry failure is a configuration error.
func LoadPrompt(ctx context.Context, registry prompt.Registry, id string) (*prompt.Template, error) {
	if registry == nil {
		return nil, configErr("prompt registry is nil")
	}
	tmpl, err := registry.Pull(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: pull prompt %s: %w", ErrConfiguration, id, err)
	}
	return tmpl, nil
}
