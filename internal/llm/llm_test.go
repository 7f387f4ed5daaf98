package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/dileep-u-k/hospital-agent/internal/api"
	"github.com/dileep-u-k/hospital-agent/internal/tools"
)

type flakyClient struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (c *flakyClient) Generate(context.Context, []Message, *GenerationConfig, []tools.Tool) (*GenerationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &GenerationResult{Content: "ok"}, nil
}

func TestRetryingClient(t *testing.T) {
	transient := &StatusError{Provider: "openai", StatusCode: 503, Err: errors.New("unavailable")}
	final := &StatusError{Provider: "openai", StatusCode: 401, Err: errors.New("bad key")}
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}
	gen := &GenerationConfig{Model: "gpt-4o"}

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{"first try", nil, 1, false},
		{"recovers", []error{transient, transient}, 3, false},
		{"exhausted", []error{transient, transient, transient}, 3, true},
		{"not retryable", []error{final}, 1, true},
		{"rate limited", []error{&StatusError{StatusCode: 429, Err: errors.New("slow down")}}, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &flakyClient{errs: tt.errs}
			_, err := NewRetryingClient(inner, cfg).Generate(context.Background(), nil, gen, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if inner.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", inner.calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryingClientStopsOnCancel(t *testing.T) {
	inner := &flakyClient{errs: []error{errors.New("reset"), errors.New("reset")}}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := NewRetryingClient(inner, RetryConfig{MaxAttempts: 5, InitialDelay: time.Second}).
		Generate(ctx, nil, &GenerationConfig{Model: "m"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, false},
		{&StatusError{StatusCode: 400}, false},
		{&StatusError{StatusCode: 408}, true},
		{&StatusError{StatusCode: 429}, true},
		{&StatusError{StatusCode: 500}, true},
		{&StatusError{}, true},
		{errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestProvider(t *testing.T) {
	tests := map[string]string{
		"gpt-4o":               "openai",
		"o3-mini":              "openai",
		"claude-3-5-sonnet":    "anthropic",
		"gemini-1.5-pro":       "gemini",
		"mistral-large-latest": "mistral",
		"open-mistral-nemo":    "mistral",

		"ft:gpt-4o-mini-2024-07-18:acme::abc123": "openai",
		"chatgpt-4o-latest":                      "openai",
		"llama-3":                                "openai",
	}
	for model, want := range tests {
		if got := Provider(model); got != want {
			t.Errorf("Provider(%s) = %q, want %q", model, got, want)
		}
	}
}

func TestOpenAIClientGenerate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "Waits", "arguments": "{\"hospital\":\"Mercy Hospital\"}"}
					}]
				}
			}],
			"usage": {"prompt_tokens": 11, "completion_tokens": 7, "total_tokens": 18}
		}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient("test-key", srv.URL+"/v1")
	if err != nil {
		t.Fatal(err)
	}
	defs := []tools.Tool{tools.NewFunctionTool("Waits", "wait times", tools.SingleInputSchema("hospital", "name"))}
	res, err := client.Generate(context.Background(),
		[]Message{{Role: RoleSystem, Content: "You are a helpful assistant"}, {Role: RoleUser, Content: "wait at Mercy?"}},
		&GenerationConfig{Model: "gpt-4o", Temperature: Float32(0)}, defs)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	temp, ok := body["temperature"].(float64)
	if !ok || temp <= 0 || temp > 1e-30 {
		t.Errorf("temperature sent = %v, want a positive value indistinguishable from 0", body["temperature"])
	}
	if body["tool_choice"] != "auto" {
		t.Errorf("tool_choice = %v", body["tool_choice"])
	}
	if toolsSent, _ := body["tools"].([]any); len(toolsSent) != 1 {
		t.Errorf("tools sent = %v", body["tools"])
	}

	if len(res.ToolCalls) != 1 || res.ToolCalls[0].ID != "call_1" || res.ToolCalls[0].Function.Name != "Waits" {
		t.Fatalf("tool calls = %+v", res.ToolCalls)
	}
	if res.ToolCalls[0].Function.Arguments != `{"hospital":"Mercy Hospital"}` {
		t.Errorf("arguments = %s", res.ToolCalls[0].Function.Arguments)
	}
	if res.Usage != (api.Usage{PromptTokens: 11, CompletionTokens: 7, TotalTokens: 18}) {
		t.Errorf("usage = %+v", res.Usage)
	}
}

func TestOpenAIClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	client, _ := NewOpenAIClient("bad", srv.URL+"/v1")
	_, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, &GenerationConfig{Model: "gpt-4o"}, nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("error = %v, want 401 StatusError", err)
	}
	if Retryable(err) {
		t.Error("401 should not be retryable")
	}
}

func TestClientConstructorsRequireKeys(t *testing.T) {
	if _, err := NewOpenAIClient("", ""); err == nil {
		t.Error("OpenAI: expected an error")
	}
	if _, err := NewMistralClient(""); err == nil {
		t.Error("Mistral: expected an error")
	}
	if _, err := NewAnthropicClient("", ""); err == nil {
		t.Error("Anthropic: expected an error")
	}
	if _, err := NewGeminiClient(context.Background(), ""); err == nil {
		t.Error("Gemini: expected an error")
	}
}

func TestAnthropicErrorStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  int
		wantRetry bool
	}{
		{"auth error body", http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, 401, false},
		{"invalid request body", http.StatusBadRequest, `{"type":"error","error":{"type":"invalid_request_error","message":"bad tools"}}`, 400, false},
		{"plain body", http.StatusBadRequest, `bad request`, 400, false},
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`, 529, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			client, err := NewAnthropicClient("key", srv.URL)
			if err != nil {
				t.Fatal(err)
			}
			_, err = client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}},
				&GenerationConfig{Model: "claude-3-5-sonnet-latest", Temperature: Float32(0)}, nil)
			var statusErr *StatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.wantCode {
				t.Fatalf("error = %v, want StatusError with status %d", err, tt.wantCode)
			}
			if got := Retryable(err); got != tt.wantRetry {
				t.Errorf("Retryable = %v, want %v", got, tt.wantRetry)
			}
		})
	}
}

func scratchpad() []Message {
	return []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "compare waits"},
		{Role: RoleAssistant, ToolCalls: []*tools.ToolCall{
			{ID: "1", Type: tools.ToolTypeFunction, Function: tools.ToolCallFunction{Name: "Waits", Arguments: `{"hospital":"A"}`}},
			{ID: "2", Type: tools.ToolTypeFunction, Function: tools.ToolCallFunction{Name: "Waits", Arguments: `{"hospital":"B"}`}},
		}},
		{Role: RoleTool, Name: "Waits", ToolCallID: "1", Content: "10"},
		{Role: RoleTool, Name: "Waits", ToolCallID: "2", Content: "20"},
	}
}

func TestToAnthropicMessages(t *testing.T) {
	system, msgs := toAnthropicMessages(scratchpad())
	if system != "sys" {
		t.Errorf("system = %q", system)
	}
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3 (user, assistant, merged tool results)", len(msgs))
	}
	if msgs[1].Role != anthropic.RoleAssistant || len(msgs[1].Content) != 2 {
		t.Errorf("assistant message = %+v", msgs[1])
	}
	if msgs[2].Role != anthropic.RoleUser || len(msgs[2].Content) != 2 {
		t.Errorf("tool results message = %+v", msgs[2])
	}
}

func TestToGeminiContents(t *testing.T) {
	system, contents := toGeminiContents(scratchpad())
	if system != "sys" {
		t.Errorf("system = %q", system)
	}
	if len(contents) != 3 {
		t.Fatalf("contents = %d, want 3", len(contents))
	}
	if contents[1].Role != "model" || len(contents[1].Parts) != 2 {
		t.Errorf("model content = %+v", contents[1])
	}
	last := contents[2]
	if last.Role != "user" || len(last.Parts) != 2 {
		t.Fatalf("function responses = %+v", last)
	}
	if fr, ok := last.Parts[0].(genai.FunctionResponse); !ok || fr.Name != "Waits" || fr.Response["content"] != "10" {
		t.Errorf("first function response = %#v", last.Parts[0])
	}
}

type recordingRecorder struct {
	mu        sync.Mutex
	successes []time.Duration
	failures  int
}

func (r *recordingRecorder) RecordSuccess(_ context.Context, _ string, latency time.Duration, _ api.Usage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, latency)
}

func (r *recordingRecorder) RecordFailure(context.Context, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

func TestProfiledClient(t *testing.T) {
	rec := &recordingRecorder{}
	inner := &flakyClient{errs: []error{errors.New("down")}}
	client := NewProfiledClient(inner, rec)
	cfg := &GenerationConfig{Model: "gpt-4o"}

	if _, err := client.Generate(context.Background(), nil, cfg, nil); err == nil {
		t.Fatal("expected the first call to fail")
	}
	if _, err := client.Generate(context.Background(), nil, cfg, nil); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if rec.failures != 1 || len(rec.successes) != 1 {
		t.Errorf("failures = %d, successes = %d", rec.failures, len(rec.successes))
	}
}
