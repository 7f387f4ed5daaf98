package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dileep-u-k/hospital-agent/internal/tools"
)

// RetryConfig bounds how a RetryingClient retries.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	// ShouldRetry overrides Retryable when set.
	ShouldRetry func(error) bool
}

// DefaultRetryConfig is three attempts with 2s, 4s backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: maxRetries, InitialDelay: initialRetryDelay}
}

// RetryingClient retries transient generation failures with exponential backoff.
type RetryingClient struct {
	next LLMClient
	cfg  RetryConfig
}

var _ LLMClient = (*RetryingClient)(nil)

func NewRetryingClient(next LLMClient, cfg RetryConfig) *RetryingClient {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryingClient{next: next, cfg: cfg}
}

func (c *RetryingClient) Generate(
	ctx context.Context,
	messages []Message,
	config *GenerationConfig,
	availableTools []tools.Tool,
) (*GenerationResult, error) {
	shouldRetry := c.cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = Retryable
	}

	delay := c.cfg.InitialDelay
	var lastErr error
	attempt := 1
	for ; attempt <= c.cfg.MaxAttempts; attempt++ {
		result, err := c.next.Generate(ctx, messages, config, availableTools)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt == c.cfg.MaxAttempts || ctx.Err() != nil || !shouldRetry(err) {
			break
		}
		slog.Warn("model call failed, retrying",
			"model", config.Model, "attempt", attempt, "max_attempts", c.cfg.MaxAttempts, "delay", delay, "err", err)
		select {
		case <-ctx.Done():
			return nil, errors.Join(lastErr, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, fmt.Errorf("model call failed (attempt %d/%d): %w", attempt, c.cfg.MaxAttempts, lastErr)
}
