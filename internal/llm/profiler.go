package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dileep-u-k/hospital-agent/internal/api"
	"github.com/dileep-u-k/hospital-agent/internal/tools"
)

// Model status values stored in a profile.
const (
	StatusOnline   = "online"
	StatusDegraded = "degraded"
	StatusOffline  = "offline"
)

// ModelProfile tracks reliability and latency for the model the agent drives.
type ModelProfile struct {
	ModelID           string    `json:"model_id" redis:"model_id"`
	AvgLatencyMS      int64     `json:"avg_latency_ms" redis:"avg_latency_ms"`
	Status            string    `json:"status" redis:"status"`
	ErrorRate         float64   `json:"error_rate" redis:"error_rate"`
	TotalSuccesses    int64     `json:"total_successes" redis:"total_successes"`
	TotalFailures     int64     `json:"total_failures" redis:"total_failures"`
	TotalInputTokens  int64     `json:"total_input_tokens" redis:"total_input_tokens"`
	TotalOutputTokens int64     `json:"total_output_tokens" redis:"total_output_tokens"`
	LastHealthCheck   time.Time `json:"last_health_check" redis:"last_health_check"`
}

// ProfileRecorder receives the outcome of every model call.
type ProfileRecorder interface {
	RecordSuccess(ctx context.Context, modelID string, latency time.Duration, usage api.Usage)
	RecordFailure(ctx context.Context, modelID string)
}

// Profiler keeps one Redis hash per model under "profile:<model>".
type Profiler struct {
	rdb *redis.Client
}

var _ ProfileRecorder = (*Profiler)(nil)

func NewProfiler(rdb *redis.Client) *Profiler {
	return &Profiler{rdb: rdb}
}

func profileKey(modelID string) string {
	return fmt.Sprintf("profile:%s", modelID)
}

// GetProfile retrieves a model's profile, creating a default one if it doesn't exist.
func (p *Profiler) GetProfile(ctx context.Context, modelID string) (*ModelProfile, error) {
	key := profileKey(modelID)
	data, err := p.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return p.createDefaultProfile(ctx, modelID)
	}

	profile := &ModelProfile{ModelID: modelID, Status: data["status"]}
	profile.AvgLatencyMS, _ = strconv.ParseInt(data["avg_latency_ms"], 10, 64)
	profile.ErrorRate, _ = strconv.ParseFloat(data["error_rate"], 64)
	profile.TotalSuccesses, _ = strconv.ParseInt(data["total_successes"], 10, 64)
	profile.TotalFailures, _ = strconv.ParseInt(data["total_failures"], 10, 64)
	profile.TotalInputTokens, _ = strconv.ParseInt(data["total_input_tokens"], 10, 64)
	profile.TotalOutputTokens, _ = strconv.ParseInt(data["total_output_tokens"], 10, 64)
	profile.LastHealthCheck, _ = time.Parse(time.RFC3339Nano, data["last_health_check"])
	return profile, nil
}

func (p *Profiler) createDefaultProfile(ctx context.Context, modelID string) (*ModelProfile, error) {
	profile := &ModelProfile{
		ModelID:         modelID,
		AvgLatencyMS:    2000,
		Status:          StatusOnline,
		LastHealthCheck: time.Now(),
	}
	key := profileKey(modelID)
	_, err := p.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"model_id", profile.ModelID,
			"avg_latency_ms", profile.AvgLatencyMS,
			"status", profile.Status,
			"total_successes", 0,
			"total_failures", 0,
			"error_rate", 0.0,
			"last_health_check", profile.LastHealthCheck.Format(time.RFC3339Nano),
		)
		return nil
	})
	if err == nil {
		slog.Debug("created model profile", "model", modelID)
	}
	return profile, err
}

// RecordSuccess folds the call latency into an exponential moving average and bumps
// the success and token counters.
func (p *Profiler) RecordSuccess(ctx context.Context, modelID string, latency time.Duration, usage api.Usage) {
	key := profileKey(modelID)
	const alpha = 0.1

	err := p.rdb.Watch(ctx, func(tx *redis.Tx) error {
		currentStr, err := tx.HGet(ctx, key, "avg_latency_ms").Result()
		if err != nil && err != redis.Nil {
			return err
		}
		current, parseErr := strconv.ParseInt(currentStr, 10, 64)
		if parseErr != nil {
			current = latency.Milliseconds()
		}
		next := int64(alpha*float64(latency.Milliseconds()) + (1.0-alpha)*float64(current))
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "avg_latency_ms", next)
			return nil
		})
		return err
	}, key)
	if err != nil {
		slog.Warn("failed to update model latency", "model", modelID, "err", err)
	}

	pipe := p.rdb.Pipeline()
	successes := pipe.HIncrBy(ctx, key, "total_successes", 1)
	failures := pipe.HGet(ctx, key, "total_failures")
	pipe.HIncrBy(ctx, key, "total_input_tokens", int64(usage.PromptTokens))
	pipe.HIncrBy(ctx, key, "total_output_tokens", int64(usage.CompletionTokens))
	pipe.HSet(ctx, key, "status", StatusOnline)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		slog.Warn("failed to record model success", "model", modelID, "err", err)
		return
	}
	totalFailures, _ := strconv.ParseInt(failures.Val(), 10, 64)
	p.setErrorRate(ctx, key, totalFailures, successes.Val()+totalFailures)
}

// RecordFailure bumps the failure counter and marks the model degraded.
func (p *Profiler) RecordFailure(ctx context.Context, modelID string) {
	key := profileKey(modelID)
	pipe := p.rdb.Pipeline()
	failures := pipe.HIncrBy(ctx, key, "total_failures", 1)
	successes := pipe.HGet(ctx, key, "total_successes")
	pipe.HSet(ctx, key, "status", StatusDegraded)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		slog.Warn("failed to record model failure", "model", modelID, "err", err)
		return
	}
	totalSuccesses, _ := strconv.ParseInt(successes.Val(), 10, 64)
	p.setErrorRate(ctx, key, failures.Val(), totalSuccesses+failures.Val())
}

func (p *Profiler) setErrorRate(ctx context.Context, key string, failures, total int64) {
	if total <= 0 {
		return
	}
	if err := p.rdb.HSet(ctx, key, "error_rate", float64(failures)/float64(total)).Err(); err != nil {
		slog.Warn("failed to update error rate", "key", key, "err", err)
	}
}

// RecordHealthCheck stores the result of a proactive probe. It makes sure a full
// profile exists first so the probe never leaves a partial hash behind.
func (p *Profiler) RecordHealthCheck(ctx context.Context, modelID string, healthy bool) {
	if _, err := p.GetProfile(ctx, modelID); err != nil {
		slog.Warn("failed to load profile during health check", "model", modelID, "err", err)
	}
	status := StatusOffline
	if healthy {
		status = StatusOnline
	}
	err := p.rdb.HSet(ctx, profileKey(modelID),
		"status", status,
		"last_health_check", time.Now().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		slog.Warn("failed to record health check", "model", modelID, "err", err)
	}
}

// ProfiledClient reports every call of the wrapped client to a ProfileRecorder.
type ProfiledClient struct {
	next     LLMClient
	recorder ProfileRecorder
}

var _ LLMClient = (*ProfiledClient)(nil)

func NewProfiledClient(next LLMClient, recorder ProfileRecorder) *ProfiledClient {
	return &ProfiledClient{next: next, recorder: recorder}
}

func (c *ProfiledClient) Generate(
	ctx context.Context,
	messages []Message,
	config *GenerationConfig,
	availableTools []tools.Tool,
) (*GenerationResult, error) {
	start := time.Now()
	result, err := c.next.Generate(ctx, messages, config, availableTools)
	// Recording must not inherit a cancelled request context.
	recordCtx := context.WithoutCancel(ctx)
	if err != nil {
		c.recorder.RecordFailure(recordCtx, config.Model)
		return nil, err
	}
	c.recorder.RecordSuccess(recordCtx, config.Model, time.Since(start), result.Usage)
	return result, nil
}
