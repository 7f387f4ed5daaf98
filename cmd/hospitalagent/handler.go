package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dileep-u-k/hospital-agent/internal/agent"
	"github.com/dileep-u-k/hospital-agent/internal/api"
	"github.com/dileep-u-k/hospital-agent/internal/cache"
	"github.com/dileep-u-k/hospital-agent/internal/tools"
	cacheversion "github.com/dileep-u-k/hospital-agent/internal/version"
)

const responseCachePrefix = "agentcache"

// AgentHandler serves the hospital agent over HTTP.
type AgentHandler struct {
	executor *agent.Executor
	cache    cache.Cache
	versions cacheversion.Components
	ttl      time.Duration
}

func NewAgentHandler(executor *agent.Executor, c cache.Cache, versions cacheversion.Components, ttl time.Duration) *AgentHandler {
	if c == nil {
		c = cache.Noop{}
	}
	return &AgentHandler{executor: executor, cache: c, versions: versions, ttl: ttl}
}

func newRouter(h *AgentHandler) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	engine.GET("/", h.HandleStatus)
	engine.POST("/hospital-rag-agent", h.HandleQuery)
	return engine
}

func (h *AgentHandler) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "running"})
}

func (h *AgentHandler) HandleQuery(c *gin.Context) {
	startTime := time.Now()
	var req api.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}
	query := strings.TrimSpace(req.Text)
	if query == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request: text must not be empty"})
		return
	}

	ctx := c.Request.Context()
	cacheKey := cacheversion.GenerateVersionedCacheKey(responseCachePrefix, query, h.versions)
	if cachedVal, found := h.cache.Get(ctx, cacheKey); found {
		var cachedResp api.QueryResponse
		if json.Unmarshal([]byte(cachedVal), &cachedResp) == nil {
			slog.Debug("agent response cache hit", "key", cacheKey)
			cachedResp.RunID = uuid.NewString()
			cachedResp.LatencyMS = time.Since(startTime).Milliseconds()
			cachedResp.CacheStatus = "HIT"
			c.JSON(http.StatusOK, cachedResp)
			return
		}
	}

	result, err := h.executor.Invoke(ctx, query)
	if err != nil {
		status := statusForError(err)
		slog.Error("agent invocation failed", "run_id", result.RunID, "status", status, "err", err)
		c.JSON(status, api.ErrorResponse{
			Error:             err.Error(),
			RunID:             result.RunID,
			IntermediateSteps: agent.APISteps(result.Steps),
		})
		return
	}

	resp := api.QueryResponse{
		RunID:             result.RunID,
		Input:             result.Input,
		Output:            result.Output,
		IntermediateSteps: agent.APISteps(result.Steps),
		Model:             h.executor.ModelID(),
		Usage:             result.Usage,
		LatencyMS:         time.Since(startTime).Milliseconds(),
		CacheStatus:       "MISS",
	}
	if readsLiveData(result.Steps) {
		slog.Debug("response not cached, it depends on current wait times", "run_id", result.RunID)
	} else if respBytes, err := json.Marshal(resp); err != nil {
		slog.Warn("failed to marshal response for caching", "err", err)
	} else {
		h.cache.Set(ctx, cacheKey, string(respBytes), h.ttl)
	}
	c.JSON(http.StatusOK, resp)
}

// readsLiveData reports whether a run consulted current wait times.
func readsLiveData(steps []agent.Step) bool {
	for _, s := range steps {
		if s.Tool == tools.NameWaits || s.Tool == tools.NameAvailability {
			return true
		}
	}
	return false
}

// statusForError maps agent failures onto HTTP statuses. Dispatch and step-budget
// faults are the model misbehaving on this input; model communication faults are an
// upstream failure.
func statusForError(err error) int {
	switch {
	case errors.Is(err, agent.ErrToolDispatch), errors.Is(err, agent.ErrMaxStepsExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, agent.ErrModelCommunication):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start))
	}
}
