package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dileep-u-k/hospital-agent/internal/agent"
	"github.com/dileep-u-k/hospital-agent/internal/cache"
	"github.com/dileep-u-k/hospital-agent/internal/chains"
	"github.com/dileep-u-k/hospital-agent/internal/llm"
	"github.com/dileep-u-k/hospital-agent/internal/prompt"
	"github.com/dileep-u-k/hospital-agent/internal/tools"
	cacheversion "github.com/dileep-u-k/hospital-agent/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var noColor bool

	rootCmd := &cobra.Command{
		Use:           "hospital-agent",
		Short:         "Hospital system agent that answers questions with reviews, graph queries and wait times",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the optional YAML config file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored log output")

	loadConfig := func() (*AppConfig, error) {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		slog.SetDefault(newLogger(os.Stderr, cfg.LogLevel, noColor))
		return cfg, nil
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and print the answer with its intermediate steps",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runAsk(cmd.Context(), cfg, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), GetBuildInfo())
		},
	}

	rootCmd.AddCommand(serveCmd, askCmd, versionCmd)
	return rootCmd
}

// app is everything the commands need, built once from configuration.
type app struct {
	executor  *agent.Executor
	rawClient llm.LLMClient
	rdb       *redis.Client
	profiler  *llm.Profiler
	cache     cache.Cache
	versions  cacheversion.Components
}

func (a *app) Close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	if c, ok := a.rawClient.(io.Closer); ok {
		c.Close()
	}
}

// buildApp is the composition root: it connects the collaborators, assembles the
// tools, the chat model and the prompt, and returns the ready executor.
func buildApp(ctx context.Context, cfg *AppConfig) (_ *app, err error) {
	if err := cfg.validateCollaborators(); err != nil {
		return nil, err
	}
	a := &app{cache: cache.Noop{}}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable, caching and model profiling disabled", "addr", cfg.RedisAddr, "err", err)
			rdb.Close()
		} else {
			a.rdb = rdb
			a.cache = cache.NewRedisCache(rdb)
			a.profiler = llm.NewProfiler(rdb)
		}
	}

	reviewsClient, err := chains.NewClient(cfg.ReviewsURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", agent.ErrConfiguration, err)
	}
	cypherClient, err := chains.NewClient(cfg.CypherURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", agent.ErrConfiguration, err)
	}
	waitsClient, err := chains.NewClient(cfg.WaitTimesURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", agent.ErrConfiguration, err)
	}

	catalog := tools.DefaultCatalog()
	toolManager, err := agent.BuildTools(catalog, agent.ToolDeps{
		Reviews:   chains.NewReviewChain(reviewsClient),
		Graph:     chains.NewCypherChain(cypherClient),
		WaitTimes: chains.NewWaitTimes(waitsClient, a.cache, cfg.WaitCacheTTL),
	})
	if err != nil {
		return nil, err
	}
	slog.Info("tool manager initialized", "tools", toolManager.Names(), "catalog_version", catalog.Version)

	if a.rawClient, err = llm.NewClientForModel(ctx, cfg.Model, cfg.Keys); err != nil {
		return nil, fmt.Errorf("%w: %w", agent.ErrConfiguration, err)
	}
	clientOpts := []agent.ClientOption{
		agent.WithClientFactory(func(context.Context, string, llm.APIKeys) (llm.LLMClient, error) {
			return a.rawClient, nil
		}),
	}
	if a.profiler != nil {
		clientOpts = append(clientOpts, agent.WithProfileRecorder(a.profiler))
	}
	model, err := agent.BuildClient(ctx, cfg.Model, cfg.Keys, clientOpts...)
	if err != nil {
		return nil, err
	}

	registry, err := prompt.NewRegistry(cfg.PromptRegistry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", agent.ErrConfiguration, err)
	}
	tmpl, err := agent.LoadPrompt(ctx, registry, cfg.PromptID)
	if err != nil {
		return nil, err
	}

	a.executor, err = agent.BuildExecutor(model, toolManager, tmpl, agent.Options{
		MaxSteps:    cfg.MaxSteps,
		StepTimeout: cfg.StepTimeout,
		Verbose:     cfg.Verbose,
	})
	if err != nil {
		return nil, err
	}
	a.versions = cacheversion.Components{
		Tools:  catalog.Version,
		Prompt: tmpl.ID + "@" + tmpl.Version,
		Model:  cfg.Model,
	}
	slog.Info("agent assembled", "model", cfg.Model, "prompt", tmpl.ID, "max_steps", cfg.MaxSteps, "step_timeout", cfg.StepTimeout)
	return a, nil
}

func runServe(ctx context.Context, cfg *AppConfig) error {
	buildInfo := GetBuildInfo()
	slog.Info("starting hospital agent", "version", buildInfo.Version, "commit", buildInfo.GitCommit)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.profiler != nil {
		go startHealthChecker(ctx, cfg.Model, a.rawClient, a.profiler, cfg.HealthCheckInterval)
	}

	gin.SetMode(os.Getenv("GIN_MODE"))
	handler := NewAgentHandler(a.executor, a.cache, a.versions, cfg.ResponseCacheTTL)
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: newRouter(handler)}
	return runServerWithGracefulShutdown(ctx, srv)
}

func runAsk(ctx context.Context, cfg *AppConfig, question string, out io.Writer) error {
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result, invokeErr := a.executor.Invoke(ctx, question)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"run_id":             result.RunID,
		"input":              result.Input,
		"output":             result.Output,
		"intermediate_steps": agent.APISteps(result.Steps),
		"usage":              result.Usage,
	}); err != nil {
		return err
	}
	return invokeErr
}

// startHealthChecker periodically probes the model and records the result in its profile.
func startHealthChecker(ctx context.Context, modelID string, client llm.LLMClient, profiler *llm.Profiler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("health checker started", "model", modelID, "interval", interval)

	runCheck := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		config := &llm.GenerationConfig{Model: modelID, MaxTokens: 5}
		probe := []llm.Message{{Role: llm.RoleUser, Content: "Reply with OK."}}
		_, err := client.Generate(probeCtx, probe, config, nil)
		if ctx.Err() != nil {
			return
		}
		profiler.RecordHealthCheck(context.WithoutCancel(ctx), modelID, err == nil)
		slog.Info("model health check", "model", modelID, "healthy", err == nil)
	}

	runCheck()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCheck()
		}
	}
}

// runServerWithGracefulShutdown serves until ctx is cancelled, then drains connections.
func runServerWithGracefulShutdown(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("hospital agent listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	slog.Info("server exited gracefully")
	return nil
}
