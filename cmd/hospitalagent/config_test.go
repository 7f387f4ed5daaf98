package main

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dileep-u-k/hospital-agent/internal/agent"
	"github.com/dileep-u-k/hospital-agent/internal/prompt"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestBuildConfigRequiresModel(t *testing.T) {
	_, err := buildConfig(fileConfig{}, envMap(nil))
	if !errors.Is(err, agent.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
}

func TestBuildConfigDefaults(t *testing.T) {
	cfg, err := buildConfig(fileConfig{}, envMap(map[string]string{
		"HOSPITAL_AGENT_MODEL": "gpt-4o",
		"CHAINS_BASE_URL":      "http://chains:8001",
		"OPENAI_API_KEY":       "sk-test",
	}))
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Model != "gpt-4o" || cfg.Keys.OpenAI != "sk-test" {
		t.Errorf("model/keys = %q/%+v", cfg.Model, cfg.Keys)
	}
	if cfg.ReviewsURL != "http://chains:8001" || cfg.CypherURL != "http://chains:8001" || cfg.WaitTimesURL != "http://chains:8001" {
		t.Errorf("collaborator URLs not defaulted from CHAINS_BASE_URL: %+v", cfg)
	}
	if cfg.MaxSteps != agent.DefaultMaxSteps || cfg.StepTimeout != agent.DefaultStepTimeout {
		t.Errorf("limits = %d/%s", cfg.MaxSteps, cfg.StepTimeout)
	}
	if cfg.PromptRegistry != "builtin" || cfg.PromptID != prompt.DefaultID {
		t.Errorf("prompt = %s %s", cfg.PromptRegistry, cfg.PromptID)
	}
	if cfg.Port != defaultPort || cfg.LogLevel != slog.LevelInfo || !cfg.Verbose {
		t.Errorf("port/log/verbose = %s/%s/%v", cfg.Port, cfg.LogLevel, cfg.Verbose)
	}
	if err := cfg.validateCollaborators(); err != nil {
		t.Errorf("validateCollaborators: %v", err)
	}
}

func TestBuildConfigFileAndEnvPrecedence(t *testing.T) {
	doc := `
model: claude-3-5-sonnet-latest
prompt_registry: file:/etc/prompts
collaborators:
  reviews_url: http://reviews
  cypher_url: http://cypher
  wait_times_url: http://waits
agent:
  max_steps: 8
  step_timeout: 30s
  verbose: false
cache:
  response_ttl: 1h
log_level: debug
`
	var fc fileConfig
	if err := yaml.Unmarshal([]byte(doc), &fc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	cfg, err := buildConfig(fc, envMap(map[string]string{
		"HOSPITAL_AGENT_MODEL": "gpt-4o-mini",
		"AGENT_MAX_STEPS":      "4",
	}))
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("env should override file model, got %s", cfg.Model)
	}
	if cfg.MaxSteps != 4 || cfg.StepTimeout != 30*time.Second || cfg.Verbose {
		t.Errorf("agent options = %d/%s/%v", cfg.MaxSteps, cfg.StepTimeout, cfg.Verbose)
	}
	if cfg.ReviewsURL != "http://reviews" || cfg.WaitTimesURL != "http://waits" {
		t.Errorf("urls = %s %s", cfg.ReviewsURL, cfg.WaitTimesURL)
	}
	if cfg.ResponseCacheTTL != time.Hour || cfg.LogLevel != slog.LevelDebug {
		t.Errorf("ttl/log = %s/%s", cfg.ResponseCacheTTL, cfg.LogLevel)
	}
	if cfg.PromptRegistry != "file:/etc/prompts" {
		t.Errorf("registry = %s", cfg.PromptRegistry)
	}
}

func TestBuildConfigRejectsBadLimits(t *testing.T) {
	for _, env := range []map[string]string{
		{"AGENT_MAX_STEPS": "zero"},
		{"AGENT_MAX_STEPS": "-1"},
		{"AGENT_STEP_TIMEOUT": "soon"},
		{"AGENT_VERBOSE": "maybe"},
		{"LOG_LEVEL": "loud"},
	} {
		env["HOSPITAL_AGENT_MODEL"] = "gpt-4o"
		if _, err := buildConfig(fileConfig{}, envMap(env)); !errors.Is(err, agent.ErrConfiguration) {
			t.Errorf("env %v: error = %v, want ErrConfiguration", env, err)
		}
	}
}

func TestValidateCollaborators(t *testing.T) {
	cfg := &AppConfig{ReviewsURL: "http://r"}
	err := cfg.validateCollaborators()
	if !errors.Is(err, agent.ErrConfiguration) {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(err.Error(), "CYPHER_CHAIN_URL") || !strings.Contains(err.Error(), "WAIT_TIMES_URL") {
		t.Errorf("error should name the missing settings: %v", err)
	}
}

func TestLoadConfigReadsFile(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("HOSPITAL_AGENT_MODEL", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("model: gemini-1.5-pro\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Model != "gemini-1.5-pro" {
		t.Errorf("model = %s", cfg.Model)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, agent.ErrConfiguration) {
		t.Errorf("missing file without model env: error = %v, want ErrConfiguration", err)
	}
}

func TestNewLogger(t *testing.T) {
	var out bytes.Buffer
	logger := newLogger(&out, slog.LevelInfo, true)
	logger.Info("agent step", "tool", "Waits")
	logger.Debug("hidden")

	line := out.String()
	if !strings.Contains(line, "agent step") || !strings.Contains(line, "tool=Waits") {
		t.Errorf("unexpected log output: %s", line)
	}
	if strings.Contains(line, "hidden") {
		t.Error("debug message logged at info level")
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "hospital-agent ") {
		t.Errorf("version output = %q", out.String())
	}
}
