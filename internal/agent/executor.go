package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dileep-u-k/hospital-agent/internal/api"
	"github.com/dileep-u-k/hospital-agent/internal/llm"
	"github.com/dileep-u-k/hospital-agent/internal/prompt"
	"github.com/dileep-u-k/hospital-agent/internal/tools"
)

const (
	DefaultMaxSteps    = 15
	DefaultStepTimeout = 60 * time.Second
)

// State is the position of a run in the control loop.
type State int

const (
	StateAwaitingModelResponse State = iota
	StateDispatchingTool
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAwaitingModelResponse:
		return "awaiting_model_response"
	case StateDispatchingTool:
		return "dispatching_tool"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options bound and tune a run.
type Options struct {
	// MaxSteps caps the number of model calls per run.
	MaxSteps int
	// StepTimeout applies to each model call and each tool call separately.
	StepTimeout time.Duration
	// Verbose logs every step at Info level.
	Verbose bool
}

// Step is one tool dispatch and what came back from it.
type Step struct {
	Tool        string
	ToolInput   string
	CallID      string
	Log         string
	Observation string
	// Err marks a step whose tool failed or could not be dispatched.
	Err bool
}

// InvocationResult is the outcome of one query. On failure it holds the partial trace.
type InvocationResult struct {
	RunID  string
	Input  string
	Output string
	Steps  []Step
	Usage  api.Usage
}

// Executor runs the function-calling loop. It is read-only after construction and
// safe for concurrent Invoke calls.
type Executor struct {
	model  *ChatModel
	tools  *tools.ToolManager
	prompt *prompt.Template
	defs   []tools.Tool
	opts   Options
}

// BuildExecutor wires a chat model, the tool set and the prompt into an executor.
func BuildExecutor(model *ChatModel, tm *tools.ToolManager, tmpl *prompt.Template, opts Options) (*Executor, error) {
	if model == nil {
		return nil, configErr("chat model is nil")
	}
	if tm == nil || tm.ToolCount() == 0 {
		return nil, configErr("no tools registered")
	}
	if tmpl == nil {
		return nil, configErr("prompt template is nil")
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	return &Executor{
		model:  model,
		tools:  tm,
		prompt: tmpl,
		defs:   tm.GetDefinitions(),
		opts:   opts,
	}, nil
}

// ModelID returns the model the executor drives.
func (e *Executor) ModelID() string { return e.model.ModelID() }

// PromptVersion returns the loaded prompt's version.
func (e *Executor) PromptVersion() string { return e.prompt.Version }

// Options returns the effective run options.
func (e *Executor) Options() Options { return e.opts }

// Invoke answers query. The returned result is never nil: when err is set it carries
// every step completed so far, including a failed dispatch.
func (e *Executor) Invoke(ctx context.Context, query string) (*InvocationResult, error) {
	return e.InvokeWithHistory(ctx, query, nil)
}

// InvokeWithHistory is Invoke with earlier conversation turns, used when the prompt
// has a chat-history slot.
func (e *Executor) InvokeWithHistory(ctx context.Context, query string, history []llm.Message) (*InvocationResult, error) {
	run := &InvocationResult{RunID: uuid.NewString(), Input: query}
	logger := slog.With("run_id", run.RunID)
	if e.opts.Verbose {
		logger.Info("agent run started", "model", e.model.ModelID(), "input", query)
	}

	var scratchpad []llm.Message
	state := StateAwaitingModelResponse
	for iteration := 1; iteration <= e.opts.MaxSteps; iteration++ {
		if err := ctx.Err(); err != nil {
			return run, fmt.Errorf("agent run cancelled: %w", err)
		}

		messages := e.prompt.Render(history, query, scratchpad)
		result, err := e.callModel(ctx, messages)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return run, fmt.Errorf("agent run cancelled: %w", ctxErr)
			}
			logger.Error("model call failed", "iteration", iteration, "err", err)
			return run, fmt.Errorf("%w: %w", ErrModelCommunication, err)
		}
		run.Usage.Add(result.Usage)

		if len(result.ToolCalls) == 0 {
			state = StateTerminated
			run.Output = result.Content
			if e.opts.Verbose {
				logger.Info("agent run finished", "state", state, "steps", len(run.Steps), "output", truncate(run.Output))
			}
			return run, nil
		}

		state = StateDispatchingTool
		if dispatchErr := e.checkDispatch(result.ToolCalls); dispatchErr != nil {
			run.Steps = append(run.Steps, Step{
				Tool:        dispatchErr.Tool,
				ToolInput:   argumentsOf(result.ToolCalls, dispatchErr.CallID),
				CallID:      dispatchErr.CallID,
				Log:         actionLog(dispatchErr.Tool, argumentsOf(result.ToolCalls, dispatchErr.CallID), result.Content),
				Observation: dispatchErr.Error(),
				Err:         true,
			})
			logger.Warn("agent run terminated", "state", StateTerminated, "err", dispatchErr)
			return run, dispatchErr
		}

		scratchpad = append(scratchpad, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		})
		for _, call := range result.ToolCalls {
			step := e.dispatch(ctx, call, result.Content)
			if err := ctx.Err(); err != nil {
				run.Steps = append(run.Steps, step)
				return run, fmt.Errorf("agent run cancelled: %w", err)
			}
			if e.opts.Verbose {
				logger.Info("agent step",
					"step", len(run.Steps)+1,
					"tool", step.Tool,
					"tool_input", step.ToolInput,
					"observation", truncate(step.Observation),
					"error", step.Err)
			}
			run.Steps = append(run.Steps, step)
			scratchpad = append(scratchpad, llm.Message{
				Role:       llm.RoleTool,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
				Content:    step.Observation,
			})
		}
		state = StateAwaitingModelResponse
	}

	logger.Warn("agent run terminated", "state", StateTerminated, "err", ErrMaxStepsExceeded, "max_steps", e.opts.MaxSteps)
	return run, fmt.Errorf("%w (%d)", ErrMaxStepsExceeded, e.opts.MaxSteps)
}

func (e *Executor) callModel(ctx context.Context, messages []llm.Message) (*llm.GenerationResult, error) {
	stepCtx, cancel := context.WithTimeout(ctx, e.opts.StepTimeout)
	defer cancel()
	result, err := e.model.generate(stepCtx, messages, e.defs)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New("model returned an empty response")
	}
	return result, nil
}

// checkDispatch rejects the whole response before any handler runs if one of its
// calls names an unregistered tool.
func (e *Executor) checkDispatch(calls []*tools.ToolCall) *ToolDispatchError {
	for _, call := range calls {
		if !e.tools.Has(call.Function.Name) {
			return &ToolDispatchError{Tool: call.Function.Name, CallID: call.ID}
		}
	}
	return nil
}

// dispatch runs one tool. A handler failure becomes an error-flagged observation that
// is fed back to the model.
func (e *Executor) dispatch(ctx context.Context, call *tools.ToolCall, content string) Step {
	step := Step{
		Tool:      call.Function.Name,
		ToolInput: call.Function.Arguments,
		CallID:    call.ID,
		Log:       actionLog(call.Function.Name, call.Function.Arguments, content),
	}
	toolCtx, cancel := context.WithTimeout(ctx, e.opts.StepTimeout)
	defer cancel()

	observation, err := e.tools.Execute(toolCtx, call.Function.Name, call.Function.Arguments)
	if err != nil {
		slog.Warn("tool execution failed", "tool", call.Function.Name, "call_id", call.ID, "err", err)
		step.Observation = fmt.Sprintf("Error executing tool %s: %v", call.Function.Name, err)
		step.Err = true
		return step
	}
	step.Observation = observation
	return step
}

func actionLog(tool, arguments, content string) string {
	log := fmt.Sprintf("\nInvoking: `%s` with `%s`\n", tool, arguments)
	if content != "" {
		log += "\n" + content + "\n"
	}
	return log
}

func argumentsOf(calls []*tools.ToolCall, id string) string {
	for _, c := range calls {
		if c.ID == id {
			return c.Function.Arguments
		}
	}
	return ""
}

func truncate(s string) string {
	const limit = 200
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// APISteps converts a trace to its wire shape.
func APISteps(steps []Step) []api.IntermediateStep {
	out := make([]api.IntermediateStep, 0, len(steps))
	for _, s := range steps {
		out = append(out, api.IntermediateStep{
			Action:      api.Action{Tool: s.Tool, ToolInput: s.ToolInput, Log: s.Log},
			Observation: s.Observation,
			Error:       s.Err,
		})
	}
	return out
}
