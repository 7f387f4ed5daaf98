package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when the agent cannot be assembled: missing model
	// id, missing provider key, missing collaborator, or an unreachable prompt registry.
	ErrConfiguration = errors.New("agent configuration error")
	// ErrToolDispatch is returned when the model names a tool that is not registered.
	ErrToolDispatch = errors.New("tool dispatch failed")
	// ErrModelCommunication is returned when the chat model cannot be reached after retries.
	ErrModelCommunication = errors.New("model communication failed")
	// ErrMaxStepsExceeded is returned when the loop reaches its step budget without an answer.
	ErrMaxStepsExceeded = errors.New("agent exceeded max steps")
)

// ToolDispatchError names the tool the model asked for.
type ToolDispatchError struct {
	Tool   string
	CallID string
}

func (e *ToolDispatchError) Error() string {
	return fmt.Sprintf("%v: no tool named %q", ErrToolDispatch, e.Tool)
}

func (e *ToolDispatchError) Unwrap() error { return ErrToolDispatch }

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func wrapConfig(err error) error {
	return fmt.Errorf("%w: %w", ErrConfiguration, err)
}
