// Package prompt resolves agent prompt templates by identifier and renders them into
// the message list sent to the chat model.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dileep-u-k/hospital-agent/internal/llm"
)

// DefaultID is the function-calling agent layout the hospital agent uses.
const DefaultID = "hwchase17/openai-functions-agent"

var (
	// ErrInvalidID is returned for identifiers not shaped "<owner>/<name>".
	ErrInvalidID = errors.New("invalid prompt id")
	// ErrNotFound is returned when a registry has no template for an identifier.
	ErrNotFound = errors.New("prompt not found")
)

// Template is a function-calling agent prompt: a system message, an optional slot for
// chat history, the human input, and the agent scratchpad.
type Template struct {
	ID           string `yaml:"id" json:"id"`
	Version      string `yaml:"version" json:"version"`
	System       string `yaml:"system" json:"system"`
	TakesHistory bool   `yaml:"takes_history" json:"takes_history"`
}

func (t *Template) validate() error {
	if _, _, err := SplitID(t.ID); err != nil {
		return err
	}
	if strings.TrimSpace(t.System) == "" {
		return fmt.Errorf("prompt %s: system message is empty", t.ID)
	}
	if t.Version == "" {
		t.Version = "1"
	}
	return nil
}

// Render lays out the conversation for one model call. History is dropped when the
// template has no slot for it. The scratchpad holds the assistant tool-call messages
// and tool observations from earlier steps of the same run.
func (t *Template) Render(history []llm.Message, input string, scratchpad []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, 2+len(history)+len(scratchpad))
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: t.System})
	if t.TakesHistory {
		out = append(out, history...)
	}
	out = append(out, llm.Message{Role: llm.RoleUser, Content: input})
	return append(out, scratchpad...)
}

// SplitID splits "<owner>/<name>".
func SplitID(id string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(id, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") ||
		strings.Contains(id, "..") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return owner, name, nil
}
