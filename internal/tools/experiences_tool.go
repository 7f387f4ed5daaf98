package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ReviewSearcher answers qualitative questions by semantic search over patient reviews.
type ReviewSearcher interface {
	Invoke(ctx context.Context, question string) (string, error)
}

// ExperiencesAnswer is the observation returned by the Experiences tool.
type ExperiencesAnswer struct {
	Question string `json:"question"`
	Response string `json:"response"`
}

// NewExperiencesTool returns the Experiences tool. The whole user question is passed to
// the review chain unchanged.
func NewExperiencesTool(catalog *Catalog, reviews ReviewSearcher) (*FuncTool, error) {
	if reviews == nil {
		return nil, errors.New("experiences tool requires a review searcher")
	}
	entry, err := catalog.Entry(NameExperiences)
	if err != nil {
		return nil, err
	}
	return NewFuncTool(entry, func(ctx context.Context, question string) (string, error) {
		if question == "" {
			return "", fmt.Errorf("%w: a question is required", ErrEmptyInput)
		}
		response, err := reviews.Invoke(ctx, question)
		if err != nil {
			return "", fmt.Errorf("review search failed: %w", err)
		}
		out, err := json.Marshal(ExperiencesAnswer{Question: question, Response: response})
		if err != nil {
			return "", err
		}
		return string(out), nil
	}), nil
}
