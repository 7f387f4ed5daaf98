package tools

import (
	"context"
	"errors"
	"fmt"
)

// GraphQuerier translates a natural-language question into a graph query over the
// patients, physicians, hospitals, payers and visits dataset, and returns the answer.
type GraphQuerier interface {
	Invoke(ctx context.Context, question string) (string, error)
}

// NewGraphTool returns the Graph tool.
func NewGraphTool(catalog *Catalog, graph GraphQuerier) (*FuncTool, error) {
	if graph == nil {
		return nil, errors.New("graph tool requires a graph querier")
	}
	entry, err := catalog.Entry(NameGraph)
	if err != nil {
		return nil, err
	}
	return NewFuncTool(entry, func(ctx context.Context, question string) (string, error) {
		if question == "" {
			return "", fmt.Errorf("%w: a question is required", ErrEmptyInput)
		}
		answer, err := graph.Invoke(ctx, question)
		if err != nil {
			return "", fmt.Errorf("graph query failed: %w", err)
		}
		return answer, nil
	}), nil
}
