package chains

import (
	"context"
	"fmt"

	"github.com/dileep-u-k/hospital-agent/internal/tools"
)

// chainRequest and chainResponse follow the invoke contract shared by both chains:
// the question goes in as "query" and the answer comes back as "result".
type chainRequest struct {
	Query string `json:"query"`
}

type chainResponse struct {
	Query  string `json:"query"`
	Result string `json:"result"`
}

// ReviewChain invokes the semantic search chain over patient reviews.
type ReviewChain struct {
	client *Client
}

var _ tools.ReviewSearcher = (*ReviewChain)(nil)

func NewReviewChain(client *Client) *ReviewChain {
	return &ReviewChain{client: client}
}

func (r *ReviewChain) Invoke(ctx context.Context, question string) (string, error) {
	var resp chainResponse
	if err := r.client.postJSON(ctx, "/reviews/invoke", chainRequest{Query: question}, &resp); err != nil {
		return "", fmt.Errorf("review chain: %w", err)
	}
	return resp.Result, nil
}

// CypherChain invokes the text-to-query chain over the hospital graph.
type CypherChain struct {
	client *Client
}

var _ tools.GraphQuerier = (*CypherChain)(nil)

func NewCypherChain(client *Client) *CypherChain {
	return &CypherChain{client: client}
}

func (c *CypherChain) Invoke(ctx context.Context, question string) (string, error) {
	var resp chainResponse
	if err := c.client.postJSON(ctx, "/cypher/invoke", chainRequest{Query: question}, &resp); err != nil {
		return "", fmt.Errorf("cypher chain: %w", err)
	}
	return resp.Result, nil
}
