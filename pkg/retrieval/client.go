// Package retrieval defines the abstract boundary to the document
// retrieval subsystem (embeddings, vector search, chunking) — all deemed
// out of scope for the core per spec.md §1.
package retrieval

import (
	"context"

	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
)

// Client retrieves grounding context for a query. It may return an empty
// Context (spec.md §3) and is treated as fallible by the orchestrator,
// which downgrades failures to the empty-context path (spec.md §4.7).
type Client interface {
	Retrieve(ctx context.Context, queryText string) (models.Context, error)
}

// StubClient is a deterministic in-memory Client for tests.
type StubClient struct {
	handler func(ctx context.Context, queryText string) (models.Context, error)
}

// NewStubClient builds a StubClient delegating to handler.
func NewStubClient(handler func(ctx context.Context, queryText string) (models.Context, error)) *StubClient {
	return &StubClient{handler: handler}
}

func (s *StubClient) Retrieve(ctx context.Context, queryText string) (models.Context, error) {
	return s.handler(ctx, queryText)
}
