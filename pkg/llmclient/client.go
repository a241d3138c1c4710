// Package llmclient defines the abstract boundary the orchestrator uses to
// reach a language model. Per spec.md §1 the transport itself is out of
// scope for the core; this package declares the interface, a deterministic
// in-memory stub used by tests and local development, and HTTPClient, a
// generic JSON-over-HTTP adapter.
package llmclient

import "context"

// Options configures a single Complete call.
type Options struct {
	TimeoutMS int64
	MaxTokens int
}

// Output is a single completion result. SelfConfidence is optional — the
// Generator AgentRunner falls back to retrieval-similarity-derived
// confidence when a model does not self-report one (spec.md §4.4).
type Output struct {
	Text           string
	SelfConfidence *float64
}

// Client is the fallible, possibly-slow capability the core treats as an
// external collaborator (spec.md §6.2).
type Client interface {
	Complete(ctx context.Context, prompt string, opts Options) (Output, error)
}
