package llmclient

import (
	"context"
	"fmt"
	"sync"
)

// StubClient is a deterministic in-memory Client for tests: each call is
// resolved from a caller-supplied function, with optional scripted
// transient failures before success (grounding AgentRunner's retry tests,
// spec.md S6).
type StubClient struct {
	mu       sync.Mutex
	handler  func(ctx context.Context, prompt string, opts Options) (Output, error)
	failures int // remaining scripted ErrTransport failures before handler runs
	calls    []string
}

// NewStubClient builds a StubClient that always delegates to handler.
func NewStubClient(handler func(ctx context.Context, prompt string, opts Options) (Output, error)) *StubClient {
	return &StubClient{handler: handler}
}

// FailNextCalls makes the next n calls to Complete return ErrTransport
// before the handler is consulted, then resumes normal behavior.
func (s *StubClient) FailNextCalls(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

// Calls returns every prompt seen so far, in order.
func (s *StubClient) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *StubClient) Complete(ctx context.Context, prompt string, opts Options) (Output, error) {
	s.mu.Lock()
	s.calls = append(s.calls, prompt)
	shouldFail := s.failures > 0
	if shouldFail {
		s.failures--
	}
	s.mu.Unlock()

	if shouldFail {
		return Output{}, fmt.Errorf("stub transient failure: %w", ErrTransport)
	}

	select {
	case <-ctx.Done():
		return Output{}, ctx.Err()
	default:
	}

	return s.handler(ctx, prompt, opts)
}
