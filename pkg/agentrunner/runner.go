// Package agentrunner wraps the shared LLMClient interface with
// role-specific prompt construction, output parsing, and retry behavior
// for the four pipeline roles (Generator, Verifier, Reformer, Translator).
package agentrunner

import (
	"context"
	"errors"
	"time"

	"github.com/codeready-toolchain/medqa-orchestrator/internal/retry"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/llmclient"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
)

// callLLM issues prompt through client under policy's retry schedule,
// measuring end-to-end latency across every attempt. Only LLM_TRANSPORT
// and TIMEOUT classifications are retried; any other failure returns
// immediately.
func callLLM(
	ctx context.Context,
	role models.AgentRole,
	client llmclient.Client,
	prompt string,
	opts llmclient.Options,
	policy retry.Policy,
) (llmclient.Output, int64, error) {
	start := time.Now()
	var out llmclient.Output
	err := retry.Do(ctx, policy, func(err error) bool {
		return retry.IsRetryable(classify(role, err))
	}, func(ctx context.Context) error {
		var callErr error
		out, callErr = client.Complete(ctx, prompt, opts)
		return callErr
	})
	latencyMS := time.Since(start).Milliseconds()
	if err != nil {
		return out, latencyMS, classify(role, err)
	}
	return out, latencyMS, nil
}

// classify maps a raw LLMClient/context error to a RunnerError kind.
func classify(role models.AgentRole, err error) *RunnerError {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RunnerError{Kind: ErrTimeout, Role: role, Err: err}
	}
	return &RunnerError{Kind: ErrLLMTransport, Role: role, Err: err}
}

// confidenceFor derives a confidence score when the model didn't
// self-report one: the mean retrieval similarity across sources, or 0.3
// when there is nothing to ground on (spec.md §4.4's Generator rule).
func confidenceFor(ctx models.Context, out llmclient.Output) float64 {
	if out.SelfConfidence != nil {
		c := *out.SelfConfidence
		if c < 0 {
			c = 0
		}
		if c > 1 {
			c = 1
		}
		return c
	}
	if len(ctx.Sources) == 0 {
		return 0.3
	}
	var sum float64
	for _, s := range ctx.Sources {
		sum += s.Similarity
	}
	avg := sum / float64(len(ctx.Sources))
	if avg < 0 {
		avg = 0
	}
	if avg > 1 {
		avg = 1
	}
	return avg
}

func withCallTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
