package agentrunner

import (
	"context"
	"strings"
	"time"

	"github.com/codeready-toolchain/medqa-orchestrator/internal/retry"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/llmclient"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/prompt"
)

// ReformerRunner rewrites a draft that failed verification.
type ReformerRunner struct {
	client    llmclient.Client
	builder   *prompt.PromptBuilder
	policy    retry.Policy
	timeout   time.Duration
	maxTokens int
}

// NewReformerRunner builds a ReformerRunner.
func NewReformerRunner(client llmclient.Client, builder *prompt.PromptBuilder, policy retry.Policy, timeout time.Duration, maxTokens int) *ReformerRunner {
	return &ReformerRunner{client: client, builder: builder, policy: policy, timeout: timeout, maxTokens: maxTokens}
}

// ReformerInput is the input to ReformerRunner.Run.
type ReformerInput struct {
	Query            string
	Context          models.Context
	GeneratorText    string
	VerifierAnalysis string
	DetectedLanguage models.Language
}

// Run produces the Reformer's AgentOutput. On failure the caller (the
// orchestrator) keeps the previous draft as the best-known answer per
// spec.md §4.7's Reformer failure semantics.
func (r *ReformerRunner) Run(ctx context.Context, in ReformerInput) (models.AgentOutput, error) {
	p := r.builder.BuildReformer(prompt.Input{
		Query:            in.Query,
		ContextText:      in.Context.Text,
		GeneratorText:    in.GeneratorText,
		VerifierAnalysis: in.VerifierAnalysis,
		DetectedLanguage: in.DetectedLanguage,
	})
	opts := llmclient.Options{TimeoutMS: r.timeout.Milliseconds(), MaxTokens: r.maxTokens}

	callCtx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()

	out, latencyMS, err := callLLM(callCtx, models.RoleReformer, r.client, p, opts, r.policy)
	if err != nil {
		return models.AgentOutput{Role: models.RoleReformer, LatencyMS: latencyMS, Err: err}, err
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		text = in.GeneratorText
	}

	return models.AgentOutput{
		Role:       models.RoleReformer,
		Text:       text,
		Confidence: confidenceFor(in.Context, out),
		LatencyMS:  latencyMS,
	}, nil
}
