package agentrunner

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/codeready-toolchain/medqa-orchestrator/internal/retry"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/llmclient"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/prompt"
)

// GeneratorRunner produces an answer grounded in retrieved context.
type GeneratorRunner struct {
	client    llmclient.Client
	builder   *prompt.PromptBuilder
	policy    retry.Policy
	timeout   time.Duration
	maxTokens int
}

// NewGeneratorRunner builds a GeneratorRunner. timeout <= 0 disables the
// per-call deadline.
func NewGeneratorRunner(client llmclient.Client, builder *prompt.PromptBuilder, policy retry.Policy, timeout time.Duration, maxTokens int) *GeneratorRunner {
	return &GeneratorRunner{client: client, builder: builder, policy: policy, timeout: timeout, maxTokens: maxTokens}
}

// GeneratorInput is the input to GeneratorRunner.Run.
type GeneratorInput struct {
	Query            string
	Context          models.Context
	DetectedLanguage models.Language
}

// Run produces the Generator's AgentOutput. If the context is empty the
// output is forced to the canonical uncertainty acknowledgement with
// confidence capped at 0.3, regardless of what the model returned —
// spec.md §4.4 makes this a hard obligation, not a suggestion to the
// model.
func (r *GeneratorRunner) Run(ctx context.Context, in GeneratorInput) (models.AgentOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		err := &RunnerError{Kind: ErrInputInvalid, Role: models.RoleGenerator, Err: errors.New("empty query")}
		return models.AgentOutput{Role: models.RoleGenerator, Err: err}, err
	}

	p := r.builder.BuildGenerator(prompt.Input{
		Query:            in.Query,
		ContextText:      in.Context.Text,
		DetectedLanguage: in.DetectedLanguage,
	})
	opts := llmclient.Options{TimeoutMS: r.timeout.Milliseconds(), MaxTokens: r.maxTokens}

	callCtx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()

	out, latencyMS, err := callLLM(callCtx, models.RoleGenerator, r.client, p, opts, r.policy)
	if err != nil {
		return models.AgentOutput{Role: models.RoleGenerator, LatencyMS: latencyMS, Err: err}, err
	}

	text := strings.TrimSpace(out.Text)
	var confidence float64
	switch {
	case in.Context.Empty():
		text = uncertaintyAcknowledgement(in.DetectedLanguage)
		confidence = confidenceFor(in.Context, out)
		if confidence > 0.3 {
			confidence = 0.3
		}
	case text == "":
		text = uncertaintyAcknowledgement(in.DetectedLanguage)
		confidence = 0.3
	default:
		confidence = confidenceFor(in.Context, out)
		if confidence <= 0.3 {
			confidence = 0.31
		}
	}

	return models.AgentOutput{
		Role:       models.RoleGenerator,
		Text:       text,
		Confidence: confidence,
		LatencyMS:  latencyMS,
	}, nil
}
