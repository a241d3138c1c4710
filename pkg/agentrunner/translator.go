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

// TranslatorRunner renders a final answer in a target language.
type TranslatorRunner struct {
	client    llmclient.Client
	builder   *prompt.PromptBuilder
	policy    retry.Policy
	timeout   time.Duration
	maxTokens int
}

// NewTranslatorRunner builds a TranslatorRunner.
func NewTranslatorRunner(client llmclient.Client, builder *prompt.PromptBuilder, policy retry.Policy, timeout time.Duration, maxTokens int) *TranslatorRunner {
	return &TranslatorRunner{client: client, builder: builder, policy: policy, timeout: timeout, maxTokens: maxTokens}
}

// TranslatorInput is the input to TranslatorRunner.Run.
type TranslatorInput struct {
	Text           string
	SourceLanguage models.Language
	TargetLanguage models.Language
}

// Run translates Text from SourceLanguage to TargetLanguage. The
// orchestrator only calls this when the two languages differ (spec.md
// §4.4); Run itself returns the text unchanged as a defensive no-op if
// called with matching languages anyway.
func (r *TranslatorRunner) Run(ctx context.Context, in TranslatorInput) (models.AgentOutput, error) {
	if in.SourceLanguage == in.TargetLanguage {
		return models.AgentOutput{Role: models.RoleTranslator, Text: in.Text, Confidence: 1}, nil
	}

	p := r.builder.BuildTranslator(prompt.Input{
		SourceText:     in.Text,
		SourceLanguage: in.SourceLanguage,
		TargetLanguage: in.TargetLanguage,
	})
	opts := llmclient.Options{TimeoutMS: r.timeout.Milliseconds(), MaxTokens: r.maxTokens}

	callCtx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()

	out, latencyMS, err := callLLM(callCtx, models.RoleTranslator, r.client, p, opts, r.policy)
	if err != nil {
		return models.AgentOutput{Role: models.RoleTranslator, LatencyMS: latencyMS, Err: err}, err
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		err := &RunnerError{Kind: ErrOutputParse, Role: models.RoleTranslator, Err: errors.New("empty translation")}
		return models.AgentOutput{Role: models.RoleTranslator, LatencyMS: latencyMS, Err: err}, err
	}

	return models.AgentOutput{
		Role:       models.RoleTranslator,
		Text:       text,
		Confidence: confidenceFor(models.Context{}, out),
		LatencyMS:  latencyMS,
	}, nil
}
