package agentrunner

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/codeready-toolchain/medqa-orchestrator/internal/retry"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/llmclient"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/prompt"
)

var (
	voteLineRe       = regexp.MustCompile(`(?im)^\s*VOTE:\s*(YES|NO)\b`)
	confidenceLineRe = regexp.MustCompile(`(?im)^\s*CONFIDENCE:\s*([0-9]*\.?[0-9]+)`)
)

// VerifierRunner judges a Generator/Reformer draft against its context.
type VerifierRunner struct {
	client    llmclient.Client
	builder   *prompt.PromptBuilder
	policy    retry.Policy
	timeout   time.Duration
	maxTokens int
}

// NewVerifierRunner builds a VerifierRunner.
func NewVerifierRunner(client llmclient.Client, builder *prompt.PromptBuilder, policy retry.Policy, timeout time.Duration, maxTokens int) *VerifierRunner {
	return &VerifierRunner{client: client, builder: builder, policy: policy, timeout: timeout, maxTokens: maxTokens}
}

// VerifierInput is the input to VerifierRunner.Run.
type VerifierInput struct {
	Query         string
	Context       models.Context
	GeneratorText string
}

// Run produces the Verifier's AgentOutput. A transport/timeout failure
// after exhausting retries is returned as an error (the orchestrator
// treats that as an UNKNOWN vote per spec.md §4.7); a malformed or
// missing vote in an otherwise successful response is not an error — it
// maps to VoteUnknown with confidence 0, per spec.md §4.4's strict
// parsing rule.
func (r *VerifierRunner) Run(ctx context.Context, in VerifierInput) (models.AgentOutput, error) {
	p := r.builder.BuildVerifier(prompt.Input{
		Query:         in.Query,
		ContextText:   in.Context.Text,
		GeneratorText: in.GeneratorText,
	})
	opts := llmclient.Options{TimeoutMS: r.timeout.Milliseconds(), MaxTokens: r.maxTokens}

	callCtx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()

	out, latencyMS, err := callLLM(callCtx, models.RoleVerifier, r.client, p, opts, r.policy)
	if err != nil {
		return models.AgentOutput{Role: models.RoleVerifier, Vote: models.VoteUnknown, LatencyMS: latencyMS, Err: err}, err
	}

	vote, confidence, analysis := parseVerifierOutput(out.Text)
	return models.AgentOutput{
		Role:       models.RoleVerifier,
		Vote:       vote,
		Confidence: confidence,
		Analysis:   analysis,
		LatencyMS:  latencyMS,
	}, nil
}

func parseVerifierOutput(text string) (vote models.Vote, confidence float64, analysis string) {
	analysis = extractAnalysis(text)

	voteMatch := voteLineRe.FindStringSubmatch(text)
	if voteMatch == nil {
		return models.VoteUnknown, 0, analysis
	}

	confMatch := confidenceLineRe.FindStringSubmatch(text)
	if confMatch == nil {
		return models.VoteUnknown, 0, analysis
	}
	c, err := strconv.ParseFloat(confMatch[1], 64)
	if err != nil || c < 0 || c > 1 {
		return models.VoteUnknown, 0, analysis
	}

	return models.Vote(strings.ToUpper(voteMatch[1])), c, analysis
}

// extractAnalysis returns every non-empty line that isn't the VOTE: or
// CONFIDENCE: marker, joined into a single short rationale string.
func extractAnalysis(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if voteLineRe.MatchString(line) || confidenceLineRe.MatchString(line) {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, " ")
}
