package orchestrator

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/medqa-orchestrator/internal/retry"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/agentrunner"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/audit"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/cache"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/database/testsupport"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/humanloop"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/lang"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/llmclient"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/prompt"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/retrieval"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/safety"
)

func noJitterPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, Multiplier: 2, Jitter: 0}
}

// routedClient dispatches each Complete call by sniffing which role's
// template produced the prompt, so a single stub backs all four runners.
func routedClient(vote func(iteration int) (string, float64), answer, reformed string) *llmclient.StubClient {
	iteration := 0
	return llmclient.NewStubClient(func(_ context.Context, p string, _ llmclient.Options) (llmclient.Output, error) {
		switch {
		case strings.Contains(p, "strict verifier"):
			iteration++
			v, conf := vote(iteration)
			return llmclient.Output{Text: "VOTE: " + v + "\nCONFIDENCE: " + strconv.FormatFloat(conf, 'f', 2, 64) + "\nanalysis"}, nil
		case strings.Contains(p, "improving a medical answer"):
			return llmclient.Output{Text: reformed}, nil
		case strings.Contains(p, "Translate the following"):
			return llmclient.Output{Text: "[translated] " + answer}, nil
		default:
			return llmclient.Output{Text: answer}, nil
		}
	})
}

func newTestOrchestrator(t *testing.T, client llmclient.Client, cfg Config) *Orchestrator {
	t.Helper()
	dbClient := testsupport.NewTestClient(t)

	builder := prompt.NewPromptBuilder()
	policy := noJitterPolicy()

	generator := agentrunner.NewGeneratorRunner(client, builder, policy, time.Second, 256)
	verifier := agentrunner.NewVerifierRunner(client, builder, policy, time.Second, 256)
	reformer := agentrunner.NewReformerRunner(client, builder, policy, time.Second, 256)
	translator := agentrunner.NewTranslatorRunner(client, builder, policy, time.Second, 256)

	respCache := cache.NewResponseCache(time.Minute)
	detector := lang.NewDetector()
	classifier := safety.NewClassifier()
	retrievalClient := retrieval.NewStubClient(func(_ context.Context, _ string) (models.Context, error) {
		return models.Context{Text: "Paracetamol is metabolized by the liver.", Sources: []models.Source{{DocID: "d1", Similarity: 0.9}}}, nil
	})

	humanLoopMgr := humanloop.NewManager(dbClient.Client, time.Second)
	auditSink := audit.NewSink(dbClient.Client)

	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 3
		cfg.VerifierApproveThreshold = 0.7
		cfg.VerifierRejectThreshold = 0.3
	}

	return New(cfg, respCache, detector, classifier, retrievalClient, generator, verifier, reformer, translator, humanLoopMgr, auditSink)
}

func TestProcessQuery_ApprovesOnFirstPass(t *testing.T) {
	client := routedClient(func(int) (string, float64) { return "YES", 0.9 }, "Paracetamol dosing depends on weight.", "")
	orch := newTestOrchestrator(t, client, Config{})

	resp, err := orch.ProcessQuery(context.Background(), models.Query{Text: "What is the dosage of paracetamol?"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, models.ConsensusApproved, resp.Consensus)
	assert.Equal(t, 1, resp.IterationsUsed)
	assert.Equal(t, models.LangEN, resp.DetectedLanguage)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "d1", resp.Sources[0].DocID)
}

func TestProcessQuery_ReformsThenApproves(t *testing.T) {
	client := routedClient(func(iteration int) (string, float64) {
		if iteration == 1 {
			return "NO", 0.2
		}
		return "YES", 0.85
	}, "incomplete draft", "Paracetamol dosing: 500mg every 6 hours, max 4g/day.")
	orch := newTestOrchestrator(t, client, Config{})

	resp, err := orch.ProcessQuery(context.Background(), models.Query{Text: "What is the dosage of paracetamol?"})
	require.NoError(t, err)
	assert.Equal(t, models.ConsensusReformedApproved, resp.Consensus)
	assert.Equal(t, 2, resp.IterationsUsed)
	assert.Contains(t, resp.Answer, "500mg")
}

func TestProcessQuery_FallsBackAtMaxIterations(t *testing.T) {
	client := routedClient(func(int) (string, float64) { return "NO", 0.1 }, "draft", "still not good enough")
	cfg := Config{MaxIterations: 2, VerifierApproveThreshold: 0.7, VerifierRejectThreshold: 0.3}
	orch := newTestOrchestrator(t, client, cfg)

	resp, err := orch.ProcessQuery(context.Background(), models.Query{Text: "What is the dosage of paracetamol?"})
	require.NoError(t, err)
	assert.Equal(t, models.ConsensusFallback, resp.Consensus)
	assert.LessOrEqual(t, resp.IterationsUsed, cfg.MaxIterations)
	assert.Contains(t, resp.Answer, "cannot safely answer")
}

func TestProcessQuery_EmptyTextIsInputInvalid(t *testing.T) {
	client := routedClient(func(int) (string, float64) { return "YES", 0.9 }, "answer", "")
	orch := newTestOrchestrator(t, client, Config{})

	_, err := orch.ProcessQuery(context.Background(), models.Query{Text: "   "})
	require.Error(t, err)
	var oerr *Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, ErrInputInvalid, oerr.Kind)
}

func TestProcessQuery_CacheHitSkipsPipeline(t *testing.T) {
	calls := 0
	client := llmclient.NewStubClient(func(_ context.Context, p string, _ llmclient.Options) (llmclient.Output, error) {
		calls++
		if strings.Contains(p, "strict verifier") {
			return llmclient.Output{Text: "VOTE: YES\nCONFIDENCE: 0.9\nok"}, nil
		}
		return llmclient.Output{Text: "Paracetamol dosing depends on weight."}, nil
	})
	orch := newTestOrchestrator(t, client, Config{})

	q := models.Query{Text: "What is the dosage of paracetamol?"}
	first, err := orch.ProcessQuery(context.Background(), q)
	require.NoError(t, err)

	callsAfterFirst := calls
	second, err := orch.ProcessQuery(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, callsAfterFirst, calls, "cache hit must not invoke the LLM again")
}

func TestProcessQuery_HumanLoopTriggerSuspendsThenResolves(t *testing.T) {
	client := routedClient(func(int) (string, float64) { return "YES", 0.9 }, "Paracetamol overdose requires immediate attention.", "")
	orch := newTestOrchestrator(t, client, Config{})

	resp, err := orch.ProcessQuery(context.Background(), models.Query{
		Text:            "What should I do about a paracetamol overdose in a child?",
		EnableHumanLoop: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ConsensusPendingValidation, resp.Consensus)
	require.NotEmpty(t, resp.ValidationID)

	_, err = orch.SubmitHumanDecision(context.Background(), resp.ValidationID, models.ValidationApproved, "", "looks fine")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := orch.FetchValidationResult(resp.ValidationID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	final, ok := orch.FetchValidationResult(resp.ValidationID)
	require.True(t, ok)
	assert.Equal(t, models.ConsensusApproved, final.Consensus)
}
