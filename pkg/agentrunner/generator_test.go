package agentrunner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/medqa-orchestrator/internal/retry"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/llmclient"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/prompt"
)

func noJitterPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 3, BaseDelay: time.Millisecond, Multiplier: 2, Jitter: 0}
}

func TestGeneratorRunner_EmptyContextForcesAcknowledgement(t *testing.T) {
	client := llmclient.NewStubClient(func(ctx context.Context, p string, opts llmclient.Options) (llmclient.Output, error) {
		return llmclient.Output{Text: "some unrelated confident answer"}, nil
	})
	runner := NewGeneratorRunner(client, prompt.NewPromptBuilder(), noJitterPolicy(), time.Second, 256)

	out, err := runner.Run(context.Background(), GeneratorInput{
		Query:            "What is drug X used for?",
		Context:          models.Context{},
		DetectedLanguage: models.LangEN,
	})
	require.NoError(t, err)
	assert.Equal(t, "I cannot find this information in the provided sources.", out.Text)
	assert.LessOrEqual(t, out.Confidence, 0.3)
}

func TestGeneratorRunner_NonEmptyContextConfidenceAboveThreshold(t *testing.T) {
	selfConf := 0.9
	client := llmclient.NewStubClient(func(ctx context.Context, p string, opts llmclient.Options) (llmclient.Output, error) {
		return llmclient.Output{Text: "Paracetamol inhibits COX enzymes.", SelfConfidence: &selfConf}, nil
	})
	runner := NewGeneratorRunner(client, prompt.NewPromptBuilder(), noJitterPolicy(), time.Second, 256)

	out, err := runner.Run(context.Background(), GeneratorInput{
		Query:            "mechanism?",
		Context:          models.Context{Text: "COX inhibition", Sources: []models.Source{{DocID: "d1", Similarity: 0.8}}},
		DetectedLanguage: models.LangEN,
	})
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol inhibits COX enzymes.", out.Text)
	assert.Greater(t, out.Confidence, 0.3)
}

func TestGeneratorRunner_EmptyQueryIsInputInvalid(t *testing.T) {
	client := llmclient.NewStubClient(func(ctx context.Context, p string, opts llmclient.Options) (llmclient.Output, error) {
		t.Fatal("client should not be called")
		return llmclient.Output{}, nil
	})
	runner := NewGeneratorRunner(client, prompt.NewPromptBuilder(), noJitterPolicy(), time.Second, 256)

	_, err := runner.Run(context.Background(), GeneratorInput{Query: "   ", DetectedLanguage: models.LangEN})
	require.Error(t, err)
	var rerr *RunnerError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrInputInvalid, rerr.Kind)
}

func TestGeneratorRunner_RetriesTransportErrorThenSucceeds(t *testing.T) {
	selfConf := 0.5
	client := llmclient.NewStubClient(func(ctx context.Context, p string, opts llmclient.Options) (llmclient.Output, error) {
		return llmclient.Output{Text: "answer", SelfConfidence: &selfConf}, nil
	})
	client.FailNextCalls(2)
	runner := NewGeneratorRunner(client, prompt.NewPromptBuilder(), noJitterPolicy(), time.Second, 256)

	out, err := runner.Run(context.Background(), GeneratorInput{
		Query:            "q",
		Context:          models.Context{Text: "ctx"},
		DetectedLanguage: models.LangEN,
	})
	require.NoError(t, err)
	assert.Equal(t, "answer", out.Text)
	assert.Len(t, client.Calls(), 3)
}
