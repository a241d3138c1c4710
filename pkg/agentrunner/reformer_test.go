package agentrunner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/medqa-orchestrator/pkg/llmclient"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/prompt"
)

func TestReformerRunner_ReturnsImprovedText(t *testing.T) {
	client := llmclient.NewStubClient(func(ctx context.Context, p string, opts llmclient.Options) (llmclient.Output, error) {
		return llmclient.Output{Text: "Improved structured answer."}, nil
	})
	runner := NewReformerRunner(client, prompt.NewPromptBuilder(), noJitterPolicy(), time.Second, 256)

	out, err := runner.Run(context.Background(), ReformerInput{
		Query:            "q",
		GeneratorText:    "original draft",
		VerifierAnalysis: "missing structure",
		DetectedLanguage: models.LangEN,
	})
	require.NoError(t, err)
	assert.Equal(t, "Improved structured answer.", out.Text)
}

func TestReformerRunner_EmptyOutputFallsBackToPreviousDraft(t *testing.T) {
	client := llmclient.NewStubClient(func(ctx context.Context, p string, opts llmclient.Options) (llmclient.Output, error) {
		return llmclient.Output{Text: "   "}, nil
	})
	runner := NewReformerRunner(client, prompt.NewPromptBuilder(), noJitterPolicy(), time.Second, 256)

	out, err := runner.Run(context.Background(), ReformerInput{
		Query:         "q",
		GeneratorText: "original draft",
	})
	require.NoError(t, err)
	assert.Equal(t, "original draft", out.Text)
}
