package prompt

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
)

func TestBuildGenerator_IncludesQueryAndContext(t *testing.T) {
	b := NewPromptBuilder()
	out := b.BuildGenerator(Input{
		Query:            "What is the mechanism of action of paracetamol?",
		ContextText:      "Paracetamol inhibits COX enzymes centrally.",
		DetectedLanguage: models.LangEN,
	})
	assert.Contains(t, out, "mechanism of action of paracetamol")
	assert.Contains(t, out, "inhibits COX enzymes")
	assert.Contains(t, out, "English")
}

func TestBuildGenerator_EmptyContextPlaceholder(t *testing.T) {
	b := NewPromptBuilder()
	out := b.BuildGenerator(Input{Query: "q", DetectedLanguage: models.LangFR})
	assert.Contains(t, out, "no relevant context retrieved")
	assert.Contains(t, out, "French")
}

func TestBuildVerifier_IncludesDraft(t *testing.T) {
	b := NewPromptBuilder()
	out := b.BuildVerifier(Input{
		Query:         "q",
		ContextText:   "ctx",
		GeneratorText: "the draft answer",
	})
	assert.Contains(t, out, "the draft answer")
	assert.Contains(t, out, "VOTE:")
}

func TestBuildReformer_IncludesFeedback(t *testing.T) {
	b := NewPromptBuilder()
	out := b.BuildReformer(Input{
		Query:            "q",
		ContextText:      "ctx",
		GeneratorText:    "prior draft",
		VerifierAnalysis: "missing dosage info",
		DetectedLanguage: models.LangES,
	})
	assert.Contains(t, out, "prior draft")
	assert.Contains(t, out, "missing dosage info")
	assert.Contains(t, out, "Spanish")
}

func TestBuildTranslator_Languages(t *testing.T) {
	b := NewPromptBuilder()
	out := b.BuildTranslator(Input{
		SourceText:     "Take one tablet daily.",
		SourceLanguage: models.LangEN,
		TargetLanguage: models.LangDE,
	})
	assert.Contains(t, out, "from English to German")
	assert.Contains(t, out, "Take one tablet daily.")
}

func TestUpdateTemplates_PartialOverridePreservesOthers(t *testing.T) {
	b := NewPromptBuilder()
	b.UpdateTemplates(TemplateOverrides{Generator: "CUSTOM GENERATOR %s %s %s"})

	out := b.BuildGenerator(Input{Query: "q", ContextText: "c", DetectedLanguage: models.LangEN})
	assert.True(t, strings.HasPrefix(out, "CUSTOM GENERATOR"))

	verifierOut := b.BuildVerifier(Input{Query: "q", ContextText: "c", GeneratorText: "d"})
	assert.Contains(t, verifierOut, "VOTE:")
}

func TestUpdateTemplates_ObservedByConcurrentCallers(t *testing.T) {
	b := NewPromptBuilder()
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		b.UpdateTemplates(TemplateOverrides{Verifier: "SWAPPED %s %s %s"})
	}()
	go func() {
		defer wg.Done()
		out := b.BuildVerifier(Input{Query: "q", ContextText: "c", GeneratorText: "d"})
		assert.True(t, out == "" || strings.Contains(out, "VOTE:") || strings.HasPrefix(out, "SWAPPED"))
	}()
	wg.Wait()

	final := b.BuildVerifier(Input{Query: "q", ContextText: "c", GeneratorText: "d"})
	assert.True(t, strings.HasPrefix(final, "SWAPPED"))
}
