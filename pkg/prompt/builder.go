// Package prompt builds all prompt text handed to AgentRunner. There is
// exactly one PromptBuilder per process, shared by every role — never one
// instance per agent — so a template update is observed by all agents on
// their next call (spec.md §4.3's correctness requirement, not a style
// preference).
package prompt

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
)

// Input carries the parameters a Build* call needs. Not every field is
// consulted by every role.
type Input struct {
	Query            string
	ContextText      string
	DetectedLanguage models.Language
	GeneratorText    string // consulted by Verifier, Reformer
	VerifierAnalysis string // consulted by Reformer
	SourceText       string // consulted by Translator
	SourceLanguage   models.Language
	TargetLanguage   models.Language
}

// templateSet holds the compiled-constant format strings for each role.
// Swapped atomically by UpdateTemplates; never mutated in place.
type templateSet struct {
	generator  string
	verifier   string
	reformer   string
	translator string
}

func defaultTemplateSet() *templateSet {
	return &templateSet{
		generator:  generatorTemplate,
		verifier:   verifierTemplate,
		reformer:   reformerTemplate,
		translator: translatorTemplate,
	}
}

// PromptBuilder is the single shared instance referenced by every
// AgentRunner. Safe for concurrent use: reads take one atomic load,
// UpdateTemplates takes one atomic store, never a torn mix of old and new
// template text within a single Build call.
type PromptBuilder struct {
	templates atomic.Pointer[templateSet]
}

// NewPromptBuilder constructs a PromptBuilder loaded with the built-in
// templates.
func NewPromptBuilder() *PromptBuilder {
	b := &PromptBuilder{}
	b.templates.Store(defaultTemplateSet())
	return b
}

// TemplateOverrides updates a subset of the four role templates; empty
// fields leave the current template for that role unchanged.
type TemplateOverrides struct {
	Generator  string
	Verifier   string
	Reformer   string
	Translator string
}

// UpdateTemplates atomically swaps in new templates for any non-empty
// field of overrides, leaving the others as they were. The swap is a
// single atomic.Pointer store, so concurrent Build calls see either the
// fully-old or the fully-new set, never a mix.
func (b *PromptBuilder) UpdateTemplates(overrides TemplateOverrides) {
	current := b.templates.Load()
	next := *current
	if overrides.Generator != "" {
		next.generator = overrides.Generator
	}
	if overrides.Verifier != "" {
		next.verifier = overrides.Verifier
	}
	if overrides.Reformer != "" {
		next.reformer = overrides.Reformer
	}
	if overrides.Translator != "" {
		next.translator = overrides.Translator
	}
	b.templates.Store(&next)
}

func formatDirectives(lang models.Language) string {
	return fmt.Sprintf(
		"Respond entirely in %s. Structure the answer as bullet points, one per line. "+
			"Include a relevant medical emoji at the start of each bullet when it aids clarity "+
			"(e.g. ⚠️ for warnings, 💊 for dosage).",
		languageName(lang),
	)
}

func languageName(lang models.Language) string {
	switch lang {
	case models.LangFR:
		return "French"
	case models.LangES:
		return "Spanish"
	case models.LangDE:
		return "German"
	default:
		return "English"
	}
}

const generatorTemplate = `You are a medical question-answering assistant. Answer the question using only the provided context.

Question: %s

Context:
%s

%s

If the context does not contain enough information to answer, say so explicitly instead of guessing.`

const verifierTemplate = `You are a strict verifier reviewing a draft medical answer for factual grounding in the provided context.

Question: %s

Context:
%s

Draft answer:
%s

Reply with a line starting "VOTE: YES" or "VOTE: NO", followed by a line starting "CONFIDENCE: " with a number between 0 and 1, followed by a short analysis explaining the vote.`

const reformerTemplate = `You are improving a medical answer that failed verification.

Question: %s

Context:
%s

Previous draft:
%s

Verifier feedback:
%s

%s

Rewrite the answer, preserving every factual claim from the previous draft that the context supports, and fixing what the feedback identified.`

const translatorTemplate = `Translate the following medical answer from %s to %s, preserving clinical terminology precisely. Do not add or remove information.

Text:
%s`

// BuildGenerator constructs the Generator prompt.
func (b *PromptBuilder) BuildGenerator(in Input) string {
	t := b.templates.Load()
	ctx := in.ContextText
	if strings.TrimSpace(ctx) == "" {
		ctx = "(no relevant context retrieved)"
	}
	return fmt.Sprintf(t.generator, in.Query, ctx, formatDirectives(in.DetectedLanguage))
}

// BuildVerifier constructs the Verifier prompt.
func (b *PromptBuilder) BuildVerifier(in Input) string {
	t := b.templates.Load()
	ctx := in.ContextText
	if strings.TrimSpace(ctx) == "" {
		ctx = "(no relevant context retrieved)"
	}
	return fmt.Sprintf(t.verifier, in.Query, ctx, in.GeneratorText)
}

// BuildReformer constructs the Reformer prompt.
func (b *PromptBuilder) BuildReformer(in Input) string {
	t := b.templates.Load()
	ctx := in.ContextText
	if strings.TrimSpace(ctx) == "" {
		ctx = "(no relevant context retrieved)"
	}
	return fmt.Sprintf(t.reformer, in.Query, ctx, in.GeneratorText, in.VerifierAnalysis, formatDirectives(in.DetectedLanguage))
}

// BuildTranslator constructs the Translator prompt.
func (b *PromptBuilder) BuildTranslator(in Input) string {
	t := b.templates.Load()
	return fmt.Sprintf(t.translator, languageName(in.SourceLanguage), languageName(in.TargetLanguage), in.SourceText)
}
