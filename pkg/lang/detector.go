// Package lang implements the pure, dependency-free language classifier
// described in spec.md §4.1: a keyword-scoring detector over {EN,FR,ES,DE}
// with English-priority tie-breaking for the service's international
// medical-query default.
package lang

import (
	"strings"
	"unicode"

	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
)

// Result is the outcome of a single Detect call.
type Result struct {
	Language   models.Language
	Confidence float64
}

// keywords holds the curated general + medical-domain indicator lists per
// language. Lists are intentionally small and hand-curated rather than
// statistically derived, matching spec.md §4.1's deterministic contract.
var keywords = map[models.Language][]string{
	models.LangEN: {
		"what", "how", "why", "when", "which", "who", "can", "does", "is",
		"paracetamol", "side", "effects", "side effects", "dosage", "dose",
		"treatment", "symptom", "symptoms", "medication", "drug", "mechanism",
		"action", "overdose", "interaction", "contraindication",
	},
	models.LangFR: {
		"quels", "quelles", "quel", "quelle", "comment", "pourquoi", "quand",
		"qui", "est-ce", "paracétamol", "effets", "secondaires", "posologie",
		"dose", "traitement", "symptôme", "symptômes", "médicament",
		"surdosage", "interaction", "contre-indication",
	},
	models.LangES: {
		"qué", "cómo", "por qué", "cuándo", "cuál", "quién", "puede",
		"paracetamol", "efectos", "secundarios", "dosis", "tratamiento",
		"síntoma", "síntomas", "medicamento", "sobredosis", "interacción",
		"contraindicación",
	},
	models.LangDE: {
		"was", "wie", "warum", "wann", "welche", "welcher", "wer", "kann",
		"nebenwirkungen", "paracetamol", "dosis", "dosierung", "behandlung",
		"symptom", "symptome", "medikament", "überdosis", "wechselwirkung",
		"kontraindikation",
	},
}

// Detector classifies free text into one of the supported languages. It
// holds no mutable state and is safe for concurrent use.
type Detector struct{}

// NewDetector builds a Detector. It never fails — spec.md §4.1 requires the
// classifier to be a total function.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect classifies text per spec.md §4.1's algorithm: lowercase, tokenize,
// score each language by distinct matched indicators, then apply the
// English-priority tie-break.
func (d *Detector) Detect(text string) Result {
	lowered := strings.ToLower(text)

	scores := make(map[models.Language]int, len(models.SupportedLanguages))
	totalMatches := 0
	for _, language := range models.SupportedLanguages {
		matched := countDistinctMatches(lowered, keywords[language])
		scores[language] = matched
		totalMatches += matched
	}

	winner := pickWinner(scores)
	confidence := 0.0
	if totalMatches > 0 {
		confidence = float64(scores[winner]) / float64(totalMatches)
	}

	return Result{Language: winner, Confidence: confidence}
}

// pickWinner applies spec.md §4.1's tie-break: EN wins whenever its score
// is positive and at least as high as every other language's score;
// otherwise the strictly highest non-EN score wins; an all-zero scoreboard
// defaults to EN with confidence 0 (handled by the caller).
func pickWinner(scores map[models.Language]int) models.Language {
	maxOther := 0
	bestOther := models.LangEN
	for _, language := range models.SupportedLanguages {
		if language == models.LangEN {
			continue
		}
		if scores[language] > maxOther {
			maxOther = scores[language]
			bestOther = language
		}
	}

	enScore := scores[models.LangEN]
	if enScore > 0 && enScore >= maxOther {
		return models.LangEN
	}
	if maxOther > 0 {
		return bestOther
	}
	return models.LangEN
}

// countDistinctMatches counts how many indicators from terms appear at
// least once in lowered, as whole words/phrases.
func countDistinctMatches(lowered string, terms []string) int {
	tokens := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	padded := " " + strings.Join(tokens, " ") + " "
	count := 0
	for _, term := range terms {
		if strings.Contains(padded, " "+term+" ") {
			count++
		}
	}
	return count
}
