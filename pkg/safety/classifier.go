// Package safety implements the fixed-taxonomy keyword classifier from
// spec.md §4.2. It is a pure, deterministic function — no network
// moderation provider is consulted, matching the shape of the core's
// classification layer laid out in spec.md §1.
package safety

import (
	"regexp"
	"strings"

	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
)

// Trigger is the result of a successful classification.
type Trigger struct {
	Kind          models.TriggerKind
	Priority      int
	MatchedTerms  []string
}

// taxonomy lists, per trigger kind, the case-insensitive whole-word/phrase
// indicators across every supported language. Declaration order here is
// also the tie-break order used when two kinds match with equal priority.
var taxonomy = []struct {
	kind  models.TriggerKind
	terms []string
}{
	{
		kind: models.TriggerSafetyReview,
		terms: []string{
			"overdose", "toxicity", "pregnancy", "pregnant", "child", "children",
			"contraindication", "warning",
			"surdosage", "toxicité", "grossesse", "enfant", "enfants", "contre-indication", "avertissement",
			"sobredosis", "toxicidad", "embarazo", "niño", "niños", "contraindicación", "advertencia",
			"überdosis", "toxizität", "schwangerschaft", "kind", "kinder", "kontraindikation", "warnung",
		},
	},
	{
		kind: models.TriggerRegulatoryCompliance,
		terms: []string{
			"fda", "ema", "regulatory", "approval", "compliance",
			"réglementaire", "approbation", "conformité",
			"regulatorio", "aprobación", "cumplimiento",
			"regulatorisch", "zulassung", "konformität",
		},
	},
	{
		kind: models.TriggerMedicalApproval,
		terms: []string{
			"diagnosis", "treatment", "dosage", "clinical",
			"diagnostic", "traitement", "posologie", "clinique",
			"diagnóstico", "tratamiento", "dosis", "clínico",
			"diagnose", "behandlung", "dosierung", "klinisch",
		},
	},
	{
		kind: models.TriggerCriticalDecision,
		terms: []string{
			"lethal", "emergency", "life-threatening",
			"mortel", "urgence", "potentiellement mortel",
			"letal", "emergencia", "potencialmente mortal",
			"tödlich", "notfall", "lebensbedrohlich",
		},
	},
	{
		kind: models.TriggerQualityAssurance,
		terms: []string{
			"verify", "double-check",
			"vérifier", "revérifier",
			"verificar", "comprobar",
			"überprüfen", "nachprüfen",
		},
	},
}

// Classifier matches query text against the fixed trigger taxonomy. It
// holds no mutable state and is safe for concurrent use.
type Classifier struct {
	patterns map[models.TriggerKind][]*regexp.Regexp
}

// NewClassifier compiles the taxonomy's whole-word patterns once at
// construction time.
func NewClassifier() *Classifier {
	patterns := make(map[models.TriggerKind][]*regexp.Regexp, len(taxonomy))
	for _, entry := range taxonomy {
		compiled := make([]*regexp.Regexp, 0, len(entry.terms))
		for _, term := range entry.terms {
			compiled = append(compiled, wholeWordPattern(term))
		}
		patterns[entry.kind] = compiled
	}
	return &Classifier{patterns: patterns}
}

// wholeWordPattern builds a case-insensitive regexp matching term as a
// whole word or phrase (hyphenated terms like "double-check" are matched
// literally; multi-word phrases are separated by any single whitespace run).
func wholeWordPattern(term string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(term)
	escaped = strings.ReplaceAll(escaped, ` `, `\s+`)
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(` + escaped + `)(?:[^\p{L}\p{N}_]|$)`)
}

// Classify returns the highest-priority matching trigger, or ok=false if
// no taxonomy term appears in text. Ties in priority break by the fixed
// taxonomy declaration order (spec.md §4.2).
func (c *Classifier) Classify(text string) (Trigger, bool) {
	var best *Trigger
	var bestRank int

	for _, entry := range taxonomy {
		matched := c.matchTerms(entry.kind, text)
		if len(matched) == 0 {
			continue
		}
		rank := entry.kind.TaxonomyRank()
		candidate := Trigger{Kind: entry.kind, Priority: entry.kind.Priority(), MatchedTerms: matched}
		if best == nil || betterTrigger(candidate, rank, *best, bestRank) {
			best = &candidate
			bestRank = rank
		}
	}

	if best == nil {
		return Trigger{}, false
	}
	return *best, true
}

func betterTrigger(candidate Trigger, candidateRank int, current Trigger, currentRank int) bool {
	if candidate.Priority != current.Priority {
		return candidate.Priority > current.Priority
	}
	return candidateRank < currentRank
}

func (c *Classifier) matchTerms(kind models.TriggerKind, text string) []string {
	var matched []string
	for _, pattern := range c.patterns[kind] {
		if m := pattern.FindStringSubmatch(text); m != nil {
			matched = append(matched, m[1])
		}
	}
	return matched
}
