package agentrunner

import "github.com/codeready-toolchain/medqa-orchestrator/pkg/models"

// uncertaintyAcknowledgement returns the canonical "I cannot find this"
// answer in lang, per spec.md §4.4's Generator obligation for empty or
// irrelevant context.
func uncertaintyAcknowledgement(lang models.Language) string {
	switch lang {
	case models.LangFR:
		return "Je ne trouve pas cette information dans les sources fournies."
	case models.LangES:
		return "No puedo encontrar esta información en las fuentes proporcionadas."
	case models.LangDE:
		return "Ich kann diese Information in den bereitgestellten Quellen nicht finden."
	default:
		return "I cannot find this information in the provided sources."
	}
}
