package safety

import (
	"testing"

	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_SafetyReview(t *testing.T) {
	c := NewClassifier()
	trigger, ok := c.Classify("What is the lethal dose of paracetamol for a child?")
	require.True(t, ok)
	// "child" (SAFETY_REVIEW) and "lethal" (CRITICAL_DECISION) both match;
	// both carry priority 5, so SAFETY_REVIEW wins the taxonomy-order tie-break.
	assert.Equal(t, models.TriggerSafetyReview, trigger.Kind)
	assert.Equal(t, 5, trigger.Priority)
}

func TestClassify_RegulatoryBeatsMedicalApproval(t *testing.T) {
	c := NewClassifier()
	trigger, ok := c.Classify("Is this treatment FDA approved?")
	require.True(t, ok)
	assert.Equal(t, models.TriggerRegulatoryCompliance, trigger.Kind)
}

func TestClassify_NoMatch(t *testing.T) {
	c := NewClassifier()
	_, ok := c.Classify("What is the weather today?")
	assert.False(t, ok)
}

func TestClassify_WholeWordOnly(t *testing.T) {
	c := NewClassifier()
	// "verifying" must not match the "verify" indicator as a substring.
	_, ok := c.Classify("I am verifying my homework")
	assert.False(t, ok)
}

func TestClassify_CaseInsensitive(t *testing.T) {
	c := NewClassifier()
	trigger, ok := c.Classify("OVERDOSE risk assessment")
	require.True(t, ok)
	assert.Equal(t, models.TriggerSafetyReview, trigger.Kind)
}

func TestClassify_FrenchIndicators(t *testing.T) {
	c := NewClassifier()
	trigger, ok := c.Classify("Quelle est la posologie recommandée ?")
	require.True(t, ok)
	assert.Equal(t, models.TriggerMedicalApproval, trigger.Kind)
}
