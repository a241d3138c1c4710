package config

import "time"

// Defaults holds the orchestrator tuning knobs from spec.md §6.4. Every
// field has a zero-config fallback from builtinDefaults, which load merges
// under the values read from the config file.
type Defaults struct {
	MaxIterations             int           `yaml:"max_iterations"`
	VerifierApproveThreshold  float64       `yaml:"verifier_approve_threshold"`
	VerifierRejectThreshold   float64       `yaml:"verifier_reject_threshold"`
	MaxRetries                int           `yaml:"max_retries"`
	RetryBaseDelay            time.Duration `yaml:"retry_base_delay"`
	CacheTTL                  time.Duration `yaml:"cache_ttl"`
	HumanLoopTimeout          time.Duration `yaml:"human_loop_timeout"`
	WorkflowTimeout           time.Duration `yaml:"workflow_timeout"`
	EnableHumanLoopDefault    bool          `yaml:"enable_human_loop_default"`
	LLMCallTimeout            time.Duration `yaml:"llm_call_timeout"`
}

// builtinDefaults mirrors spec.md §6.4's documented defaults exactly.
func builtinDefaults() Defaults {
	return Defaults{
		MaxIterations:            3,
		VerifierApproveThreshold: 0.7,
		VerifierRejectThreshold:  0.3,
		MaxRetries:               3,
		RetryBaseDelay:           1 * time.Second,
		CacheTTL:                 3600 * time.Second,
		HumanLoopTimeout:         3600 * time.Second,
		WorkflowTimeout:          120 * time.Second,
		EnableHumanLoopDefault:   true,
		LLMCallTimeout:           30 * time.Second,
	}
}
