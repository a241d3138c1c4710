package config

import "fmt"

// Validator validates a fully loaded Config, failing fast on the first
// invalid field (mirrors the teacher's dependency-ordered validator).
type Validator struct {
	cfg *Config
}

// NewValidator builds a Validator for cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every check in dependency order and returns the first
// failure, wrapped with the section that produced it.
func (v *Validator) ValidateAll() error {
	if err := v.validateIterationBounds(); err != nil {
		return fmt.Errorf("iteration bounds validation failed: %w", err)
	}
	if err := v.validateThresholds(); err != nil {
		return fmt.Errorf("threshold validation failed: %w", err)
	}
	if err := v.validateRetry(); err != nil {
		return fmt.Errorf("retry validation failed: %w", err)
	}
	if err := v.validateTimeouts(); err != nil {
		return fmt.Errorf("timeout validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateIterationBounds() error {
	d := v.cfg.Defaults
	if d.MaxIterations < 1 {
		return NewValidationError("max_iterations",
			fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidValue, d.MaxIterations))
	}
	return nil
}

func (v *Validator) validateThresholds() error {
	d := v.cfg.Defaults
	if d.VerifierApproveThreshold < 0 || d.VerifierApproveThreshold > 1 {
		return NewValidationError("verifier_approve_threshold",
			fmt.Errorf("%w: must be in [0,1], got %f", ErrInvalidValue, d.VerifierApproveThreshold))
	}
	if d.VerifierRejectThreshold < 0 || d.VerifierRejectThreshold > 1 {
		return NewValidationError("verifier_reject_threshold",
			fmt.Errorf("%w: must be in [0,1], got %f", ErrInvalidValue, d.VerifierRejectThreshold))
	}
	if d.VerifierRejectThreshold > d.VerifierApproveThreshold {
		return NewValidationError("verifier_reject_threshold",
			fmt.Errorf("%w: reject threshold (%f) must not exceed approve threshold (%f)",
				ErrInvalidValue, d.VerifierRejectThreshold, d.VerifierApproveThreshold))
	}
	return nil
}

func (v *Validator) validateRetry() error {
	d := v.cfg.Defaults
	if d.MaxRetries < 0 {
		return NewValidationError("max_retries",
			fmt.Errorf("%w: must be non-negative, got %d", ErrInvalidValue, d.MaxRetries))
	}
	if d.RetryBaseDelay <= 0 {
		return NewValidationError("retry_base_delay",
			fmt.Errorf("%w: must be positive, got %s", ErrInvalidValue, d.RetryBaseDelay))
	}
	return nil
}

func (v *Validator) validateTimeouts() error {
	d := v.cfg.Defaults
	if d.CacheTTL <= 0 {
		return NewValidationError("cache_ttl",
			fmt.Errorf("%w: must be positive, got %s", ErrInvalidValue, d.CacheTTL))
	}
	if d.HumanLoopTimeout <= 0 {
		return NewValidationError("human_loop_timeout",
			fmt.Errorf("%w: must be positive, got %s", ErrInvalidValue, d.HumanLoopTimeout))
	}
	if d.WorkflowTimeout <= 0 {
		return NewValidationError("workflow_timeout",
			fmt.Errorf("%w: must be positive, got %s", ErrInvalidValue, d.WorkflowTimeout))
	}
	if d.LLMCallTimeout <= 0 {
		return NewValidationError("llm_call_timeout",
			fmt.Errorf("%w: must be positive, got %s", ErrInvalidValue, d.LLMCallTimeout))
	}
	return nil
}
