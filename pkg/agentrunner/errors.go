package agentrunner

import (
	"fmt"

	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
)

// ErrorKind enumerates the four failure modes AgentRunner.Run may return.
type ErrorKind string

const (
	ErrInputInvalid ErrorKind = "INPUT_INVALID"
	ErrLLMTransport ErrorKind = "LLM_TRANSPORT"
	ErrOutputParse  ErrorKind = "OUTPUT_PARSE"
	ErrTimeout      ErrorKind = "TIMEOUT"
)

// RunnerError is the error type every AgentRunner returns on failure. It
// implements retry.Retryable so internal/retry.Do can classify it without
// importing this package.
type RunnerError struct {
	Kind ErrorKind
	Role models.AgentRole
	Err  error
}

func (e *RunnerError) Error() string {
	return fmt.Sprintf("%s[%s]: %v", e.Role, e.Kind, e.Err)
}

func (e *RunnerError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient. Only LLM_TRANSPORT
// and TIMEOUT are retried (spec.md §4.4); OUTPUT_PARSE is deterministic
// and INPUT_INVALID is a caller bug, neither benefits from a retry.
func (e *RunnerError) Retryable() bool {
	return e.Kind == ErrLLMTransport || e.Kind == ErrTimeout
}
