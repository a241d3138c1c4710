package config

import "errors"

// Sentinel errors returned by Load and Validate.
var (
	ErrConfigNotFound       = errors.New("config: file not found")
	ErrInvalidYAML          = errors.New("config: invalid yaml")
	ErrValidationFailed     = errors.New("config: validation failed")
	ErrInvalidValue         = errors.New("config: invalid value")
	ErrMissingRequiredField = errors.New("config: missing required field")
)

// LoadError wraps a failure to load a specific config file.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return "config: failed to load " + e.File + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError builds a LoadError for file, wrapping err.
func NewLoadError(file string, err error) *LoadError {
	return &LoadError{File: file, Err: err}
}

// ValidationError reports an invalid field value found during ValidateAll.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return "config: " + e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError for field, wrapping err.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}
