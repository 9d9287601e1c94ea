package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent pipeline failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates no converter handles a MIME type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// The semantic chunker cannot run without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Pipeline Errors.

	// ErrValidation indicates an upload violated a store constraint.
	// Use errors.As with *ValidationError to find which one.
	ErrValidation = errors.New("validation failed")

	// ErrPrerequisiteMissing indicates a stage ran before the stage it depends on.
	ErrPrerequisiteMissing = errors.New("prerequisite missing")

	// ErrConversionFailed indicates the converter failed or produced no output.
	ErrConversionFailed = errors.New("conversion failed")

	// ErrStrategyContractViolation indicates a chunker returned malformed chunks.
	ErrStrategyContractViolation = errors.New("chunker contract violation")

	// ErrArchiveFailed indicates a snapshot could not be written.
	// The mutation that requested it is aborted.
	ErrArchiveFailed = errors.New("archive failed")

	// ErrConflict indicates the converted Markdown changed while a chunker was running.
	ErrConflict = errors.New("document changed during operation")
)

// Violation names the upload constraint that was broken.
type Violation string

// Upload constraints.
const (
	ViolationSize              Violation = "size"
	ViolationCount             Violation = "count"
	ViolationDuplicateName     Violation = "duplicate_name"
	ViolationUnsupportedFormat Violation = "unsupported_format"
	ViolationInvalidName       Violation = "invalid_name"
)

// ValidationError reports a rejected upload.
type ValidationError struct {
	Violation Violation
	Detail    string
}

// NewValidationError creates a ValidationError with a formatted detail.
func NewValidationError(v Violation, format string, args ...any) *ValidationError {
	return &ValidationError{Violation: v, Detail: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("validation failed: %s", e.Violation)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Violation, e.Detail)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
