// Package apperrors defines the error taxonomy shared by the resolution
// and execution pipeline.
//
// Errors are built on github.com/cockroachdb/errors so callers get stack
// traces, wrapping and user-facing hints. Resolution-stage errors are
// never fatal: the engine turns them into response text plus a suggestion.
//
// Usage:
//
//	var colErr *apperrors.UnknownColumnError
//	if errors.As(err, &colErr) {
//	    // offer colErr.Suggestions
//	}
package apperrors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Sentinels for the suggestion lifecycle and the inference collaborator.
var (
	ErrNoSuggestion      = errors.New("no pending suggestion")
	ErrWrongSuggestion   = errors.New("pending suggestion is of a different kind")
	ErrIndexOutOfRange   = errors.New("suggestion index out of range")
	ErrInferenceDisabled = errors.New("external inference is not configured")
)

// Candidate is a ranked alternative carried by resolution errors.
type Candidate struct {
	Label string
	Score int
}

// UnknownDatasetError: the requested entity has no loaded table.
type UnknownDatasetError struct {
	Entity string
}

func (e *UnknownDatasetError) Error() string {
	return fmt.Sprintf("no dataset loaded for entity %q", e.Entity)
}

// UnknownColumnError: no exact or alias column matched the field.
type UnknownColumnError struct {
	Entity      string
	Field       string
	Suggestions []Candidate
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("no column for field %q in %q", e.Field, e.Entity)
}

// UnknownValueError: the column has no exact value. Applied holds the
// best guess that was used for the answer, if any.
type UnknownValueError struct {
	Entity      string
	Field       string
	Asked       string
	Suggestions []Candidate
	Applied     string
}

func (e *UnknownValueError) Error() string {
	if e.Applied != "" {
		return fmt.Sprintf("value %q not found in %s.%s, used %q", e.Asked, e.Entity, e.Field, e.Applied)
	}
	return fmt.Sprintf("value %q not found in %s.%s", e.Asked, e.Entity, e.Field)
}

// TemplateValidationError: a rendered expression references an unknown
// dataset or column, or a template definition is malformed.
type TemplateValidationError struct {
	Reason string
}

func (e *TemplateValidationError) Error() string {
	return "template validation failed: " + e.Reason
}

// ExecutionError wraps any runtime failure inside the sandbox.
type ExecutionError struct {
	Cause error
}

func (e *ExecutionError) Error() string {
	return "execution failed: " + e.Cause.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// AliasNotFoundError is returned when removing an alias that is not stored.
type AliasNotFoundError struct {
	Kind  string // "entity", "field", "value"
	Alias string
}

func (e *AliasNotFoundError) Error() string {
	return fmt.Sprintf("%s alias %q not found", e.Kind, e.Alias)
}

// NewValidation builds a TemplateValidationError with a stack.
func NewValidation(format string, args ...any) error {
	return errors.WithStack(&TemplateValidationError{Reason: fmt.Sprintf(format, args...)})
}

// NewExecution wraps cause as an ExecutionError.
func NewExecution(cause error) error {
	if cause == nil {
		return nil
	}
	return errors.WithStack(&ExecutionError{Cause: cause})
}

// NewAliasNotFound builds an AliasNotFoundError with a removal hint.
func NewAliasNotFound(kind, alias string) error {
	return errors.WithHintf(errors.WithStack(&AliasNotFoundError{Kind: kind, Alias: alias}),
		"run `iisys alias list` to see stored %s aliases", kind)
}

// UserMessage renders err for a chat response: the message plus any hints.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(err.Error())
	for _, h := range errors.GetAllHints(err) {
		sb.WriteString("\nhint: ")
		sb.WriteString(h)
	}
	return sb.String()
}
