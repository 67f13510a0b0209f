package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidID        = errors.New("invalid id")
	ErrInvalidDocType   = errors.New("invalid document type")
	ErrEmptyText        = errors.New("text is empty")
	ErrQuestionTooShort = errors.New("question too short")
	ErrQuestionTooLong  = errors.New("question too long")
	ErrQueryInjection   = errors.New("input contains suspicious content")
	ErrForbidden        = errors.New("forbidden")
)

// NotFoundError reports which side of a match has no indexed chunks.
// It matches ErrNotFound under errors.Is.
type NotFoundError struct {
	Which string // "resume" or "job"
}

func (e *NotFoundError) Error() string {
	switch e.Which {
	case "resume":
		return "Resume not found"
	case "job":
		return "Job not found"
	default:
		return e.Which + " not found"
	}
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError for a document type.
func NotFound(t DocType) *NotFoundError { return &NotFoundError{Which: string(t)} }

// ValidationError wraps a sentinel with the offending field.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
