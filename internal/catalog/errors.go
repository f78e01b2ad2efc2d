package catalog

import (
	"errors"
	"fmt"
	"strings"

	"mediacatalog/internal/platform/validate"
)

var (
	// ErrNotFound signals absence: unknown id, or a deleted record where an
	// active one is required.
	ErrNotFound = errors.New("media record not found")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate is matched by every *DuplicateError.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrConstraintViolation is returned by stores when a unique index
	// rejects a write. Services translate it into a *DuplicateError.
	ErrConstraintViolation = errors.New("storage constraint violation")
)

type FieldError = validate.FieldError

// ValidationError reports malformed input. It is never worth retrying with
// the same input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(msgs, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DuplicateError reports a uniqueness collision on Field.
type DuplicateError struct {
	Entity string
	Field  string
	Value  string
	cause  error
}

func (e *DuplicateError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s with the same %s already exists", e.Entity, e.Field)
	}
	return fmt.Sprintf("%s with %s %q already exists", e.Entity, e.Field, e.Value)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

func (e *DuplicateError) Unwrap() error {
	return e.cause
}

// NewDuplicateError builds a DuplicateError, optionally keeping the storage
// error that caused it.
func NewDuplicateError(entity, field, value string, cause error) *DuplicateError {
	return &DuplicateError{Entity: entity, Field: field, Value: value, cause: cause}
}

// Unique index names shared by every Store implementation.
const (
	ConstraintISBN        = "media_items_isbn_active_uq"
	ConstraintTitleAuthor = "media_items_title_author_active_uq"
)

// ConstraintError is a unique index violation reported by a store.
type ConstraintError struct {
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrConstraintViolation, e.Constraint)
	}
	return fmt.Sprintf("%s: %s: %v", ErrConstraintViolation, e.Constraint, e.Err)
}

func (e *ConstraintError) Is(target error) bool {
	return target == ErrConstraintViolation
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

func notFound(id int64) error {
	return fmt.Errorf("media record %d: %w", id, ErrNotFound)
}
