package core

import (
	"fmt"

	"github.com/kilupskalvis/ure/internal/models"
	"gitlab.com/tozd/go/errors"
)

var (
	ErrValidation     = errors.Base("validation failed")
	ErrStorage        = errors.Base("storage unavailable")
	ErrNotFound       = errors.Base("not found")
	ErrNoRollbackData = errors.Base("no rollback data available")
)

// ValidationError rejects a request before any record is read
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid request: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error        { return e.Err }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// FieldError is a failure confined to one record or field. It never aborts a batch.
type FieldError struct {
	RecordID      string
	FieldLocation models.FieldLocation
	Err           error
}

func (e *FieldError) Error() string {
	if e.FieldLocation == "" {
		return fmt.Sprintf("record %s: %v", e.RecordID, e.Err)
	}
	return fmt.Sprintf("record %s field %s: %v", e.RecordID, e.FieldLocation, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Model converts the error into its reportable form
func (e *FieldError) Model() models.FieldError {
	return models.FieldError{RecordID: e.RecordID, FieldLocation: e.FieldLocation, Message: e.Err.Error()}
}

// StorageError aborts the current operation. Work already persisted stays in place.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string        { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error        { return e.Err }
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NotFoundError is a typed miss for log entries and records
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string        { return fmt.Sprintf("%s not found: %s", e.Kind, e.ID) }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
