package orders

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrStorage    = errors.New("storage failure")

	// ErrRetryable marks store errors that may succeed if the caller tries again
	// (lock timeout, serialization failure, deadlock).
	ErrRetryable = errors.New("retryable")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: strconv.FormatInt(id, 10)}
}

// ConflictError is a business rule violation. Shortages is set when the
// conflict is insufficient inventory.
type ConflictError struct {
	Reason    string
	Shortages []Shortage
}

func (e *ConflictError) Error() string {
	if len(e.Shortages) > 0 {
		return fmt.Sprintf("%s (%d products short)", e.Reason, len(e.Shortages))
	}
	return e.Reason
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type StorageError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// wrapStorage passes domain errors through and wraps everything else.
func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err, Retryable: errors.Is(err, ErrRetryable)}
}
