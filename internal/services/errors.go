package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store"
)

var (
	ErrNotFound        = errors.New("resource not found")
	ErrForbidden       = errors.New("insufficient permissions")
	ErrUnauthenticated = errors.New("authentication required")
	ErrConflict        = errors.New("resource already exists")
	ErrPersistence     = errors.New("persistence failure")
)

// ValidationError carries per-field messages back to the caller.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Message: "Validation failed", Fields: map[string]string{field: msg}}
}

// storeError maps store sentinels onto service errors and tags everything
// else as a persistence failure, keeping the cause for logs.
func storeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrDuplicate):
		return ErrConflict
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
	}
}
