package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound covers missing records and structurally invalid ids alike:
	// a malformed id can never name a stored record, so callers see the same
	// not-found outcome instead of a backend-specific parse error.
	ErrNotFound = errors.New("feedback not found")

	// ErrInternal marks store/collaborator failures that fit none of the
	// business error kinds. Raw errors never cross the service boundary.
	ErrInternal = errors.New("internal error")
)

// ValidationError carries field-level messages for a rejected request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

// ReferenceNotFoundError rejects a create whose author or subject does not
// exist. Kind is "author" or "subject".
type ReferenceNotFoundError struct {
	Kind string
	ID   string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s %q does not exist", e.Kind, e.ID)
}

// DownstreamError signals that a collaborator call failed. The message keeps
// the target URL so operators can tell which service to check.
type DownstreamError struct {
	URL string
	Err error
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("downstream service unavailable at %s: %v", e.URL, e.Err)
}

func (e *DownstreamError) Unwrap() error { return e.Err }
