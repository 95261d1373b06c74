package claims

import (
	"errors"
	"fmt"
)

// NotFoundError indicates that a requested row does not exist. Read paths in
// the services treat it as an empty result, never as a failure.
type NotFoundError struct {
	Kind string // Record kind ("claim_rule", "review_item", ...)
	ID   string // Identifier that was looked up
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ConflictError indicates a uniqueness violation, e.g. a second pending
// review item for the same (user, dispute) pair. Callers resolve it by
// re-reading rather than surfacing an error.
type ConflictError struct {
	Kind   string // Record kind
	Detail string // What collided
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Kind, e.Detail)
}

// NewConflictError creates a new ConflictError.
func NewConflictError(kind, detail string) *ConflictError {
	return &ConflictError{Kind: kind, Detail: detail}
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// VersionConflictError indicates a compare-and-swap update lost a race:
// the stored version moved past the version the writer read.
type VersionConflictError struct {
	Kind     string // Record kind
	ID       string // Row identifier
	Expected int    // Version the writer read
}

// Error implements the error interface.
func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s %q version conflict: expected version %d was already superseded", e.Kind, e.ID, e.Expected)
}

// NewVersionConflictError creates a new VersionConflictError.
func NewVersionConflictError(kind, id string, expected int) *VersionConflictError {
	return &VersionConflictError{Kind: kind, ID: id, Expected: expected}
}

// IsVersionConflict reports whether err is (or wraps) a VersionConflictError.
func IsVersionConflict(err error) bool {
	var vc *VersionConflictError
	return errors.As(err, &vc)
}

// StorageError represents a failure in the storage backend.
type StorageError struct {
	Backend   string // Storage backend ("sqlite", "memory")
	Operation string // Operation that failed ("insert_rule", "list_reviews", ...)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

// ValidationError indicates a malformed payload, e.g. a rule_update
// correction missing after_state.rule_id. The record is still persisted for
// audit; only its application is skipped.
type ValidationError struct {
	Field  string // Offending field
	Reason string // Why it is invalid
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [field=%s]: %s", e.Field, e.Reason)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
