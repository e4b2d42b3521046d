package domain

import "fmt"

// Error types for consistent error handling across the ledger.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrConflict indicates the write lost a race or violates a uniqueness rule
// (second active attempt of a challenge, stale template cursor).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrUnauthorized indicates an invalid passcode or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrExternalService indicates a failure in an outbound call (webhook).
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrDataIntegrity reports a record the engines cannot interpret: a missing
// challenge definition, an unknown challenge type or an unknown frequency.
// The offending item is skipped; the batch continues.
type ErrDataIntegrity struct {
	Entity string
	ID     string
	Reason string
}

func (e *ErrDataIntegrity) Error() string {
	return fmt.Sprintf("data integrity anomaly [%s %s]: %s", e.Entity, e.ID, e.Reason)
}

// ErrRunawayGuard reports a recurring template whose catch-up exceeded the
// iteration bound. Its materialization is aborted; other templates continue.
type ErrRunawayGuard struct {
	TemplateID string
	Iterations int
}

func (e *ErrRunawayGuard) Error() string {
	return fmt.Sprintf("runaway guard tripped for template %s after %d iterations", e.TemplateID, e.Iterations)
}
