package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	ErrNotFound           = errors.New("domain: not found")
	ErrConflict           = errors.New("domain: conflict")
	ErrDenied             = errors.New("domain: denied")
	ErrVersionConflict    = errors.New("domain: version conflict")
	ErrInvariantViolation = errors.New("domain: invariant violation")
	ErrChainBroken        = errors.New("domain: audit chain broken")
	ErrUnknownPrincipal   = errors.New("domain: unknown principal")
	ErrAccountDeactivated = errors.New("domain: account deactivated")
)

// InvariantError reports a structural data-integrity failure. It names the
// violated invariant and the offending field so callers can correct input.
// Writes that fail invariant validation are rejected before persistence.
type InvariantError struct {
	Invariant string
	Field     string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("domain: invariant %s violated on %s: %s", e.Invariant, e.Field, e.Detail)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

// NewInvariantError builds an InvariantError that unwraps to ErrInvariantViolation.
func NewInvariantError(invariant, field, detail string) error {
	return &InvariantError{Invariant: invariant, Field: field, Detail: detail}
}
