package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the claim engine, category gate, board
// and rotation services unwraps to exactly one of these.
var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInfrastructure = errors.New("infrastructure unavailable")
	ErrInvalid        = errors.New("invalid input")
)

// Specific reasons.
var (
	ErrJobNotFound    = reason(ErrNotFound, "job not found")
	ErrNotAllowed     = reason(ErrForbidden, "not allowed")
	ErrAlreadyClaimed = reason(ErrConflict, "already claimed")
	ErrNotClaimed     = reason(ErrConflict, "not claimed")
	ErrClosed         = reason(ErrConflict, "job is closed")
	ErrNotClosed      = reason(ErrConflict, "job is not closed")
	ErrContended      = reason(ErrConflict, "job changed concurrently")
	ErrNoBoard        = reason(ErrNotFound, "no board initialized")
	ErrNoTarget       = reason(ErrNotFound, "no announcement target configured")
	ErrEmptyName      = reason(ErrInvalid, "name is empty")
	ErrEmptyTitle     = reason(ErrInvalid, "title is empty")
	ErrEmptyReason    = reason(ErrInvalid, "reason is empty")
	ErrRoleNotFound   = reason(ErrNotFound, "role not found")
)

type reasonError struct {
	kind error
	msg  string
}

func (e *reasonError) Error() string { return e.msg }
func (e *reasonError) Unwrap() error { return e.kind }

func reason(kind error, msg string) error { return &reasonError{kind: kind, msg: msg} }

// Infra marks err as a retryable infrastructure failure. nil stays nil.
func Infra(err error) error {
	if err == nil || errors.Is(err, ErrInfrastructure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInfrastructure, err)
}

// IsRetryable reports whether the caller may safely retry the operation.
func IsRetryable(err error) bool { return errors.Is(err, ErrInfrastructure) }

// Kind returns the kind sentinel err unwraps to, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrForbidden, ErrConflict, ErrInvalid, ErrInfrastructure} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
