/*
errors.go - Centralized error types for the reward ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these to protocol responses with errors.Is/As.

ERROR CATEGORIES:
  1. Caller errors - unknown reward, illegal transition, bad input
  2. Idempotency errors - strict-policy conflicts, store-level duplicates
  3. Internal faults - ledger state that violates an invariant

SEE ALSO:
  - lifecycle.go: Produces these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRewardNotFound is returned for an unknown reward id.
	ErrRewardNotFound = errors.New("reward not found")

	// ErrInvalidStateTransition is returned when the transition table has no
	// edge for (current status, operation).
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrIdempotencyConflict is returned under DedupStrict when a known key is
	// re-submitted with a different payload.
	ErrIdempotencyConflict = errors.New("idempotency conflict")

	// ErrDuplicateIdempotencyKey is returned by stores when the key is already
	// indexed. The manager turns it into an idempotent replay.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrLedgerInconsistent marks an internal fault: stored state violates a
	// ledger invariant (e.g. a reward without its credit entry).
	ErrLedgerInconsistent = errors.New("ledger inconsistent")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type RewardNotFoundError struct {
	RewardID uuid.UUID
}

func (e *RewardNotFoundError) Error() string {
	return fmt.Sprintf("reward %s not found", e.RewardID)
}

func (e *RewardNotFoundError) Unwrap() error { return ErrRewardNotFound }

type InvalidTransitionError struct {
	RewardID uuid.UUID
	From     RewardStatus
	Op       Operation
}

func (e *InvalidTransitionError) Error() string {
	switch e.Op {
	case OpReverse:
		return fmt.Sprintf("cannot reverse reward in %s state: only PENDING or CONFIRMED rewards can be reversed", e.From)
	default:
		return fmt.Sprintf("cannot %s reward in %s state", e.Op, e.From)
	}
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidStateTransition }

type IdempotencyConflictError struct {
	Key        string
	ExistingID uuid.UUID
}

func (e *IdempotencyConflictError) Error() string {
	return fmt.Sprintf("idempotency key %q already used by reward %s with a different payload", e.Key, e.ExistingID)
}

func (e *IdempotencyConflictError) Unwrap() error { return ErrIdempotencyConflict }

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRewardNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrIdempotencyConflict)
}
