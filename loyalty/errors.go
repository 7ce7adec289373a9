/*
errors.go - Centralized error types for the loyalty engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The catalog and commission packages reuse these sentinels so callers
  match with errors.Is across the whole engine.

ERROR CATEGORIES:
  1. Not-found errors - Missing partner/account/reward/claim
  2. Validation errors - Business rule violations (insufficient points,
     inactive reward, out of stock, invalid partner status)
  3. Consistency errors - Duplicate idempotency keys, bad transitions

USAGE:
  if errors.Is(err, loyalty.ErrInsufficientPoints) { ... }

  var ipe *loyalty.InsufficientPointsError
  if errors.As(err, &ipe) { shortfall := ipe.Shortfall }
*/
package loyalty

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPartnerNotFound is returned when the partner directory has no such partner.
	ErrPartnerNotFound = errors.New("partner not found")

	// ErrAccountNotFound is returned when no loyalty account exists for a partner.
	ErrAccountNotFound = errors.New("loyalty account not found")

	// ErrRewardNotFound is returned when a referenced reward doesn't exist.
	ErrRewardNotFound = errors.New("reward not found")

	// ErrTransactionNotFound is returned when a referenced transaction doesn't exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrClaimNotFound is returned when a referenced claim doesn't exist.
	ErrClaimNotFound = errors.New("claim not found")

	// ErrRewardInactive is returned when redeeming a deactivated reward or one
	// outside its validity window.
	ErrRewardInactive = errors.New("reward inactive")

	// ErrRewardOutOfStock is returned when a reward has no remaining stock or
	// its claim cap has been reached.
	ErrRewardOutOfStock = errors.New("reward out of stock")

	// ErrInsufficientPoints is returned when a debit exceeds the balance.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrAccountInvalid is returned when the partner is suspended or banned.
	// The status flag is owned by the external directory.
	ErrAccountInvalid = errors.New("partner account invalid")

	// ErrNoPendingPayout is returned when distributing a zero pending payout.
	ErrNoPendingPayout = errors.New("no pending payout")

	// ErrInvalidTransition is returned on a claim status change the state
	// machine does not allow.
	ErrInvalidTransition = errors.New("invalid claim status transition")

	// ErrDuplicateIdempotencyKey is returned when a transaction, claim or
	// accrual with the same idempotency key already exists. Expected
	// behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrPartnerExists is returned when registering a partner id that is
	// already taken. Registration never overwrites earned state.
	ErrPartnerExists = errors.New("partner already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientPointsError provides details about a balance shortage.
type InsufficientPointsError struct {
	PartnerID PartnerID
	Available int64
	Requested int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: available %d, requested %d, shortfall %d",
		e.Available, e.Requested, e.Shortfall())
}

func (e *InsufficientPointsError) Shortfall() int64 {
	return e.Requested - e.Available
}

func (e *InsufficientPointsError) Unwrap() error {
	return ErrInsufficientPoints
}

// AccountInvalidError reports the offending status for a rejected operation.
type AccountInvalidError struct {
	PartnerID PartnerID
	Status    PartnerStatus
}

func (e *AccountInvalidError) Error() string {
	return fmt.Sprintf("partner %s cannot transact: status %s", e.PartnerID, e.Status)
}

func (e *AccountInvalidError) Unwrap() error {
	return ErrAccountInvalid
}

// TransitionError reports a disallowed claim status change.
type TransitionError struct {
	ClaimID ClaimID
	From    ClaimStatus
	To      ClaimStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("claim %s: cannot transition %s -> %s", e.ClaimID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPartnerNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrRewardNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrClaimNotFound)
}

// IsClientError returns true if the error is a terminal validation failure
// rather than a storage fault. Validation failures cause no partial mutation.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrRewardInactive) ||
		errors.Is(err, ErrRewardOutOfStock) ||
		errors.Is(err, ErrAccountInvalid) ||
		errors.Is(err, ErrNoPendingPayout) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrPartnerExists)
}
