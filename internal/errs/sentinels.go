// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflictingState indicates a status transition forbidden by the state machine.
	ErrConflictingState = errors.New("conflicting state")

	// ErrInvalidState indicates the operation is not valid for the account's current status.
	ErrInvalidState = errors.New("invalid state")

	// ErrSponsorIneligible indicates the proposed recovery sponsor fails an eligibility gate.
	ErrSponsorIneligible = errors.New("sponsor ineligible")

	// ErrSameSponsor indicates recovery reuses the sponsor recorded on the last demotion.
	ErrSameSponsor = errors.New("same sponsor rejected")

	// ErrCooldownActive indicates the recovery cooldown window has not elapsed.
	ErrCooldownActive = errors.New("cooldown active")

	// ErrInviteInvalid indicates a missing, inactive, expired or exhausted invite code.
	ErrInviteInvalid = errors.New("invite invalid")

	// ErrTxContention indicates a serialization/deadlock abort; safe to retry.
	ErrTxContention = errors.New("transaction contention")
)
