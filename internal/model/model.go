// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Status is the account lifecycle state.
type Status string

// Account lifecycle states. Banned is terminal.
const (
	StatusActive          Status = "active"
	StatusRevouchRequired Status = "revouch_required"
	StatusBanned          Status = "banned"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusRevouchRequired, StatusBanned:
		return true
	}
	return false
}

// CanBan reports whether a conviction may move the account to banned.
// Conviction of an already-banned account is an idempotent no-op, handled
// by the caller; every other state may be banned.
func (s Status) CanBan() bool { return s != StatusBanned }

// CanDemote reports whether a cascade or sweep may move the account to
// revouch_required. Banned accounts are never touched by cascades.
func (s Status) CanDemote() bool { return s == StatusActive || s == StatusRevouchRequired }

// CanRecover reports whether the recovery path applies. Recovery of an
// already-active account is rejected, not silently absorbed.
func (s Status) CanRecover() bool { return s == StatusRevouchRequired }

// Account is one vouched-for identity in the trust forest.
type Account struct {
	ID              uuid.UUID
	Username        string
	Status          Status
	SponsorID       *uuid.UUID // nil only for bootstrap accounts
	TrustStartedAt  *time.Time // nil while not active
	Demerits        int
	LastHeartbeatAt time.Time
	CreatedAt       time.Time
}

// TrustDays returns whole days of continuous active status. It is zero for
// any non-active account and never negative.
func (a *Account) TrustDays(now time.Time) int {
	if a.Status != StatusActive || a.TrustStartedAt == nil {
		return 0
	}
	d := int(now.Sub(*a.TrustStartedAt).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// StatusInfo is the read-model answer for a status query.
type StatusInfo struct {
	Status    Status
	TrustDays int
	Demerits  int
}

// EventKind classifies append-only account lifecycle events.
type EventKind string

// Lifecycle event kinds recorded in the audit log.
const (
	EventAccountCreated EventKind = "account_created"
	EventConvicted      EventKind = "convicted"
	EventDemeritAdded   EventKind = "demerit_added"
	EventDemoted        EventKind = "demoted_revouch_required"
	EventRecovered      EventKind = "recovered"
	EventSponsorExpired EventKind = "sponsor_expired"
)

// IsDemotion reports whether the event kind marks a drop into
// revouch_required; these events anchor the recovery cooldown and record
// the sponsor in effect at demotion time.
func (k EventKind) IsDemotion() bool {
	return k == EventDemoted || k == EventSponsorExpired
}

// AccountEvent is one immutable audit-log row.
type AccountEvent struct {
	ID               uuid.UUID
	AccountID        uuid.UUID
	Kind             EventKind
	RelatedAccountID *uuid.UUID // e.g. convicted ancestor or new/old sponsor
	Metadata         map[string]any
	OccurredAt       time.Time
}

// Demotion captures the most recent demotion event for one account:
// when it happened and which sponsor was in effect at that moment.
type Demotion struct {
	OccurredAt   time.Time
	PriorSponsor *uuid.UUID
}

// InviteCode is an invitation issued by an active account. Redeeming one
// creates a new account sponsored by the issuer.
type InviteCode struct {
	Code      string
	IssuerID  uuid.UUID
	MaxUses   int
	Uses      int
	ExpiresAt *time.Time
	IsActive  bool
	CreatedAt time.Time
}

// Redeemable reports whether the code can still be consumed at the given
// instant.
func (c *InviteCode) Redeemable(now time.Time) bool {
	if !c.IsActive || c.Uses >= c.MaxUses {
		return false
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
		return false
	}
	return true
}

// RecoveryGates are the configurable revouch eligibility thresholds,
// passed explicitly so tests can vary them.
type RecoveryGates struct {
	SponsorMinTrustDays int
	SponsorMaxDemerits  int
	Cooldown            time.Duration
}

// ConvictionResult reports the effects of one conviction cascade.
type ConvictionResult struct {
	AccountID         uuid.UUID
	AlreadyBanned     bool       // idempotent retry: no additional effects
	PenalizedSponsor  *uuid.UUID // direct sponsor that received a demerit
	DemotedAccountIDs []uuid.UUID
}
