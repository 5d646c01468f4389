package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/vouchnet/trustd/internal/errs"
	"github.com/vouchnet/trustd/internal/model"
)

// RecoveryRepo applies the revouch transition using PostgreSQL. All gate
// reads happen inside the same serializable transaction as the status
// write, so the sponsor cannot lose eligibility between check and commit.
type RecoveryRepo struct{ db *DB }

// NewRecoveryRepo constructs a recovery repository.
func NewRecoveryRepo(db *DB) *RecoveryRepo { return &RecoveryRepo{db: db} }

// lastDemotionSQL finds the anchor for the cooldown window and the sponsor
// in effect at the most recent demotion. The event log is the system of
// record for both; no mutable column shadows them.
const lastDemotionSQL = `
SELECT occurred_at, metadata->>'sponsor_id'
FROM account_events
WHERE account_id = $1 AND kind IN ('demoted_revouch_required', 'sponsor_expired')
ORDER BY occurred_at DESC
LIMIT 1`

// Recover validates the revouch gates in order (state, sponsor
// eligibility, different sponsor, cooldown) and applies the transition.
// Demerits persist across recovery.
func (r *RecoveryRepo) Recover(ctx context.Context, accountID, newSponsorID uuid.UUID, gates model.RecoveryGates) (acc *model.Account, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, serializableTx)
	if err != nil {
		return nil, mapTxError(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			err = mapTxError(err)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			acc, err = nil, mapTxError(e)
		}
	}()

	const lockAccount = `SELECT status FROM accounts WHERE id=$1 FOR UPDATE`
	var status string
	if err = tx.QueryRow(ctx, lockAccount, accountID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = errs.ErrNotFound
		}
		return nil, err
	}
	if !model.Status(status).CanRecover() {
		return nil, errs.ErrInvalidState
	}

	if newSponsorID == accountID {
		return nil, errs.ErrSponsorIneligible
	}
	// Lock the sponsor row so a racing cascade cannot demote it under us.
	const lockSponsor = `
SELECT status, trust_started_at, demerits FROM accounts WHERE id=$1 FOR UPDATE`
	sponsor := model.Account{ID: newSponsorID}
	var sponsorStatus string
	if err = tx.QueryRow(ctx, lockSponsor, newSponsorID).
		Scan(&sponsorStatus, &sponsor.TrustStartedAt, &sponsor.Demerits); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = errs.ErrSponsorIneligible
		}
		return nil, err
	}
	sponsor.Status = model.Status(sponsorStatus)
	if sponsor.Status != model.StatusActive ||
		sponsor.TrustDays(time.Now()) < gates.SponsorMinTrustDays ||
		sponsor.Demerits > gates.SponsorMaxDemerits {
		return nil, errs.ErrSponsorIneligible
	}

	var demotedAt time.Time
	var priorSponsor *string
	err = tx.QueryRow(ctx, lastDemotionSQL, accountID).Scan(&demotedAt, &priorSponsor)
	switch {
	case err == nil:
		if priorSponsor != nil && *priorSponsor == newSponsorID.String() {
			return nil, errs.ErrSameSponsor
		}
		if time.Since(demotedAt) < gates.Cooldown {
			return nil, errs.ErrCooldownActive
		}
	case errors.Is(err, pgx.ErrNoRows):
		// No demotion on record: nothing anchors a cooldown or a
		// prior-sponsor constraint.
		err = nil
	default:
		return nil, err
	}

	const revouch = `
UPDATE accounts
SET sponsor_id = $2, status = 'active', trust_started_at = now()
WHERE id = $1
RETURNING id, username, status, sponsor_id, trust_started_at, demerits, last_heartbeat_at, created_at`
	if acc, err = scanAccount(tx.QueryRow(ctx, revouch, accountID, newSponsorID)); err != nil {
		return nil, err
	}

	if err = insertEvent(ctx, tx, &model.AccountEvent{
		AccountID:        accountID,
		Kind:             model.EventRecovered,
		RelatedAccountID: &newSponsorID,
		Metadata:         map[string]any{"sponsor_id": newSponsorID.String()},
	}); err != nil {
		return nil, err
	}
	return acc, nil
}
