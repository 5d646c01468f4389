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

// ModerationRepo applies conviction cascades and inactivity sweeps using
// PostgreSQL. Every operation is one serializable transaction; the affected
// subtree rows stay locked until commit, so a cascade sees a stable
// snapshot and overlapping cascades serialize on the shared rows.
type ModerationRepo struct{ db *DB }

// NewModerationRepo constructs a moderation repository.
func NewModerationRepo(db *DB) *ModerationRepo { return &ModerationRepo{db: db} }

// lockSubtreeSQL collects and row-locks the full subtree rooted at $1.
// A descendant attached to a locked ancestor blocks until commit; one
// attached to an already-committed cascade escapes it (acceptable lag).
const lockSubtreeSQL = `
WITH RECURSIVE subtree AS (
    SELECT id FROM accounts WHERE id = $1
    UNION ALL
    SELECT a.id FROM accounts a JOIN subtree s ON a.sponsor_id = s.id
)
SELECT a.id, a.status, a.sponsor_id
FROM accounts a
JOIN subtree s ON a.id = s.id
FOR UPDATE OF a`

// ConvictCascade bans the account, penalizes its direct sponsor, demotes
// every non-banned descendant and deactivates the subtree's invite codes,
// all in one transaction. Already-banned accounts are a no-op success.
func (r *ModerationRepo) ConvictCascade(ctx context.Context, accountID uuid.UUID, reason string) (res *model.ConvictionResult, err error) {
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
			res, err = nil, mapTxError(e)
		}
	}()

	const lockRoot = `SELECT status, sponsor_id FROM accounts WHERE id=$1 FOR UPDATE`
	var rootStatus string
	var sponsorID *uuid.UUID
	if err = tx.QueryRow(ctx, lockRoot, accountID).Scan(&rootStatus, &sponsorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = errs.ErrNotFound
		}
		return nil, err
	}
	if !model.Status(rootStatus).CanBan() {
		return &model.ConvictionResult{AccountID: accountID, AlreadyBanned: true}, nil
	}

	rows, err := tx.Query(ctx, lockSubtreeSQL, accountID)
	if err != nil {
		return nil, err
	}
	var subtree []uuid.UUID
	var demote []uuid.UUID
	parentOf := make(map[uuid.UUID]*uuid.UUID)
	for rows.Next() {
		var (
			id      uuid.UUID
			status  string
			sponsor *uuid.UUID
		)
		if err = rows.Scan(&id, &status, &sponsor); err != nil {
			rows.Close()
			return nil, err
		}
		subtree = append(subtree, id)
		parentOf[id] = sponsor
		if id != accountID && model.Status(status).CanDemote() {
			demote = append(demote, id)
		}
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	const banRoot = `
UPDATE accounts SET status = 'banned', trust_started_at = NULL WHERE id=$1`
	if _, err = tx.Exec(ctx, banRoot, accountID); err != nil {
		return nil, err
	}

	if len(demote) > 0 {
		const demoteSubtree = `
UPDATE accounts SET status = 'revouch_required', trust_started_at = NULL
WHERE id = ANY($1) AND status != 'banned'`
		if _, err = tx.Exec(ctx, demoteSubtree, demote); err != nil {
			return nil, err
		}
	}

	// The whole subtree loses invite issuance, the root permanently.
	const disableInvites = `
UPDATE invite_codes SET is_active = FALSE WHERE issuer_id = ANY($1)`
	if _, err = tx.Exec(ctx, disableInvites, subtree); err != nil {
		return nil, err
	}

	if sponsorID != nil {
		const penalize = `UPDATE accounts SET demerits = demerits + 1 WHERE id=$1`
		if _, err = tx.Exec(ctx, penalize, *sponsorID); err != nil {
			return nil, err
		}
	}

	if err = insertEvent(ctx, tx, &model.AccountEvent{
		AccountID: accountID,
		Kind:      model.EventConvicted,
		Metadata:  map[string]any{"reason": reason},
	}); err != nil {
		return nil, err
	}
	if sponsorID != nil {
		if err = insertEvent(ctx, tx, &model.AccountEvent{
			AccountID:        *sponsorID,
			Kind:             model.EventDemeritAdded,
			RelatedAccountID: &accountID,
			Metadata:         map[string]any{"convicted_account_id": accountID.String(), "reason": reason},
		}); err != nil {
			return nil, err
		}
	}
	for _, id := range demote {
		meta := map[string]any{"convicted_account_id": accountID.String(), "reason": reason}
		if p := parentOf[id]; p != nil {
			// Sponsor in effect at demotion time; recovery's
			// different-sponsor gate reads this back.
			meta["sponsor_id"] = p.String()
		}
		if err = insertEvent(ctx, tx, &model.AccountEvent{
			AccountID:        id,
			Kind:             model.EventDemoted,
			RelatedAccountID: &accountID,
			Metadata:         meta,
		}); err != nil {
			return nil, err
		}
	}

	return &model.ConvictionResult{
		AccountID:         accountID,
		PenalizedSponsor:  sponsorID,
		DemotedAccountIDs: demote,
	}, nil
}

// lockStaleChildrenSQL locks the active direct descendants of every active
// sponsor whose heartbeat is older than the cutoff. Direct descendants
// only: inactivity does not cascade to grandchildren, unlike a conviction.
const lockStaleChildrenSQL = `
SELECT c.id, c.sponsor_id
FROM accounts c
JOIN accounts p ON c.sponsor_id = p.id
WHERE p.status = 'active'
  AND p.last_heartbeat_at < $1
  AND c.status = 'active'
FOR UPDATE OF c`

// ExpireInactiveSponsors demotes the active direct descendants of sponsors
// that have been silent for longer than threshold. The sponsor itself
// keeps its status and trust timer.
func (r *ModerationRepo) ExpireInactiveSponsors(ctx context.Context, threshold time.Duration) (demoted []uuid.UUID, err error) {
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
			demoted, err = nil, mapTxError(e)
		}
	}()

	cutoff := time.Now().Add(-threshold)
	rows, err := tx.Query(ctx, lockStaleChildrenSQL, cutoff)
	if err != nil {
		return nil, err
	}
	sponsorOf := make(map[uuid.UUID]uuid.UUID)
	for rows.Next() {
		var id, sponsor uuid.UUID
		if err = rows.Scan(&id, &sponsor); err != nil {
			rows.Close()
			return nil, err
		}
		demoted = append(demoted, id)
		sponsorOf[id] = sponsor
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(demoted) == 0 {
		return []uuid.UUID{}, nil
	}

	const demoteChildren = `
UPDATE accounts SET status = 'revouch_required', trust_started_at = NULL
WHERE id = ANY($1)`
	if _, err = tx.Exec(ctx, demoteChildren, demoted); err != nil {
		return nil, err
	}

	for _, id := range demoted {
		sponsor := sponsorOf[id]
		if err = insertEvent(ctx, tx, &model.AccountEvent{
			AccountID:        id,
			Kind:             model.EventSponsorExpired,
			RelatedAccountID: &sponsor,
			Metadata: map[string]any{
				"sponsor_id":      sponsor.String(),
				"threshold_hours": threshold.Hours(),
			},
		}); err != nil {
			return nil, err
		}
	}
	return demoted, nil
}
