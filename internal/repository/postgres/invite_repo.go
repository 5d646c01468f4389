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

// InviteRepo implements InviteRepository using PostgreSQL.
type InviteRepo struct{ db *DB }

// NewInviteRepo constructs an invite repository.
func NewInviteRepo(db *DB) *InviteRepo { return &InviteRepo{db: db} }

const selectInviteCols = `code, issuer_id, max_uses, uses, expires_at, is_active, created_at`

func scanInvite(row pgx.Row) (*model.InviteCode, error) {
	var inv model.InviteCode
	if err := row.Scan(&inv.Code, &inv.IssuerID, &inv.MaxUses, &inv.Uses,
		&inv.ExpiresAt, &inv.IsActive, &inv.CreatedAt); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Create inserts a new invite code.
func (r *InviteRepo) Create(ctx context.Context, inv *model.InviteCode) error {
	const q = `
INSERT INTO invite_codes (code, issuer_id, max_uses, uses, expires_at, is_active, created_at)
VALUES ($1, $2, $3, 0, $4, TRUE, now())`
	_, err := r.db.Pool.Exec(ctx, q, inv.Code, inv.IssuerID, inv.MaxUses, inv.ExpiresAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// ListForIssuer returns codes issued by one account, newest first.
func (r *InviteRepo) ListForIssuer(ctx context.Context, issuerID uuid.UUID) ([]model.InviteCode, error) {
	const q = `
SELECT ` + selectInviteCols + `
FROM invite_codes
WHERE issuer_id = $1
ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, issuerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.InviteCode
	for rows.Next() {
		inv, serr := scanInvite(rows)
		if serr != nil {
			return nil, serr
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// Redeem consumes one use of the code and creates the sponsored account in
// the same transaction. The issuer row is share-locked so redemption
// blocks behind an in-flight conviction cascade over the issuer's subtree
// rather than attaching a child to an about-to-be-demoted sponsor.
func (r *InviteRepo) Redeem(ctx context.Context, code string, accountID uuid.UUID, username string) (acc *model.Account, err error) {
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

	const lockInvite = `
SELECT ` + selectInviteCols + `
FROM invite_codes WHERE code = $1 FOR UPDATE`
	inv, err := scanInvite(tx.QueryRow(ctx, lockInvite, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = errs.ErrInviteInvalid
		}
		return nil, err
	}
	if !inv.Redeemable(time.Now()) {
		return nil, errs.ErrInviteInvalid
	}

	const consume = `
UPDATE invite_codes
SET uses = uses + 1,
    is_active = CASE WHEN uses + 1 >= max_uses THEN FALSE ELSE is_active END
WHERE code = $1`
	if _, err = tx.Exec(ctx, consume, code); err != nil {
		return nil, err
	}

	const lockIssuer = `SELECT status FROM accounts WHERE id=$1 FOR SHARE`
	var issuerStatus string
	if err = tx.QueryRow(ctx, lockIssuer, inv.IssuerID).Scan(&issuerStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = errs.ErrInviteInvalid
		}
		return nil, err
	}
	if model.Status(issuerStatus) != model.StatusActive {
		return nil, errs.ErrInviteInvalid
	}

	if acc, err = scanAccount(tx.QueryRow(ctx, insertAccountSQL, accountID, username, inv.IssuerID)); err != nil {
		if isUniqueViolation(err) {
			err = errs.ErrAlreadyExists
		}
		return nil, err
	}

	if err = insertEvent(ctx, tx, &model.AccountEvent{
		AccountID:        accountID,
		Kind:             model.EventAccountCreated,
		RelatedAccountID: &inv.IssuerID,
		Metadata: map[string]any{
			"username":    username,
			"sponsor_id":  inv.IssuerID.String(),
			"invite_code": code,
		},
	}); err != nil {
		return nil, err
	}
	return acc, nil
}
