package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/vouchnet/trustd/internal/errs"
	"github.com/vouchnet/trustd/internal/model"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

// insertAccountSQL creates a fresh active account with its trust timer
// anchored at insert time. Shared with invite redemption.
const insertAccountSQL = `
INSERT INTO accounts (id, username, status, sponsor_id, trust_started_at, demerits, last_heartbeat_at, created_at)
VALUES ($1, $2, 'active', $3, now(), 0, now(), now())
RETURNING id, username, status, sponsor_id, trust_started_at, demerits, last_heartbeat_at, created_at`

const selectAccountSQL = `
SELECT id, username, status, sponsor_id, trust_started_at, demerits, last_heartbeat_at, created_at
FROM accounts WHERE id=$1`

// scanAccount reads one accounts row.
func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	var status string
	if err := row.Scan(&a.ID, &a.Username, &status, &a.SponsorID, &a.TrustStartedAt,
		&a.Demerits, &a.LastHeartbeatAt, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Status = model.Status(status)
	return &a, nil
}

// insertEvent appends one audit-log row inside the caller's transaction.
// The log is append-only; no code path updates or deletes event rows.
func insertEvent(ctx context.Context, q querier, ev *model.AccountEvent) error {
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	meta := ev.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	const ins = `
INSERT INTO account_events (id, account_id, kind, related_account_id, metadata, occurred_at)
VALUES ($1, $2, $3, $4, $5, now())`
	_, err = q.Exec(ctx, ins, id, ev.AccountID, string(ev.Kind), ev.RelatedAccountID, payload)
	return err
}

// Create inserts a new account row and its account_created event atomically.
// The inserted row (with DB-assigned timestamps) is scanned back into a.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			err = mapTxError(err)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = mapTxError(e)
		}
	}()

	created, err := scanAccount(tx.QueryRow(ctx, insertAccountSQL, a.ID, a.Username, a.SponsorID))
	if err != nil {
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return err
	}

	meta := map[string]any{"username": a.Username}
	if a.SponsorID != nil {
		meta["sponsor_id"] = a.SponsorID.String()
	}
	if err = insertEvent(ctx, tx, &model.AccountEvent{
		AccountID:        a.ID,
		Kind:             model.EventAccountCreated,
		RelatedAccountID: a.SponsorID,
		Metadata:         meta,
	}); err != nil {
		return err
	}

	*a = *created
	return nil
}

// GetByID selects an account by ID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	a, err := scanAccount(r.db.Pool.QueryRow(ctx, selectAccountSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// GetByUsername selects an account by username.
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	const q = `
SELECT id, username, status, sponsor_id, trust_started_at, demerits, last_heartbeat_at, created_at
FROM accounts WHERE username=$1`
	a, err := scanAccount(r.db.Pool.QueryRow(ctx, q, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// Heartbeat bumps last_heartbeat_at for a live account.
func (r *AccountRepo) Heartbeat(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE accounts SET last_heartbeat_at = now() WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// IsBanned reports the durable banned flag for one account.
func (r *AccountRepo) IsBanned(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `SELECT status = 'banned' FROM accounts WHERE id=$1`
	var banned bool
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&banned); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, errs.ErrNotFound
		}
		return false, err
	}
	return banned, nil
}

// ListBannedIDs returns every banned account id for cache rebuilds.
func (r *AccountRepo) ListBannedIDs(ctx context.Context) ([]uuid.UUID, error) {
	const q = `SELECT id FROM accounts WHERE status = 'banned'`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
