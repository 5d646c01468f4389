package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/vouchnet/trustd/internal/errs"
)

// GraphRepo reads the sponsor forest via the accounts adjacency relation.
type GraphRepo struct{ db *DB }

// NewGraphRepo constructs a trust-graph repository.
func NewGraphRepo(db *DB) *GraphRepo { return &GraphRepo{db: db} }

// DirectSponsorOf returns the sponsor edge, or nil for bootstrap accounts.
func (r *GraphRepo) DirectSponsorOf(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) {
	const q = `SELECT sponsor_id FROM accounts WHERE id=$1`
	var sponsor *uuid.UUID
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&sponsor); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return sponsor, nil
}

// descendantsSQL walks sponsor edges from the root down. The root row is
// included so a missing account is distinguishable from a leaf.
const descendantsSQL = `
WITH RECURSIVE subtree AS (
    SELECT id FROM accounts WHERE id = $1
    UNION ALL
    SELECT a.id FROM accounts a JOIN subtree s ON a.sponsor_id = s.id
)
SELECT id FROM subtree`

// DescendantsOf returns the transitive closure along sponsor edges,
// excluding the account itself.
func (r *GraphRepo) DescendantsOf(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Pool.Query(ctx, descendantsSQL, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := false
	var out []uuid.UUID
	for rows.Next() {
		var cur uuid.UUID
		if err = rows.Scan(&cur); err != nil {
			return nil, err
		}
		if cur == id {
			found = true
			continue
		}
		out = append(out, cur)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.ErrNotFound
	}
	return out, nil
}
