package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/vouchnet/trustd/internal/model"
)

// EventRepo implements the append-only audit log using PostgreSQL.
type EventRepo struct{ db *DB }

// NewEventRepo constructs an event repository.
func NewEventRepo(db *DB) *EventRepo { return &EventRepo{db: db} }

// Append inserts one event row. There is no update or delete counterpart.
func (r *EventRepo) Append(ctx context.Context, ev *model.AccountEvent) error {
	return insertEvent(ctx, r.db.Pool, ev)
}

// LastDemotion returns the most recent demotion event for the account, or
// nil when it was never demoted.
func (r *EventRepo) LastDemotion(ctx context.Context, accountID uuid.UUID) (*model.Demotion, error) {
	var d model.Demotion
	var prior *string
	err := r.db.Pool.QueryRow(ctx, lastDemotionSQL, accountID).Scan(&d.OccurredAt, &prior)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if prior != nil {
		id, perr := uuid.FromString(*prior)
		if perr == nil {
			d.PriorSponsor = &id
		}
	}
	return &d, nil
}

// ListForAccount returns recent events for one account, newest first.
func (r *EventRepo) ListForAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.AccountEvent, error) {
	const q = `
SELECT id, account_id, kind, related_account_id, metadata, occurred_at
FROM account_events
WHERE account_id = $1
ORDER BY occurred_at DESC
LIMIT $2`
	rows, err := r.db.Pool.Query(ctx, q, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AccountEvent
	for rows.Next() {
		var (
			ev   model.AccountEvent
			kind string
			raw  []byte
		)
		if err = rows.Scan(&ev.ID, &ev.AccountID, &kind, &ev.RelatedAccountID, &raw, &ev.OccurredAt); err != nil {
			return nil, err
		}
		ev.Kind = model.EventKind(kind)
		if len(raw) > 0 {
			if err = json.Unmarshal(raw, &ev.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
