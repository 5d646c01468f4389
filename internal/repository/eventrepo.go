package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/vouchnet/trustd/internal/model"
)

// EventRepository is the append-only audit log. No update or delete
// operation exists.
type EventRepository interface {
	// Append inserts one event row.
	Append(ctx context.Context, ev *model.AccountEvent) error
	// LastDemotion returns the most recent demotion event for the account,
	// or nil when the account was never demoted.
	LastDemotion(ctx context.Context, accountID uuid.UUID) (*model.Demotion, error)
	// ListForAccount returns recent events for one account, newest first.
	ListForAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.AccountEvent, error)
}
