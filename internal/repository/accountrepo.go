// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/vouchnet/trustd/internal/model"
)

// AccountRepository provides CRUD access for accounts.
type AccountRepository interface {
	// Create inserts a new account and its account_created event atomically.
	Create(ctx context.Context, a *model.Account) error
	// GetByID loads an account by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	// GetByUsername loads an account by username.
	GetByUsername(ctx context.Context, username string) (*model.Account, error)
	// Heartbeat bumps last_heartbeat_at for a live account.
	Heartbeat(ctx context.Context, id uuid.UUID) error
	// IsBanned reports whether the account's durable status is banned.
	IsBanned(ctx context.Context, id uuid.UUID) (bool, error)
	// ListBannedIDs returns every banned account id, for cache rebuilds.
	ListBannedIDs(ctx context.Context) ([]uuid.UUID, error)
}
