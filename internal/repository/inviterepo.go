package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/vouchnet/trustd/internal/model"
)

// InviteRepository manages invite codes and their redemption.
type InviteRepository interface {
	// Create inserts a new invite code.
	Create(ctx context.Context, inv *model.InviteCode) error
	// ListForIssuer returns codes issued by one account, newest first.
	ListForIssuer(ctx context.Context, issuerID uuid.UUID) ([]model.InviteCode, error)
	// Redeem consumes one use of the code and creates the sponsored
	// account in the same transaction. The issuer must still be active.
	Redeem(ctx context.Context, code string, accountID uuid.UUID, username string) (*model.Account, error)
}
