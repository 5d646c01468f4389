package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/vouchnet/trustd/internal/model"
)

// RecoveryRepository applies the revouch transition. Eligibility reads and
// the status write share one transaction so a sponsor cannot lose
// eligibility between check and commit.
type RecoveryRepository interface {
	// Recover validates every gate against current data and, on success,
	// re-sponsors the account, restores active status and restarts the
	// trust timer. Gate failures surface as errs sentinels.
	Recover(ctx context.Context, accountID, newSponsorID uuid.UUID, gates model.RecoveryGates) (*model.Account, error)
}
