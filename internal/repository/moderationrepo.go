package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/vouchnet/trustd/internal/model"
)

// ModerationRepository applies conviction cascades and inactivity sweeps.
// Each call is one storage transaction; a partial cascade is never
// observable.
type ModerationRepository interface {
	// ConvictCascade bans the account, penalizes its direct sponsor and
	// demotes every non-banned descendant, recording all events in the
	// same transaction. Convicting an already-banned account succeeds with
	// zero additional effects.
	ConvictCascade(ctx context.Context, accountID uuid.UUID, reason string) (*model.ConvictionResult, error)

	// ExpireInactiveSponsors demotes the direct descendants of every
	// active account whose last heartbeat is older than threshold, and
	// returns the demoted ids.
	ExpireInactiveSponsors(ctx context.Context, threshold time.Duration) ([]uuid.UUID, error)
}
