package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

// GraphRepository reads the sponsor forest. Structural writes happen only
// through account creation and recovery; nothing else moves an edge.
type GraphRepository interface {
	// DirectSponsorOf returns the sponsor edge, or nil for bootstrap accounts.
	DirectSponsorOf(ctx context.Context, id uuid.UUID) (*uuid.UUID, error)
	// DescendantsOf returns the transitive closure along sponsor edges,
	// excluding the account itself. The read is repeatable only within the
	// caller's transaction; cascades take their own locked snapshot.
	DescendantsOf(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
}
