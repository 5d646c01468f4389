package service

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/vouchnet/trustd/internal/model"
	"github.com/vouchnet/trustd/internal/repository"
)

// RecoveryService validates revouch eligibility and applies the only
// transition that restores active status.
type RecoveryService interface {
	// Recover re-sponsors a revouch_required account. Gate failures map to
	// errs.ErrInvalidState, ErrSponsorIneligible, ErrSameSponsor and
	// ErrCooldownActive respectively.
	Recover(ctx context.Context, accountID, newSponsorID uuid.UUID) (*model.Account, error)
}

type RecoveryServiceImpl struct {
	repo  repository.RecoveryRepository
	gates model.RecoveryGates
	log   *zap.Logger
}

// NewRecoveryService constructs RecoveryService with explicit gate thresholds.
func NewRecoveryService(repo repository.RecoveryRepository, gates model.RecoveryGates, log *zap.Logger) *RecoveryServiceImpl {
	return &RecoveryServiceImpl{repo: repo, gates: gates, log: log}
}

// Recover applies the revouch transition. Retries on contention re-run the
// full in-transaction validation rather than replaying a stale decision.
func (s *RecoveryServiceImpl) Recover(ctx context.Context, accountID, newSponsorID uuid.UUID) (*model.Account, error) {
	if accountID == uuid.Nil || newSponsorID == uuid.Nil {
		return nil, errors.New("validation: empty accountID/sponsorID")
	}
	var acc *model.Account
	err := withContentionRetry(ctx, func(ctx context.Context) error {
		var rerr error
		acc, rerr = s.repo.Recover(ctx, accountID, newSponsorID, s.gates)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("account recovered",
		zap.String("account_id", accountID.String()),
		zap.String("sponsor_id", newSponsorID.String()),
	)
	return acc, nil
}
