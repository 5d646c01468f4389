package service

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/vouchnet/trustd/internal/bancache"
	"github.com/vouchnet/trustd/internal/model"
	"github.com/vouchnet/trustd/internal/repository"
)

// ModerationService orchestrates conviction cascades and sponsor-inactivity
// sweeps. It is, together with RecoveryService, the only writer of account
// status.
type ModerationService interface {
	// Convict bans the account and cascades revouch_required over its
	// descendants in one atomic unit. Idempotent for banned accounts.
	Convict(ctx context.Context, accountID uuid.UUID, reason string) (*model.ConvictionResult, error)
	// SweepInactiveSponsors demotes direct descendants of sponsors whose
	// heartbeat is older than threshold; returns the demoted ids.
	SweepInactiveSponsors(ctx context.Context, threshold time.Duration) ([]uuid.UUID, error)
}

type ModerationServiceImpl struct {
	repo repository.ModerationRepository
	bans *bancache.Cache
	log  *zap.Logger
}

// NewModerationService constructs ModerationService with required dependencies.
func NewModerationService(repo repository.ModerationRepository, bans *bancache.Cache, log *zap.Logger) *ModerationServiceImpl {
	return &ModerationServiceImpl{repo: repo, bans: bans, log: log}
}

// Convict runs the cascade and synchronously publishes the ban to the
// cache before reporting success, so no caller can observe the commit and
// then read a stale not-banned answer.
func (s *ModerationServiceImpl) Convict(ctx context.Context, accountID uuid.UUID, reason string) (*model.ConvictionResult, error) {
	if accountID == uuid.Nil {
		return nil, errors.New("validation: empty accountID")
	}
	var res *model.ConvictionResult
	err := withContentionRetry(ctx, func(ctx context.Context) error {
		var rerr error
		res, rerr = s.repo.ConvictCascade(ctx, accountID, reason)
		return rerr
	})
	if err != nil {
		return nil, err
	}

	s.bans.Add(res.AccountID)
	s.log.Info("conviction cascade",
		zap.String("account_id", res.AccountID.String()),
		zap.Bool("already_banned", res.AlreadyBanned),
		zap.Int("demoted", len(res.DemotedAccountIDs)),
	)
	return res, nil
}

// SweepInactiveSponsors applies the inactivity sweep.
func (s *ModerationServiceImpl) SweepInactiveSponsors(ctx context.Context, threshold time.Duration) ([]uuid.UUID, error) {
	if threshold <= 0 {
		return nil, errors.New("validation: non-positive threshold")
	}
	var demoted []uuid.UUID
	err := withContentionRetry(ctx, func(ctx context.Context) error {
		var rerr error
		demoted, rerr = s.repo.ExpireInactiveSponsors(ctx, threshold)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("sponsor inactivity sweep",
		zap.Duration("threshold", threshold),
		zap.Int("demoted", len(demoted)),
	)
	return demoted, nil
}
