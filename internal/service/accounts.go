package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/vouchnet/trustd/internal/bancache"
	"github.com/vouchnet/trustd/internal/errs"
	"github.com/vouchnet/trustd/internal/model"
	"github.com/vouchnet/trustd/internal/repository"
)

// AccountService covers account lifecycle around the moderation core:
// bootstrap creation, invite issuance/redemption, liveness, status reads
// and the ban lookup.
type AccountService interface {
	// CreateBootstrap creates an initial trusted account with no sponsor.
	CreateBootstrap(ctx context.Context, username string) (*model.Account, error)
	// IssueInvite creates an invite code; only active accounts may issue.
	IssueInvite(ctx context.Context, issuerID uuid.UUID, maxUses int, expiresIn time.Duration) (*model.InviteCode, error)
	// ListInvites returns codes issued by one account.
	ListInvites(ctx context.Context, issuerID uuid.UUID) ([]model.InviteCode, error)
	// RedeemInvite consumes a code and creates the sponsored account.
	RedeemInvite(ctx context.Context, code, username string) (*model.Account, error)
	// StatusOf reports status, trust days and demerits for one account.
	StatusOf(ctx context.Context, accountID uuid.UUID) (*model.StatusInfo, error)
	// IsBanned answers from the ban cache, falling back to the store on miss.
	IsBanned(ctx context.Context, accountID uuid.UUID) (bool, error)
	// Heartbeat records a liveness signal.
	Heartbeat(ctx context.Context, accountID uuid.UUID) error
	// SponsorOf returns the direct sponsor edge, nil for bootstrap accounts.
	SponsorOf(ctx context.Context, accountID uuid.UUID) (*uuid.UUID, error)
	// Descendants returns the transitive closure along sponsor edges.
	Descendants(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error)
	// Events returns recent audit-log entries for one account.
	Events(ctx context.Context, accountID uuid.UUID, limit int) ([]model.AccountEvent, error)
	// RebuildBanCache reloads the ban projection from the store.
	RebuildBanCache(ctx context.Context) (int, error)
}

type AccountServiceImpl struct {
	accounts repository.AccountRepository
	invites  repository.InviteRepository
	events   repository.EventRepository
	graph    repository.GraphRepository
	bans     *bancache.Cache
	maxUses  int
	log      *zap.Logger
}

// NewAccountService constructs AccountService with required dependencies.
// maxUses caps invite code multi-use.
func NewAccountService(
	accounts repository.AccountRepository,
	invites repository.InviteRepository,
	events repository.EventRepository,
	graph repository.GraphRepository,
	bans *bancache.Cache,
	maxUses int,
	log *zap.Logger,
) *AccountServiceImpl {
	if maxUses <= 0 {
		maxUses = 1
	}
	return &AccountServiceImpl{
		accounts: accounts, invites: invites, events: events, graph: graph,
		bans: bans, maxUses: maxUses, log: log,
	}
}

// CreateBootstrap creates a sponsor-less root account.
func (s *AccountServiceImpl) CreateBootstrap(ctx context.Context, username string) (*model.Account, error) {
	if username == "" {
		return nil, errors.New("validation: empty username")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	a := &model.Account{ID: id, Username: username}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, err
	}
	s.log.Info("bootstrap account created", zap.String("account_id", id.String()))
	return a, nil
}

// IssueInvite creates an invite code for an active issuer.
func (s *AccountServiceImpl) IssueInvite(ctx context.Context, issuerID uuid.UUID, maxUses int, expiresIn time.Duration) (*model.InviteCode, error) {
	if issuerID == uuid.Nil {
		return nil, errors.New("validation: empty issuerID")
	}
	if maxUses <= 0 || maxUses > s.maxUses {
		maxUses = s.maxUses
	}
	issuer, err := s.accounts.GetByID(ctx, issuerID)
	if err != nil {
		return nil, err
	}
	if issuer.Status != model.StatusActive {
		return nil, fmt.Errorf("issue invite: %w", errs.ErrInvalidState)
	}

	code, err := newInviteCode()
	if err != nil {
		return nil, err
	}
	inv := &model.InviteCode{Code: code, IssuerID: issuerID, MaxUses: maxUses, IsActive: true}
	if expiresIn > 0 {
		t := time.Now().Add(expiresIn)
		inv.ExpiresAt = &t
	}
	if err := s.invites.Create(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvites returns codes issued by one account.
func (s *AccountServiceImpl) ListInvites(ctx context.Context, issuerID uuid.UUID) ([]model.InviteCode, error) {
	if issuerID == uuid.Nil {
		return nil, errors.New("validation: empty issuerID")
	}
	return s.invites.ListForIssuer(ctx, issuerID)
}

// RedeemInvite consumes a code and creates the new sponsored account.
func (s *AccountServiceImpl) RedeemInvite(ctx context.Context, code, username string) (*model.Account, error) {
	if code == "" || username == "" {
		return nil, errors.New("validation: empty code/username")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	var acc *model.Account
	err = withContentionRetry(ctx, func(ctx context.Context) error {
		var rerr error
		acc, rerr = s.invites.Redeem(ctx, code, id, username)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("invite redeemed",
		zap.String("account_id", acc.ID.String()),
		zap.String("sponsor_id", acc.SponsorID.String()),
	)
	return acc, nil
}

// StatusOf reports {status, trustDays, demerits} for one account.
func (s *AccountServiceImpl) StatusOf(ctx context.Context, accountID uuid.UUID) (*model.StatusInfo, error) {
	if accountID == uuid.Nil {
		return nil, errors.New("validation: empty accountID")
	}
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &model.StatusInfo{
		Status:    a.Status,
		TrustDays: a.TrustDays(time.Now()),
		Demerits:  a.Demerits,
	}, nil
}

// IsBanned consults the cache first; a store hit on cache miss repairs the
// cache, keeping the false-negative window to one write cycle.
func (s *AccountServiceImpl) IsBanned(ctx context.Context, accountID uuid.UUID) (bool, error) {
	if accountID == uuid.Nil {
		return false, errors.New("validation: empty accountID")
	}
	if s.bans.Contains(accountID) {
		return true, nil
	}
	banned, err := s.accounts.IsBanned(ctx, accountID)
	if err != nil {
		return false, err
	}
	if banned {
		s.bans.Add(accountID)
	}
	return banned, nil
}

// Heartbeat records a liveness signal for the sweep to consume.
func (s *AccountServiceImpl) Heartbeat(ctx context.Context, accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return errors.New("validation: empty accountID")
	}
	return s.accounts.Heartbeat(ctx, accountID)
}

// SponsorOf returns the direct sponsor edge.
func (s *AccountServiceImpl) SponsorOf(ctx context.Context, accountID uuid.UUID) (*uuid.UUID, error) {
	if accountID == uuid.Nil {
		return nil, errors.New("validation: empty accountID")
	}
	return s.graph.DirectSponsorOf(ctx, accountID)
}

// Descendants returns every account the given one transitively vouched for.
func (s *AccountServiceImpl) Descendants(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	if accountID == uuid.Nil {
		return nil, errors.New("validation: empty accountID")
	}
	return s.graph.DescendantsOf(ctx, accountID)
}

// Events returns recent audit-log entries, newest first.
func (s *AccountServiceImpl) Events(ctx context.Context, accountID uuid.UUID, limit int) ([]model.AccountEvent, error) {
	if accountID == uuid.Nil {
		return nil, errors.New("validation: empty accountID")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.events.ListForAccount(ctx, accountID, limit)
}

// RebuildBanCache reloads the projection from the store and reports the
// number of banned accounts.
func (s *AccountServiceImpl) RebuildBanCache(ctx context.Context) (int, error) {
	ids, err := s.accounts.ListBannedIDs(ctx)
	if err != nil {
		return 0, err
	}
	s.bans.Replace(ids)
	return len(ids), nil
}

// newInviteCode produces a short URL-safe random code.
func newInviteCode() (string, error) {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
