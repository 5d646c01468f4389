package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vouchnet/trustd/internal/errs"
	"github.com/vouchnet/trustd/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	moderation service.ModerationService
	recovery   service.RecoveryService
	accounts   service.AccountService

	sweepDefault time.Duration
	adminKey     []byte
	log          *zap.Logger
}

// New constructs the API server with injected services.
func New(
	moderation service.ModerationService,
	recovery service.RecoveryService,
	accounts service.AccountService,
	sweepDefault time.Duration,
	adminKey []byte,
	log *zap.Logger,
) *Server {
	return &Server{
		moderation:   moderation,
		recovery:     recovery,
		accounts:     accounts,
		sweepDefault: sweepDefault,
		adminKey:     adminKey,
		log:          log,
	}
}

// Handler mounts all routes with logging, recovery and admin-auth middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	admin := AdminOnly(s.adminKey)
	mux.Handle("POST /api/v1/moderation/convict", admin(http.HandlerFunc(s.handleConvict)))
	mux.Handle("POST /api/v1/moderation/sweep", admin(http.HandlerFunc(s.handleSweep)))
	mux.Handle("POST /api/v1/moderation/bootstrap", admin(http.HandlerFunc(s.handleBootstrap)))
	mux.Handle("GET /api/v1/accounts/{id}/events", admin(http.HandlerFunc(s.handleEvents)))

	mux.HandleFunc("POST /api/v1/accounts/{id}/recover", s.handleRecover)
	mux.HandleFunc("GET /api/v1/accounts/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/accounts/{id}/banned", s.handleBanned)
	mux.HandleFunc("POST /api/v1/accounts/{id}/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("GET /api/v1/accounts/{id}/sponsor", s.handleSponsor)
	mux.HandleFunc("GET /api/v1/accounts/{id}/descendants", s.handleDescendants)
	mux.HandleFunc("GET /api/v1/accounts/{id}/invites", s.handleListInvites)
	mux.HandleFunc("POST /api/v1/invites", s.handleIssueInvite)
	mux.HandleFunc("POST /api/v1/invites/redeem", s.handleRedeemInvite)

	return Logging(s.log)(Recover(s.log)(mux))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}

// writeErr maps sentinel errors to status codes and surfaces the gate name
// verbatim so callers know which check failed.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	var status int
	var msg string
	switch {
	case errors.Is(err, errs.ErrNotFound):
		status, msg = http.StatusNotFound, "NotFound"
	case errors.Is(err, errs.ErrAlreadyExists):
		status, msg = http.StatusConflict, "AlreadyExists"
	case errors.Is(err, errs.ErrInvalidState), errors.Is(err, errs.ErrConflictingState):
		status, msg = http.StatusConflict, "InvalidState"
	case errors.Is(err, errs.ErrSponsorIneligible):
		status, msg = http.StatusUnprocessableEntity, "SponsorIneligible"
	case errors.Is(err, errs.ErrSameSponsor):
		status, msg = http.StatusUnprocessableEntity, "SameSponsorRejected"
	case errors.Is(err, errs.ErrCooldownActive):
		status, msg = http.StatusUnprocessableEntity, "CooldownActive"
	case errors.Is(err, errs.ErrInviteInvalid):
		status, msg = http.StatusUnprocessableEntity, "InviteInvalid"
	case errors.Is(err, errs.ErrTxContention):
		status, msg = http.StatusServiceUnavailable, "Contention"
	default:
		s.log.Error("internal error", zap.Error(err))
		status, msg = http.StatusInternalServerError, "Internal"
	}
	s.writeJSON(w, status, map[string]string{"error": msg})
}
