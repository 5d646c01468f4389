package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/vouchnet/trustd/internal/model"
)

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.FromString(r.PathValue("id"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// ConvictRequest is the admin conviction command.
type ConvictRequest struct {
	AccountID uuid.UUID `json:"account_id"`
	Reason    string    `json:"reason"`
}

// ConvictResponse reports the cascade's effects.
type ConvictResponse struct {
	BannedAccountID   uuid.UUID   `json:"banned_account_id"`
	AlreadyBanned     bool        `json:"already_banned"`
	PenalizedSponsor  *uuid.UUID  `json:"penalized_sponsor_id,omitempty"`
	DemotedAccountIDs []uuid.UUID `json:"demoted_account_ids"`
}

func (s *Server) handleConvict(w http.ResponseWriter, r *http.Request) {
	var req ConvictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == uuid.Nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	res, err := s.moderation.Convict(r.Context(), req.AccountID, req.Reason)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	demoted := res.DemotedAccountIDs
	if demoted == nil {
		demoted = []uuid.UUID{}
	}
	s.writeJSON(w, http.StatusOK, ConvictResponse{
		BannedAccountID:   res.AccountID,
		AlreadyBanned:     res.AlreadyBanned,
		PenalizedSponsor:  res.PenalizedSponsor,
		DemotedAccountIDs: demoted,
	})
}

// SweepRequest triggers a sponsor-inactivity sweep. ThresholdHours falls
// back to the configured default when zero.
type SweepRequest struct {
	ThresholdHours int `json:"threshold_hours"`
}

// SweepResponse reports which accounts the sweep demoted.
type SweepResponse struct {
	DemotedAccountIDs []uuid.UUID `json:"demoted_account_ids"`
	Count             int         `json:"count"`
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	threshold := s.sweepDefault
	if req.ThresholdHours > 0 {
		threshold = time.Duration(req.ThresholdHours) * time.Hour
	}
	demoted, err := s.moderation.SweepInactiveSponsors(r.Context(), threshold)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if demoted == nil {
		demoted = []uuid.UUID{}
	}
	s.writeJSON(w, http.StatusOK, SweepResponse{DemotedAccountIDs: demoted, Count: len(demoted)})
}

// BootstrapRequest creates an initial trusted account.
type BootstrapRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	var req BootstrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	acc, err := s.accounts.CreateBootstrap(r.Context(), req.Username)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, accountResponse(acc))
}

// RecoverRequest names the new sponsor for a revouch attempt.
type RecoverRequest struct {
	SponsorID uuid.UUID `json:"sponsor_id"`
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad id"})
		return
	}
	var req RecoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SponsorID == uuid.Nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	acc, err := s.recovery.Recover(r.Context(), id, req.SponsorID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, accountResponse(acc))
}

// StatusResponse answers a status query.
type StatusResponse struct {
	Status    string `json:"status"`
	TrustDays int    `json:"trust_days"`
	Demerits  int    `json:"demerits"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad id"})
		return
	}
	info, err := s.accounts.StatusOf(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Status:    string(info.Status),
		TrustDays: info.TrustDays,
		Demerits:  info.Demerits,
	})
}

func (s *Server) handleBanned(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad id"})
		return
	}
	banned, err := s.accounts.IsBanned(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"banned": banned})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad id"})
		return
	}
	if err := s.accounts.Heartbeat(r.Context(), id); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSponsor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad id"})
		return
	}
	sponsor, err := s.accounts.SponsorOf(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]*uuid.UUID{"sponsor_id": sponsor})
}

func (s *Server) handleDescendants(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad id"})
		return
	}
	descendants, err := s.accounts.Descendants(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if descendants == nil {
		descendants = []uuid.UUID{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"descendant_ids": descendants,
		"count":          len(descendants),
	})
}

// EventResponse is one audit-log row.
type EventResponse struct {
	ID               uuid.UUID      `json:"id"`
	Kind             string         `json:"kind"`
	RelatedAccountID *uuid.UUID     `json:"related_account_id,omitempty"`
	Metadata         map[string]any `json:"metadata"`
	OccurredAt       time.Time      `json:"occurred_at"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad id"})
		return
	}
	events, err := s.accounts.Events(r.Context(), id, 100)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	out := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, EventResponse{
			ID:               ev.ID,
			Kind:             string(ev.Kind),
			RelatedAccountID: ev.RelatedAccountID,
			Metadata:         ev.Metadata,
			OccurredAt:       ev.OccurredAt,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// IssueInviteRequest creates a code on behalf of an issuer.
type IssueInviteRequest struct {
	IssuerID       uuid.UUID `json:"issuer_id"`
	MaxUses        int       `json:"max_uses"`
	ExpiresInHours int       `json:"expires_in_hours"`
}

// InviteResponse describes one invite code.
type InviteResponse struct {
	Code      string     `json:"code"`
	IssuerID  uuid.UUID  `json:"issuer_id"`
	MaxUses   int        `json:"max_uses"`
	Uses      int        `json:"uses"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsActive  bool       `json:"is_active"`
}

func inviteResponse(inv *model.InviteCode) InviteResponse {
	return InviteResponse{
		Code:      inv.Code,
		IssuerID:  inv.IssuerID,
		MaxUses:   inv.MaxUses,
		Uses:      inv.Uses,
		ExpiresAt: inv.ExpiresAt,
		IsActive:  inv.IsActive,
	}
}

func (s *Server) handleIssueInvite(w http.ResponseWriter, r *http.Request) {
	var req IssueInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IssuerID == uuid.Nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	inv, err := s.accounts.IssueInvite(r.Context(), req.IssuerID, req.MaxUses,
		time.Duration(req.ExpiresInHours)*time.Hour)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, inviteResponse(inv))
}

func (s *Server) handleListInvites(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad id"})
		return
	}
	invites, err := s.accounts.ListInvites(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	out := make([]InviteResponse, 0, len(invites))
	for i := range invites {
		out = append(out, inviteResponse(&invites[i]))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// RedeemInviteRequest creates a sponsored account from a code.
type RedeemInviteRequest struct {
	Code     string `json:"code"`
	Username string `json:"username"`
}

func (s *Server) handleRedeemInvite(w http.ResponseWriter, r *http.Request) {
	var req RedeemInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" || req.Username == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	acc, err := s.accounts.RedeemInvite(r.Context(), req.Code, req.Username)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, accountResponse(acc))
}

// AccountResponse describes one account.
type AccountResponse struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"username"`
	Status    string     `json:"status"`
	SponsorID *uuid.UUID `json:"sponsor_id,omitempty"`
	Demerits  int        `json:"demerits"`
	CreatedAt time.Time  `json:"created_at"`
}

func accountResponse(a *model.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Username:  a.Username,
		Status:    string(a.Status),
		SponsorID: a.SponsorID,
		Demerits:  a.Demerits,
		CreatedAt: a.CreatedAt,
	}
}
