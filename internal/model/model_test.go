package model

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
)

func TestStatus_Transitions(t *testing.T) {
	t.Parallel()
	cases := []struct {
		status     Status
		canBan     bool
		canDemote  bool
		canRecover bool
	}{
		{StatusActive, true, true, false},
		{StatusRevouchRequired, true, true, true},
		{StatusBanned, false, false, false},
	}
	for _, c := range cases {
		if got := c.status.CanBan(); got != c.canBan {
			t.Errorf("%s.CanBan() = %v, want %v", c.status, got, c.canBan)
		}
		if got := c.status.CanDemote(); got != c.canDemote {
			t.Errorf("%s.CanDemote() = %v, want %v", c.status, got, c.canDemote)
		}
		if got := c.status.CanRecover(); got != c.canRecover {
			t.Errorf("%s.CanRecover() = %v, want %v", c.status, got, c.canRecover)
		}
		if !c.status.Valid() {
			t.Errorf("%s.Valid() = false", c.status)
		}
	}
	if Status("suspended").Valid() {
		t.Error("unknown status reported valid")
	}
}

func TestAccount_TrustDays(t *testing.T) {
	t.Parallel()
	now := time.Now()
	started := now.Add(-45 * 24 * time.Hour)

	a := &Account{Status: StatusActive, TrustStartedAt: &started}
	if got := a.TrustDays(now); got != 45 {
		t.Fatalf("TrustDays = %d, want 45", got)
	}

	// trust_days is undefined/zero while not active
	a.Status = StatusRevouchRequired
	if got := a.TrustDays(now); got != 0 {
		t.Fatalf("TrustDays for revouch_required = %d, want 0", got)
	}

	a = &Account{Status: StatusActive, TrustStartedAt: nil}
	if got := a.TrustDays(now); got != 0 {
		t.Fatalf("TrustDays with nil start = %d, want 0", got)
	}

	future := now.Add(time.Hour)
	a = &Account{Status: StatusActive, TrustStartedAt: &future}
	if got := a.TrustDays(now); got != 0 {
		t.Fatalf("TrustDays with future start = %d, want 0", got)
	}
}

func TestEventKind_IsDemotion(t *testing.T) {
	t.Parallel()
	if !EventDemoted.IsDemotion() || !EventSponsorExpired.IsDemotion() {
		t.Fatal("demotion kinds not recognized")
	}
	for _, k := range []EventKind{EventAccountCreated, EventConvicted, EventDemeritAdded, EventRecovered} {
		if k.IsDemotion() {
			t.Fatalf("%s wrongly classified as demotion", k)
		}
	}
}

func TestInviteCode_Redeemable(t *testing.T) {
	t.Parallel()
	now := time.Now()
	issuer := uuid.Must(uuid.NewV4())

	inv := &InviteCode{Code: "c", IssuerID: issuer, MaxUses: 2, Uses: 1, IsActive: true}
	if !inv.Redeemable(now) {
		t.Fatal("active code with remaining uses should be redeemable")
	}

	inv.Uses = 2
	if inv.Redeemable(now) {
		t.Fatal("exhausted code should not be redeemable")
	}

	past := now.Add(-time.Minute)
	inv = &InviteCode{Code: "c", IssuerID: issuer, MaxUses: 1, IsActive: true, ExpiresAt: &past}
	if inv.Redeemable(now) {
		t.Fatal("expired code should not be redeemable")
	}

	inv = &InviteCode{Code: "c", IssuerID: issuer, MaxUses: 1, IsActive: false}
	if inv.Redeemable(now) {
		t.Fatal("deactivated code should not be redeemable")
	}
}
