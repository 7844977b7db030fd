//go:build !integration

package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"vpn-key-subscription/internal/domain"
)

// --- Payment state machine ---

func TestPaymentStatusTransitions(t *testing.T) {
	allowed := map[PaymentStatus][]PaymentStatus{
		PaymentStatusPending:             {PaymentStatusCompleted, PaymentStatusExpired, PaymentStatusWaitingConfirmation},
		PaymentStatusWaitingConfirmation: {PaymentStatusCompleted, PaymentStatusRejected},
	}
	all := []PaymentStatus{
		PaymentStatusPending, PaymentStatusWaitingConfirmation, PaymentStatusCompleted,
		PaymentStatusExpired, PaymentStatusRejected,
	}

	t.Run("should only allow forward edges", func(t *testing.T) {
		for _, from := range all {
			for _, to := range all {
				want := false
				for _, a := range allowed[from] {
					if a == to {
						want = true
					}
				}
				if got := from.CanTransitionTo(to); got != want {
					t.Errorf("%s -> %s: expected %v, but got %v", from, to, want, got)
				}
			}
		}
	})

	t.Run("should report terminal statuses", func(t *testing.T) {
		for _, s := range []PaymentStatus{PaymentStatusCompleted, PaymentStatusExpired, PaymentStatusRejected} {
			if !s.IsTerminal() {
				t.Errorf("expected %s to be terminal", s)
			}
		}
		for _, s := range []PaymentStatus{PaymentStatusPending, PaymentStatusWaitingConfirmation, PaymentStatus("bogus")} {
			if s.IsTerminal() {
				t.Errorf("expected %s not to be terminal", s)
			}
		}
	})
}

func TestPaymentValidate(t *testing.T) {
	base := func() *Payment {
		return &Payment{ID: "pay_1", OwnerID: "o1", Plan: "basic", CurrencyCode: "ton", Status: PaymentStatusPending}
	}

	t.Run("should accept a pending payment without completion fields", func(t *testing.T) {
		if err := base().Validate(); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
	})

	t.Run("should reject completion fields on a non-completed payment", func(t *testing.T) {
		p := base()
		tx := "abc"
		p.SettlementTxID = &tx
		if err := p.Validate(); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected a validation error, but got: %v", err)
		}
	})

	t.Run("should require all completion fields on a completed payment", func(t *testing.T) {
		p := base()
		p.Status = PaymentStatusCompleted
		now := time.Now()
		p.CompletedAt = &now
		if err := p.Validate(); err == nil {
			t.Fatal("expected an error, but got nil")
		}
		tx, cred := "abc", "cred"
		p.SettlementTxID, p.IssuedCredentialID = &tx, &cred
		if err := p.Validate(); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
	})
}

func TestPaymentOverdue(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	p := &Payment{ExpiryTime: deadline}
	if p.Overdue(deadline) {
		t.Error("expected payment not to be overdue exactly at the deadline")
	}
	if !p.Overdue(deadline.Add(time.Millisecond)) {
		t.Error("expected payment to be overdue after the deadline")
	}
}

// --- Credential ---

func TestCredentialExpiry(t *testing.T) {
	t.Run("should add calendar months", func(t *testing.T) {
		issued := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
		got := CredentialExpiry(issued, 3)
		want := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Fatalf("expected %v, but got %v", want, got)
		}
	})

	t.Run("should treat expiry at now as expired", func(t *testing.T) {
		now := time.Now()
		c := &Credential{IsActive: true, ExpiresAt: now}
		if !c.NeedsDeactivation(now) {
			t.Error("expected credential expiring at now to need deactivation")
		}
		c.ExpiresAt = now.Add(time.Second)
		if c.NeedsDeactivation(now) {
			t.Error("expected live credential not to need deactivation")
		}
	})
}

// --- Period ---

func TestParsePeriod(t *testing.T) {
	cases := map[string]int{"monthly": 1, "Quarterly": 3, " yearly ": 12, "6": 6}
	for in, want := range cases {
		got, err := ParsePeriod(in)
		if err != nil {
			t.Fatalf("ParsePeriod(%q): expected no error, but got: %v", in, err)
		}
		if got != want {
			t.Errorf("ParsePeriod(%q): expected %d, but got %d", in, want, got)
		}
	}
	for _, bad := range []string{"", "weekly", "0", "-3"} {
		if _, err := ParsePeriod(bad); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("ParsePeriod(%q): expected validation error, but got: %v", bad, err)
		}
	}
}

func TestPeriodUnmarshalJSON(t *testing.T) {
	var req struct {
		Period Period `json:"period"`
	}
	for body, want := range map[string]int{
		`{"period": 12}`:          12,
		`{"period": "quarterly"}`: 3,
		`{"period": "1"}`:         1,
	} {
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			t.Fatalf("%s: expected no error, but got: %v", body, err)
		}
		if req.Period.Months() != want {
			t.Errorf("%s: expected %d months, but got %d", body, want, req.Period.Months())
		}
	}
	if err := json.Unmarshal([]byte(`{"period": "fortnightly"}`), &req); !errors.Is(err, domain.ErrInvalidPeriod) {
		t.Errorf("expected ErrInvalidPeriod, but got: %v", err)
	}
}

// --- Owner ---

func TestNewOwner(t *testing.T) {
	t.Run("should create an owner with a generated id", func(t *testing.T) {
		o, err := NewOwner("", 42, "alice")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if o.ID == "" {
			t.Error("expected owner ID to be non-empty")
		}
	})

	t.Run("should fail with empty username", func(t *testing.T) {
		o, err := NewOwner("", 42, "")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, but got %v", err)
		}
		if o != nil {
			t.Error("expected owner to be nil on error")
		}
	})
}
