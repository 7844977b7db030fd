package model

import (
	"fmt"
	"time"

	"vpn-key-subscription/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending             PaymentStatus = "pending"              // awaiting settlement (crypto) or claim (manual)
	PaymentStatusWaitingConfirmation PaymentStatus = "waiting_confirmation" // manual transfer claimed by the owner; operator decides
	PaymentStatusCompleted           PaymentStatus = "completed"            // settled and credential issued
	PaymentStatusExpired             PaymentStatus = "expired"              // window elapsed without settlement
	PaymentStatusRejected            PaymentStatus = "rejected"             // operator rejected the manual transfer
)

// transitions lists every allowed forward edge of the payment state machine.
var transitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:             {PaymentStatusCompleted, PaymentStatusExpired, PaymentStatusWaitingConfirmation},
	PaymentStatusWaitingConfirmation: {PaymentStatusCompleted, PaymentStatusRejected},
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusWaitingConfirmation, PaymentStatusCompleted,
		PaymentStatusExpired, PaymentStatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s PaymentStatus) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCrypto PaymentMethod = "crypto"
	PaymentMethodManual PaymentMethod = "manual"
)

// ManualCurrency is the currency code a client sends to pay by bank transfer.
const ManualCurrency = "manual"

// Payment records one purchase intent from creation to a terminal outcome.
type Payment struct {
	ID                string        // pay_<ULID>
	OwnerID           string        // owner directory id
	Status            PaymentStatus // see constants above
	Method            PaymentMethod
	FiatAmount        int64  // whole units of FiatCurrency
	FiatCurrency      string // e.g. "RUB"
	CurrencyCode      string // settlement currency, e.g. "usdt_trc20" or "manual"
	SettlementAddress string // wallet address, or bank card for manual transfers
	SettlementAmount  float64
	Plan              string
	PeriodMonths      int
	ExpiryTime        time.Time // settle before this instant
	CreatedAt         time.Time
	UpdatedAt         time.Time
	// Set together, and only when Status is completed:
	CompletedAt        *time.Time
	SettlementTxID     *string
	IssuedCredentialID *string
}

func (p *Payment) IsCrypto() bool { return p.Method == PaymentMethodCrypto }

// Overdue reports whether the settlement window has elapsed at now.
func (p *Payment) Overdue(now time.Time) bool {
	return now.After(p.ExpiryTime)
}

// Validate checks the completion-fields invariant and the basic attributes.
func (p *Payment) Validate() error {
	if p.ID == "" || p.OwnerID == "" || p.Plan == "" || p.CurrencyCode == "" {
		return domain.ErrInvalidArgument
	}
	if !p.Status.Valid() {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidArgument, p.Status)
	}
	completed := p.Status == PaymentStatusCompleted
	hasCompletion := p.CompletedAt != nil && p.SettlementTxID != nil && p.IssuedCredentialID != nil
	noCompletion := p.CompletedAt == nil && p.SettlementTxID == nil && p.IssuedCredentialID == nil
	if completed && !hasCompletion || !completed && !noCompletion {
		return fmt.Errorf("%w: completion fields do not match status %q", domain.ErrInvalidArgument, p.Status)
	}
	return nil
}

// PaymentStats is a status histogram of all payments.
type PaymentStats map[PaymentStatus]int
