package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vpn-key-subscription/internal/domain"
)

// CheckRequest asks whether at least MinAmount of Currency reached Address
// at or after Since.
type CheckRequest struct {
	Currency  string
	Address   string
	MinAmount float64
	Since     time.Time
	// Exclude lists transaction ids that already settled another payment.
	Exclude []string
}

// Excluded reports whether txID is listed in Exclude.
func (r CheckRequest) Excluded(txID string) bool {
	for _, id := range r.Exclude {
		if id == txID {
			return true
		}
	}
	return false
}

type ConfirmationResult struct {
	Confirmed      bool
	TxID           string
	ObservedAmount float64
}

// SettlementVerifier queries an external ledger. It never mutates local
// state. Confirmed=false always means "not seen yet"; failures are returned
// as *TransientError.
type SettlementVerifier interface {
	Check(ctx context.Context, req CheckRequest) (ConfirmationResult, error)
}

// SettlementRoute is what the registry knows about one currency.
type SettlementRoute struct {
	Currency string
	Address  string
	Verifier SettlementVerifier
}

type VerifierRegistry interface {
	// Lookup returns domain.ErrUnknownCurrency for unregistered codes.
	Lookup(currency string) (SettlementRoute, error)
	Currencies() []string
}

// TransientError marks a verifier failure the caller should retry.
type TransientError struct {
	Source string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Source, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == domain.ErrTransient }

func Transient(source string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransientError
	if errors.As(err, &te) {
		return err
	}
	return &TransientError{Source: source, Err: err}
}
