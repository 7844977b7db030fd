package adapter

import (
	"context"

	"vpn-key-subscription/internal/domain/model"
)

type Outcome string

const (
	OutcomePaymentConfirmed        Outcome = "payment_confirmed"
	OutcomePaymentRejected         Outcome = "payment_rejected"
	OutcomePaymentAwaitingApproval Outcome = "payment_awaiting_approval" // sent to operators
)

type Notification struct {
	OwnerID    string
	Outcome    Outcome
	Payment    *model.Payment
	Credential *model.Credential // set for confirmed payments
}

// Notifier is a one-way output port. Callers invoke it only after the state
// change it reports has been committed.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// SecretSealer seals secret material stored at rest.
type SecretSealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
