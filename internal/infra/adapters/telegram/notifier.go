package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vpn-key-subscription/internal/domain/model"
	"vpn-key-subscription/internal/domain/ports/adapter"
	"vpn-key-subscription/internal/domain/ports/repository"
)

var _ adapter.Notifier = (*Notifier)(nil)

// Notifier renders payment outcomes as chat messages. Owner facing outcomes
// go to the owner's chat; manual payments awaiting approval go to every
// admin chat.
type Notifier struct {
	sender   Sender
	owners   repository.OwnerRepository
	adminIDs []int64
	tr       Translator
}

// Translator renders a message template; see internal/infra/i18n.
type Translator interface {
	T(key string, args ...any) string
}

func NewNotifier(sender Sender, owners repository.OwnerRepository, adminIDs []int64, tr Translator) *Notifier {
	return &Notifier{sender: sender, owners: owners, adminIDs: adminIDs, tr: tr}
}

func (n *Notifier) Notify(ctx context.Context, note adapter.Notification) error {
	if note.Outcome == adapter.OutcomePaymentAwaitingApproval {
		text := n.awaitingApprovalText(note.Payment)
		var errs []error
		for _, id := range n.adminIDs {
			if err := n.sender.SendMessage(ctx, id, text); err != nil {
				errs = append(errs, fmt.Errorf("admin %d: %w", id, err))
			}
		}
		return errors.Join(errs...)
	}

	owner, err := n.owners.FindByID(ctx, nil, note.OwnerID)
	if err != nil {
		return fmt.Errorf("notify: find owner %s: %w", note.OwnerID, err)
	}
	if owner.TelegramID == 0 {
		return nil
	}

	var text string
	switch note.Outcome {
	case adapter.OutcomePaymentConfirmed:
		text = n.confirmedText(note.Payment, note.Credential)
	case adapter.OutcomePaymentRejected:
		text = n.rejectedText(note.Payment)
	default:
		return fmt.Errorf("notify: unknown outcome %q", note.Outcome)
	}
	return n.sender.SendMessage(ctx, owner.TelegramID, text)
}

func (n *Notifier) confirmedText(p *model.Payment, c *model.Credential) string {
	var b strings.Builder
	b.WriteString(n.tr.T("payment_confirmed"))
	b.WriteByte('\n')
	if p != nil {
		b.WriteString(n.tr.T("payment_plan", p.Plan, p.PeriodMonths))
		b.WriteByte('\n')
	}
	if c != nil {
		b.WriteString(n.tr.T("credential_valid_until", c.ExpiresAt.UTC().Format("2006-01-02 15:04 MST")))
		b.WriteString("\n\n")
		b.WriteString(c.ConfigBlob)
	}
	return b.String()
}

func (n *Notifier) rejectedText(p *model.Payment) string {
	if p == nil {
		return n.tr.T("payment_rejected_generic")
	}
	return n.tr.T("payment_rejected", p.ID)
}

func (n *Notifier) awaitingApprovalText(p *model.Payment) string {
	if p == nil {
		return n.tr.T("manual_awaiting_approval_generic")
	}
	return n.tr.T("manual_awaiting_approval", p.ID, p.OwnerID, p.Plan, p.PeriodMonths, p.FiatAmount, p.FiatCurrency)
}
