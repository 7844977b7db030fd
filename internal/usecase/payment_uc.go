package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"vpn-key-subscription/internal/domain"
	"vpn-key-subscription/internal/domain/model"
	"vpn-key-subscription/internal/domain/ports/adapter"
	"vpn-key-subscription/internal/domain/ports/repository"
	"vpn-key-subscription/internal/infra/logging"
	"vpn-key-subscription/internal/infra/metrics"
)

var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	Create(ctx context.Context, in CreatePaymentInput) (*model.Payment, error)
	// Get lazily expires an overdue pending payment and attaches the issued
	// credential of a completed one.
	Get(ctx context.Context, id string) (*PaymentView, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Payment, error)

	// Manual transfer flow.
	Claim(ctx context.Context, id string) (*model.Payment, error)
	Approve(ctx context.Context, id, operator, reference string) (*PaymentView, error)
	Reject(ctx context.Context, id, operator string) (*model.Payment, error)

	// VerifyTick runs one verification step for a crypto payment. done is
	// true once the payment no longer needs polling.
	VerifyTick(ctx context.Context, id string) (done bool, err error)
	// Check runs one tick on demand and returns the resulting state.
	Check(ctx context.Context, id string) (*PaymentView, error)
	// ResumePending reschedules every pending crypto payment. Called at boot.
	ResumePending(ctx context.Context) (int, error)
}

// VerificationScheduler starts background polling for a payment id.
// Scheduling an id that is already polled is a no-op.
type VerificationScheduler interface {
	Schedule(paymentID string)
}

type CreatePaymentInput struct {
	OwnerID      string
	Plan         string
	PeriodMonths int
	Currency     string
}

type PaymentView struct {
	Payment    *model.Payment
	Credential *model.Credential // set once completed
}

type PaymentOptions struct {
	CryptoWindow  time.Duration
	ManualWindow  time.Duration
	VerifyTimeout time.Duration
	// ManualAddress is shown to the payer of a manual transfer, e.g. a card
	// number and bank name.
	ManualAddress string
	Clock         Clock
}

// PaymentDeps groups the collaborators of the payment use case.
type PaymentDeps struct {
	Payments    repository.PaymentRepository
	Owners      repository.OwnerRepository
	TxManager   repository.TransactionManager
	Credentials CredentialUseCase
	Pricing     PricingUseCase
	Verifiers   adapter.VerifierRegistry
	Notifier    adapter.Notifier
	Scheduler   VerificationScheduler
}

type paymentUC struct {
	PaymentDeps
	opts PaymentOptions
	now  Clock
	log  *zerolog.Logger
}

// errLostRace aborts a completion transaction whose status CAS matched no
// row, rolling back the credential written just before it.
var errLostRace = errors.New("payment changed concurrently")

func NewPaymentUseCase(deps PaymentDeps, opts PaymentOptions, logger *zerolog.Logger) *paymentUC {
	if opts.CryptoWindow <= 0 {
		opts.CryptoWindow = 30 * time.Minute
	}
	if opts.ManualWindow <= 0 {
		opts.ManualWindow = 24 * time.Hour
	}
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = 15 * time.Second
	}
	l := logger.With().Str("component", "PaymentUseCase").Logger()
	return &paymentUC{PaymentDeps: deps, opts: opts, now: orSystemClock(opts.Clock), log: &l}
}

func (u *paymentUC) Create(ctx context.Context, in CreatePaymentInput) (*model.Payment, error) {
	if in.PeriodMonths <= 0 {
		return nil, domain.ErrInvalidPeriod
	}
	if _, err := findOwner(ctx, u.Owners, in.OwnerID); err != nil {
		return nil, err
	}
	fiat, err := u.Pricing.Price(in.Plan, in.PeriodMonths)
	if err != nil {
		return nil, err
	}

	now := u.now()
	p := &model.Payment{
		OwnerID:      in.OwnerID,
		Status:       model.PaymentStatusPending,
		FiatAmount:   fiat,
		FiatCurrency: u.Pricing.FiatCurrency(),
		Plan:         in.Plan,
		PeriodMonths: in.PeriodMonths,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if strings.EqualFold(strings.TrimSpace(in.Currency), model.ManualCurrency) {
		if u.opts.ManualAddress == "" {
			return nil, fmt.Errorf("%w: manual payments are not configured", domain.ErrUnknownCurrency)
		}
		p.Method = model.PaymentMethodManual
		p.CurrencyCode = model.ManualCurrency
		p.SettlementAddress = u.opts.ManualAddress
		p.SettlementAmount = float64(fiat)
		p.ExpiryTime = now.Add(u.opts.ManualWindow)
	} else {
		route, err := u.Verifiers.Lookup(in.Currency)
		if err != nil {
			return nil, err
		}
		amount, err := u.Pricing.Quote(ctx, route.Currency, fiat)
		if err != nil {
			return nil, err
		}
		p.Method = model.PaymentMethodCrypto
		p.CurrencyCode = route.Currency
		p.SettlementAddress = route.Address
		p.SettlementAmount = amount
		p.ExpiryTime = now.Add(u.opts.CryptoWindow)
	}
	p.ID = newPaymentID(now)

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := u.Payments.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(p.Status))

	logging.With(logging.WithPaymentID(ctx, p.ID), u.log).Info().
		Str("owner_id", p.OwnerID).
		Str("currency", p.CurrencyCode).
		Float64("amount", p.SettlementAmount).
		Str("address", logging.Redact(p.SettlementAddress)).
		Time("expires", p.ExpiryTime).
		Msg("payment created")

	if p.IsCrypto() && u.Scheduler != nil {
		u.Scheduler.Schedule(p.ID)
	}
	return p, nil
}

func (u *paymentUC) Get(ctx context.Context, id string) (*PaymentView, error) {
	p, err := u.Payments.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if err := u.expireIfOverdue(ctx, p, "lazy"); err != nil {
		return nil, err
	}
	return u.view(ctx, p)
}

func (u *paymentUC) ListByOwner(ctx context.Context, ownerID string) ([]*model.Payment, error) {
	if _, err := findOwner(ctx, u.Owners, ownerID); err != nil {
		return nil, err
	}
	list, err := u.Payments.ListByOwner(ctx, repository.NoTX, ownerID)
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		if err := u.expireIfOverdue(ctx, p, "lazy"); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (u *paymentUC) Claim(ctx context.Context, id string) (*model.Payment, error) {
	p, err := u.Payments.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if p.Method != model.PaymentMethodManual {
		return nil, domain.ErrNotManualPayment
	}
	if p.Status != model.PaymentStatusPending {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTransition, p.Status)
	}

	now := u.now()
	if p.Overdue(now) {
		if err := u.expireIfOverdue(ctx, p, "claim"); err != nil {
			return nil, err
		}
		return nil, domain.ErrPaymentExpired
	}

	ok, err := u.Payments.TransitionStatus(ctx, repository.NoTX, p.ID, model.PaymentStatusPending, model.PaymentStatusWaitingConfirmation, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidTransition
	}
	p.Status = model.PaymentStatusWaitingConfirmation
	p.UpdatedAt = now
	metrics.IncPayment(string(p.Status))
	logging.With(logging.WithPaymentID(ctx, p.ID), u.log).Info().Msg("manual payment claimed")

	u.notify(ctx, adapter.Notification{OwnerID: p.OwnerID, Outcome: adapter.OutcomePaymentAwaitingApproval, Payment: p})
	return p, nil
}

func (u *paymentUC) Approve(ctx context.Context, id, operator, reference string) (*PaymentView, error) {
	p, err := u.Payments.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if p.Method != model.PaymentMethodManual {
		return nil, domain.ErrNotManualPayment
	}
	if p.Status != model.PaymentStatusWaitingConfirmation {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTransition, p.Status)
	}
	if strings.TrimSpace(reference) == "" {
		reference = "manual:" + operator + ":" + p.ID
	}

	cred, won, err := u.complete(ctx, p, model.PaymentStatusWaitingConfirmation, reference)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, domain.ErrInvalidTransition
	}
	logging.With(logging.WithPaymentID(ctx, p.ID), u.log).Info().Str("operator", operator).Str("uuid", cred.UUID).Msg("manual payment approved")

	u.notify(ctx, adapter.Notification{OwnerID: p.OwnerID, Outcome: adapter.OutcomePaymentConfirmed, Payment: p, Credential: cred})
	return &PaymentView{Payment: p, Credential: cred}, nil
}

func (u *paymentUC) Reject(ctx context.Context, id, operator string) (*model.Payment, error) {
	p, err := u.Payments.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if p.Method != model.PaymentMethodManual {
		return nil, domain.ErrNotManualPayment
	}
	now := u.now()
	ok, err := u.Payments.TransitionStatus(ctx, repository.NoTX, p.ID, model.PaymentStatusWaitingConfirmation, model.PaymentStatusRejected, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTransition, p.Status)
	}
	p.Status = model.PaymentStatusRejected
	p.UpdatedAt = now
	metrics.IncPayment(string(p.Status))
	logging.With(logging.WithPaymentID(ctx, p.ID), u.log).Info().Str("operator", operator).Msg("manual payment rejected")

	u.notify(ctx, adapter.Notification{OwnerID: p.OwnerID, Outcome: adapter.OutcomePaymentRejected, Payment: p})
	return p, nil
}

func (u *paymentUC) VerifyTick(ctx context.Context, id string) (bool, error) {
	ctx = logging.WithPaymentID(ctx, id)
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "PaymentUC.VerifyTick")()

	p, err := u.Payments.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return true, err
		}
		return false, err
	}
	if p.Status != model.PaymentStatusPending || !p.IsCrypto() {
		return true, nil
	}

	now := u.now()
	if p.Overdue(now) {
		if err := u.expireIfOverdue(ctx, p, "tick"); err != nil {
			return false, err
		}
		log.Info().Msg("payment window closed without settlement")
		return true, nil
	}

	route, err := u.Verifiers.Lookup(p.CurrencyCode)
	if err != nil {
		return false, err
	}
	used, err := u.Payments.SettlementTxIDs(ctx, repository.NoTX, p.CurrencyCode, p.CreatedAt)
	if err != nil {
		return false, err
	}

	vctx, cancel := context.WithTimeout(ctx, u.opts.VerifyTimeout)
	started := time.Now()
	res, err := route.Verifier.Check(vctx, adapter.CheckRequest{
		Currency:  p.CurrencyCode,
		Address:   p.SettlementAddress,
		MinAmount: p.SettlementAmount,
		Since:     p.CreatedAt,
		Exclude:   used,
	})
	cancel()
	switch {
	case err != nil:
		metrics.ObserveVerifyCheck(p.CurrencyCode, "error", time.Since(started))
		log.Warn().Err(err).Msg("settlement check failed; retrying next tick")
		return false, err
	case !res.Confirmed:
		metrics.ObserveVerifyCheck(p.CurrencyCode, "unconfirmed", time.Since(started))
		return false, nil
	}
	metrics.ObserveVerifyCheck(p.CurrencyCode, "confirmed", time.Since(started))

	// The explorer call can outlive the window.
	if p.Overdue(u.now()) {
		if err := u.expireIfOverdue(ctx, p, "tick"); err != nil {
			return false, err
		}
		log.Info().Str("tx_id", res.TxID).Msg("settlement seen after the payment window closed")
		return true, nil
	}

	cred, won, err := u.complete(ctx, p, model.PaymentStatusPending, res.TxID)
	if errors.Is(err, domain.ErrSettlementTxUsed) {
		log.Warn().Str("tx_id", res.TxID).Msg("transfer already settled another payment; still waiting")
		return false, nil
	}
	if err != nil {
		log.Error().Err(err).Str("tx_id", res.TxID).Msg("credential issuance failed; payment stays pending")
		return false, err
	}
	if !won {
		log.Debug().Msg("payment completed elsewhere")
		return true, nil
	}
	log.Info().Str("tx_id", res.TxID).Float64("observed", res.ObservedAmount).Str("uuid", cred.UUID).Msg("payment confirmed")

	u.notify(ctx, adapter.Notification{OwnerID: p.OwnerID, Outcome: adapter.OutcomePaymentConfirmed, Payment: p, Credential: cred})
	return true, nil
}

func (u *paymentUC) Check(ctx context.Context, id string) (*PaymentView, error) {
	if _, err := u.VerifyTick(ctx, id); err != nil {
		return nil, err
	}
	return u.Get(ctx, id)
}

func (u *paymentUC) ResumePending(ctx context.Context) (int, error) {
	pending, err := u.Payments.ListPending(ctx, repository.NoTX, model.PaymentMethodCrypto)
	if err != nil {
		return 0, err
	}
	if u.Scheduler != nil {
		for _, p := range pending {
			u.Scheduler.Schedule(p.ID)
		}
	}
	u.log.Info().Int("count", len(pending)).Msg("pending crypto payments rescheduled")
	return len(pending), nil
}

// complete issues the credential and moves the payment to completed in one
// transaction. won is false when another caller changed the payment first;
// nothing is written in that case. A txID that already settled another
// payment fails with domain.ErrSettlementTxUsed and also writes nothing.
func (u *paymentUC) complete(ctx context.Context, p *model.Payment, from model.PaymentStatus, txID string) (*model.Credential, bool, error) {
	now := u.now()
	var cred *model.Credential
	err := u.TxManager.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		c, err := u.Credentials.Issue(ctx, tx, p.OwnerID, p.Plan, p.PeriodMonths, false)
		if err != nil {
			return fmt.Errorf("issue credential: %w", err)
		}
		ok, err := u.Payments.Complete(ctx, tx, p.ID, from, txID, c.UUID, now)
		if err != nil {
			return err
		}
		if !ok {
			return errLostRace
		}
		cred = c
		return nil
	})
	if errors.Is(err, errLostRace) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	p.Status = model.PaymentStatusCompleted
	p.UpdatedAt = now
	p.CompletedAt = &now
	p.SettlementTxID = &txID
	p.IssuedCredentialID = &cred.UUID

	metrics.IncPayment(string(p.Status))
	metrics.AddPaymentRevenue(p.FiatCurrency, p.FiatAmount)
	metrics.IncCredentialIssued(string(p.Method))
	return cred, true, nil
}

// expireIfOverdue moves an overdue pending payment to expired. It is a no-op
// for payments in any other state or still inside their window.
func (u *paymentUC) expireIfOverdue(ctx context.Context, p *model.Payment, source string) error {
	now := u.now()
	if p.Status != model.PaymentStatusPending || !p.Overdue(now) {
		return nil
	}
	ok, err := u.Payments.TransitionStatus(ctx, repository.NoTX, p.ID, model.PaymentStatusPending, model.PaymentStatusExpired, now)
	if err != nil {
		return err
	}
	if ok {
		metrics.AddPaymentsExpired(source, 1)
		p.Status = model.PaymentStatusExpired
		p.UpdatedAt = now
		return nil
	}
	// Lost to another writer: report what is stored now.
	fresh, err := u.Payments.FindByID(ctx, repository.NoTX, p.ID)
	if err != nil {
		return err
	}
	*p = *fresh
	return nil
}

func (u *paymentUC) view(ctx context.Context, p *model.Payment) (*PaymentView, error) {
	v := &PaymentView{Payment: p}
	if p.Status == model.PaymentStatusCompleted && p.IssuedCredentialID != nil {
		c, err := u.Credentials.Get(ctx, *p.IssuedCredentialID)
		if err != nil {
			return nil, err
		}
		v.Credential = c
	}
	return v, nil
}

func (u *paymentUC) notify(ctx context.Context, n adapter.Notification) {
	if u.Notifier == nil {
		return
	}
	if err := u.Notifier.Notify(ctx, n); err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Str("outcome", string(n.Outcome)).Msg("notification failed")
	}
}

func newPaymentID(now time.Time) string {
	return "pay_" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}
