package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vpn-key-subscription/internal/domain"
	"vpn-key-subscription/internal/domain/model"
	"vpn-key-subscription/internal/domain/ports/adapter"
	"vpn-key-subscription/internal/domain/ports/repository"
	"vpn-key-subscription/internal/infra/logging"
	"vpn-key-subscription/internal/infra/metrics"
)

var _ CredentialUseCase = (*credentialUC)(nil)

type CredentialUseCase interface {
	// Issue writes a new credential inside tx. It does not commit; callers
	// that complete a payment do so in the same transaction.
	Issue(ctx context.Context, tx repository.Tx, ownerID, plan string, periodMonths int, isTrial bool) (*model.Credential, error)
	GrantTrial(ctx context.Context, ownerID string) (*model.Credential, error)

	// Reads deactivate expired rows before returning them.
	Get(ctx context.Context, uuid string) (*model.Credential, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Credential, error)

	Deactivate(ctx context.Context, uuid string) (*model.Credential, error)
}

// ServerEndpoint is the VPN endpoint written into every config blob.
type ServerEndpoint struct {
	Host string
	Port int
	SNI  string
	Tag  string
}

type CredentialOptions struct {
	TrialDuration time.Duration
	Server        ServerEndpoint
	Clock         Clock
}

type credentialUC struct {
	creds  repository.CredentialRepository
	owners repository.OwnerRepository
	tm     repository.TransactionManager
	sealer adapter.SecretSealer
	opts   CredentialOptions
	now    Clock
	log    *zerolog.Logger
}

func NewCredentialUseCase(
	creds repository.CredentialRepository,
	owners repository.OwnerRepository,
	tm repository.TransactionManager,
	sealer adapter.SecretSealer,
	opts CredentialOptions,
	logger *zerolog.Logger,
) *credentialUC {
	if opts.TrialDuration <= 0 {
		opts.TrialDuration = time.Hour
	}
	l := logger.With().Str("component", "CredentialUseCase").Logger()
	return &credentialUC{
		creds:  creds,
		owners: owners,
		tm:     tm,
		sealer: sealer,
		opts:   opts,
		now:    orSystemClock(opts.Clock),
		log:    &l,
	}
}

func (u *credentialUC) Issue(ctx context.Context, tx repository.Tx, ownerID, plan string, periodMonths int, isTrial bool) (*model.Credential, error) {
	now := u.now()

	c := &model.Credential{
		UUID:         uuid.NewString(),
		OwnerID:      ownerID,
		Plan:         plan,
		PeriodMonths: periodMonths,
		CreatedAt:    now,
		IsActive:     true,
		IsTrial:      isTrial,
	}
	if isTrial {
		c.Plan = model.TrialPlan
		c.PeriodMonths = 0
		c.ExpiresAt = now.Add(u.opts.TrialDuration)

		// An expired trial must not block a new one; clear it first.
		if _, err := u.creds.DeactivateExpiredByOwner(ctx, tx, ownerID, now); err != nil {
			return nil, err
		}
		existing, err := u.creds.FindActiveTrial(ctx, tx, ownerID)
		switch {
		case err == nil && existing != nil:
			return nil, domain.ErrAlreadyHasTrial
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	} else {
		if periodMonths <= 0 {
			return nil, domain.ErrInvalidPeriod
		}
		c.ExpiresAt = model.CredentialExpiry(now, periodMonths)
	}

	blob, err := u.configBlob(c.UUID, c.Plan)
	if err != nil {
		return nil, err
	}
	sealed, err := u.sealer.Encrypt(blob)
	if err != nil {
		return nil, fmt.Errorf("seal config blob: %w", err)
	}

	stored := *c
	stored.ConfigBlob = sealed
	if err := u.creds.Save(ctx, tx, &stored); err != nil {
		return nil, err
	}
	c.ConfigBlob = blob
	return c, nil
}

func (u *credentialUC) GrantTrial(ctx context.Context, ownerID string) (*model.Credential, error) {
	if _, err := findOwner(ctx, u.owners, ownerID); err != nil {
		return nil, err
	}

	var c *model.Credential
	err := u.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		c, err = u.Issue(ctx, tx, ownerID, model.TrialPlan, 0, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.IncCredentialIssued("trial")
	logging.With(ctx, u.log).Info().Str("owner_id", ownerID).Str("uuid", c.UUID).Time("expires_at", c.ExpiresAt).Msg("trial granted")
	return c, nil
}

func (u *credentialUC) Get(ctx context.Context, id string) (*model.Credential, error) {
	c, err := u.creds.FindByUUID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if err := u.lazyDeactivate(ctx, c); err != nil {
		return nil, err
	}
	return u.open(c)
}

func (u *credentialUC) ListByOwner(ctx context.Context, ownerID string) ([]*model.Credential, error) {
	if _, err := findOwner(ctx, u.owners, ownerID); err != nil {
		return nil, err
	}
	n, err := u.creds.DeactivateExpiredByOwner(ctx, repository.NoTX, ownerID, u.now())
	if err != nil {
		return nil, err
	}
	if n > 0 {
		metrics.AddCredentialsExpired("lazy", n)
	}
	list, err := u.creds.ListByOwner(ctx, repository.NoTX, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Credential, 0, len(list))
	for _, c := range list {
		oc, err := u.open(c)
		if err != nil {
			return nil, err
		}
		out = append(out, oc)
	}
	return out, nil
}

// Deactivate is an operator action. Deactivating an inactive credential is
// not an error.
func (u *credentialUC) Deactivate(ctx context.Context, id string) (*model.Credential, error) {
	c, err := u.creds.FindByUUID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	changed, err := u.creds.Deactivate(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	c.IsActive = false
	if changed {
		logging.With(ctx, u.log).Info().Str("uuid", id).Str("operator", logging.Operator(ctx)).Msg("credential deactivated")
	}
	return u.open(c)
}

// lazyDeactivate applies the same conditional update as the sweep to one
// row, so whichever runs first wins and the other is a no-op.
func (u *credentialUC) lazyDeactivate(ctx context.Context, c *model.Credential) error {
	now := u.now()
	if !c.NeedsDeactivation(now) {
		return nil
	}
	changed, err := u.creds.DeactivateIfExpired(ctx, repository.NoTX, c.UUID, now)
	if err != nil {
		return err
	}
	c.IsActive = false
	if changed {
		metrics.AddCredentialsExpired("lazy", 1)
	}
	return nil
}

func (u *credentialUC) open(c *model.Credential) (*model.Credential, error) {
	blob, err := u.sealer.Decrypt(c.ConfigBlob)
	if err != nil {
		return nil, fmt.Errorf("open config blob %s: %w", c.UUID, err)
	}
	out := *c
	out.ConfigBlob = blob
	return &out, nil
}

func (u *credentialUC) configBlob(id, plan string) (string, error) {
	sid := make([]byte, 8)
	if _, err := rand.Read(sid); err != nil {
		return "", fmt.Errorf("short id: %w", err)
	}
	s := u.opts.Server
	port := s.Port
	if port <= 0 {
		port = 443
	}

	// Parameter order is the one client apps expect; url.Values would sort it.
	params := [][2]string{
		{"security", "tls"},
		{"encryption", "none"},
		{"headerType", "none"},
		{"type", "tcp"},
		{"sni", s.SNI},
		{"sid", hex.EncodeToString(sid)},
	}
	var b strings.Builder
	fmt.Fprintf(&b, "vless://%s@%s:%d?", id, s.Host, port)
	for i, kv := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(kv[0] + "=" + url.QueryEscape(kv[1]))
	}
	fmt.Fprintf(&b, "#%s_%s", url.PathEscape(s.Tag), url.PathEscape(plan))
	return b.String(), nil
}
