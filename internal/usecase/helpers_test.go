//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vpn-key-subscription/internal/domain/model"
	"vpn-key-subscription/internal/domain/ports/adapter"
	"vpn-key-subscription/internal/domain/ports/repository"
	"vpn-key-subscription/internal/infra/adapters/verifier"
	"vpn-key-subscription/internal/infra/db/sqlite"
	"vpn-key-subscription/internal/infra/security"
	"vpn-key-subscription/internal/usecase"
)

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// -----------------------------
// Fakes
// -----------------------------

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type MockVerifier struct {
	calls     atomic.Int32
	CheckFunc func(ctx context.Context, req adapter.CheckRequest) (adapter.ConfirmationResult, error)
}

func (m *MockVerifier) Check(ctx context.Context, req adapter.CheckRequest) (adapter.ConfirmationResult, error) {
	m.calls.Add(1)
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, req)
	}
	return adapter.ConfirmationResult{}, nil
}

type MockNotifier struct {
	mu   sync.Mutex
	Sent []adapter.Notification
}

func (m *MockNotifier) Notify(ctx context.Context, n adapter.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, n)
	return nil
}

func (m *MockNotifier) Outcomes() []adapter.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]adapter.Outcome, len(m.Sent))
	for i, n := range m.Sent {
		out[i] = n.Outcome
	}
	return out
}

type MockScheduler struct {
	mu  sync.Mutex
	IDs []string
}

func (m *MockScheduler) Schedule(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IDs = append(m.IDs, id)
}

// faultySealer fails every Encrypt while fail is set.
type faultySealer struct {
	adapter.SecretSealer
	fail atomic.Bool
}

func (s *faultySealer) Encrypt(plaintext string) (string, error) {
	if s.fail.Load() {
		return "", errors.New("sealer unavailable")
	}
	return s.SecretSealer.Encrypt(plaintext)
}

type MockRates struct {
	USDPriceFunc func(ctx context.Context, currency string) (float64, error)
}

func (m *MockRates) USDPrice(ctx context.Context, currency string) (float64, error) {
	return m.USDPriceFunc(ctx, currency)
}

// -----------------------------
// Test environment
// -----------------------------

const (
	testCurrency = "usdt_trc20"
	testAddress  = "TQ1wallet"
	testCard     = "6037-9911-0000-1234 (Mellat)"
)

type testEnv struct {
	store     *sqlite.Store
	clock     *fakeClock
	verifier  *MockVerifier
	notifier  *MockNotifier
	scheduler *MockScheduler
	sealer    *faultySealer

	owners   repository.OwnerRepository
	creds    repository.CredentialRepository
	payments repository.PaymentRepository

	pricing usecase.PricingUseCase
	credUC  usecase.CredentialUseCase
	payUC   usecase.PaymentUseCase
	recon   usecase.ReconcilerUseCase

	owner *model.Owner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	inner, err := security.NewSealer("usecase-test-key")
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	sealer := &faultySealer{SecretSealer: inner}

	env := &testEnv{
		store:     store,
		clock:     &fakeClock{t: t0},
		verifier:  &MockVerifier{},
		notifier:  &MockNotifier{},
		scheduler: &MockScheduler{},
		sealer:    sealer,
		owners:    sqlite.NewOwnerRepo(store),
		creds:     sqlite.NewCredentialRepo(store),
		payments:  sqlite.NewPaymentRepo(store),
	}

	env.pricing = usecase.NewPricingUseCase(nil, usecase.PricingOptions{
		FiatCurrency: "RUB",
		FiatUSDRate:  0.011,
		Plans: map[string]map[int]int64{
			"basic": {1: 500, 3: 1350, 12: 4800},
		},
		FallbackUSD: map[string]float64{testCurrency: 1.0},
	}, newTestLogger())

	env.credUC = usecase.NewCredentialUseCase(env.creds, env.owners, store, sealer, usecase.CredentialOptions{
		TrialDuration: time.Hour,
		Server:        usecase.ServerEndpoint{Host: "vpn.example.com", Port: 443, SNI: "cdn.example.com", Tag: "Main"},
		Clock:         env.clock.Now,
	}, newTestLogger())

	env.payUC = env.newPaymentUseCase(env.scheduler)
	env.recon = usecase.NewReconcilerUseCase(env.creds, env.payments, 7*24*time.Hour, env.clock.Now, newTestLogger())

	env.owner, err = model.NewOwner("owner-1", 1001, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if err := env.owners.Save(context.Background(), nil, env.owner); err != nil {
		t.Fatalf("save owner: %v", err)
	}
	return env
}

func (e *testEnv) newPaymentUseCase(s usecase.VerificationScheduler) usecase.PaymentUseCase {
	reg := verifier.NewRegistry()
	reg.Register(testCurrency, testAddress, e.verifier)

	return usecase.NewPaymentUseCase(usecase.PaymentDeps{
		Payments:    e.payments,
		Owners:      e.owners,
		TxManager:   e.store,
		Credentials: e.credUC,
		Pricing:     e.pricing,
		Verifiers:   reg,
		Notifier:    e.notifier,
		Scheduler:   s,
	}, usecase.PaymentOptions{
		CryptoWindow:  30 * time.Minute,
		ManualWindow:  24 * time.Hour,
		VerifyTimeout: time.Second,
		ManualAddress: testCard,
		Clock:         e.clock.Now,
	}, newTestLogger())
}

func (e *testEnv) countCredentials(t *testing.T) int {
	t.Helper()
	list, err := e.creds.ListByOwner(context.Background(), nil, e.owner.ID)
	if err != nil {
		t.Fatalf("list credentials: %v", err)
	}
	return len(list)
}

func confirmWith(txID string) func(context.Context, adapter.CheckRequest) (adapter.ConfirmationResult, error) {
	return func(ctx context.Context, req adapter.CheckRequest) (adapter.ConfirmationResult, error) {
		return adapter.ConfirmationResult{Confirmed: true, TxID: txID, ObservedAmount: req.MinAmount}, nil
	}
}
