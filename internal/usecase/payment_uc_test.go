//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"vpn-key-subscription/internal/domain"
	"vpn-key-subscription/internal/domain/model"
	"vpn-key-subscription/internal/domain/ports/adapter"
	"vpn-key-subscription/internal/usecase"
)

func createCrypto(t *testing.T, env *testEnv) *model.Payment {
	t.Helper()
	p, err := env.payUC.Create(context.Background(), usecase.CreatePaymentInput{
		OwnerID: env.owner.ID, Plan: "basic", PeriodMonths: 3, Currency: testCurrency,
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	return p
}

func createManual(t *testing.T, env *testEnv) *model.Payment {
	t.Helper()
	p, err := env.payUC.Create(context.Background(), usecase.CreatePaymentInput{
		OwnerID: env.owner.ID, Plan: "basic", PeriodMonths: 1, Currency: "manual",
	})
	if err != nil {
		t.Fatalf("create manual payment: %v", err)
	}
	return p
}

func TestPaymentUseCase_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a pending crypto payment and schedule verification", func(t *testing.T) {
		env := newTestEnv(t)

		p := createCrypto(t, env)

		if !strings.HasPrefix(p.ID, "pay_") {
			t.Errorf("expected pay_ prefix, got %q", p.ID)
		}
		if p.Status != model.PaymentStatusPending || p.Method != model.PaymentMethodCrypto {
			t.Errorf("unexpected status/method: %s/%s", p.Status, p.Method)
		}
		if p.SettlementAddress != testAddress {
			t.Errorf("expected address %q, got %q", testAddress, p.SettlementAddress)
		}
		// 1350 RUB * 0.011 USD/RUB / 1.0 USD per unit
		if p.SettlementAmount != 14.85 {
			t.Errorf("expected settlement amount 14.85, got %v", p.SettlementAmount)
		}
		if !p.ExpiryTime.Equal(t0.Add(30 * time.Minute)) {
			t.Errorf("expected expiry %v, got %v", t0.Add(30*time.Minute), p.ExpiryTime)
		}
		if len(env.scheduler.IDs) != 1 || env.scheduler.IDs[0] != p.ID {
			t.Errorf("expected verification to be scheduled for %s, got %v", p.ID, env.scheduler.IDs)
		}

		stored, err := env.payments.FindByID(ctx, nil, p.ID)
		if err != nil {
			t.Fatalf("payment not persisted: %v", err)
		}
		if stored.CurrencyCode != testCurrency || stored.PeriodMonths != 3 {
			t.Errorf("unexpected stored payment: %+v", stored)
		}
	})

	t.Run("should create a manual payment without scheduling", func(t *testing.T) {
		env := newTestEnv(t)

		p := createManual(t, env)

		if p.Method != model.PaymentMethodManual || p.SettlementAddress != testCard {
			t.Errorf("unexpected manual payment: %+v", p)
		}
		if p.SettlementAmount != 500 {
			t.Errorf("manual payments settle the fiat amount, got %v", p.SettlementAmount)
		}
		if !p.ExpiryTime.Equal(t0.Add(24 * time.Hour)) {
			t.Errorf("expected 24h window, got %v", p.ExpiryTime)
		}
		if len(env.scheduler.IDs) != 0 {
			t.Errorf("manual payments must not be polled, scheduled %v", env.scheduler.IDs)
		}
	})

	t.Run("should reject invalid input as validation errors", func(t *testing.T) {
		env := newTestEnv(t)
		cases := []struct {
			name string
			in   usecase.CreatePaymentInput
			want error
		}{
			{"unknown owner", usecase.CreatePaymentInput{OwnerID: "ghost", Plan: "basic", PeriodMonths: 1, Currency: testCurrency}, domain.ErrUnknownOwner},
			{"unknown currency", usecase.CreatePaymentInput{OwnerID: env.owner.ID, Plan: "basic", PeriodMonths: 1, Currency: "doge"}, domain.ErrUnknownCurrency},
			{"unknown plan", usecase.CreatePaymentInput{OwnerID: env.owner.ID, Plan: "gold", PeriodMonths: 1, Currency: testCurrency}, domain.ErrUnsupportedPlan},
			{"unpriced period", usecase.CreatePaymentInput{OwnerID: env.owner.ID, Plan: "basic", PeriodMonths: 6, Currency: testCurrency}, domain.ErrUnsupportedPlan},
			{"zero period", usecase.CreatePaymentInput{OwnerID: env.owner.ID, Plan: "basic", PeriodMonths: 0, Currency: testCurrency}, domain.ErrInvalidPeriod},
		}
		for _, tc := range cases {
			_, err := env.payUC.Create(ctx, tc.in)
			if !errors.Is(err, tc.want) {
				t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("%s: expected a validation error, got %v", tc.name, err)
			}
		}
		list, _ := env.payments.ListByOwner(ctx, nil, env.owner.ID)
		if len(list) != 0 {
			t.Errorf("expected no payments to be stored, got %d", len(list))
		}
	})
}

// Scenario A
func TestPaymentUseCase_ExpiresOnRead(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := createCrypto(t, env)

	env.clock.Advance(31 * time.Minute)

	v, err := env.payUC.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v.Payment.Status != model.PaymentStatusExpired {
		t.Fatalf("expected expired, got %s", v.Payment.Status)
	}
	stored, _ := env.payments.FindByID(ctx, nil, p.ID)
	if stored.Status != model.PaymentStatusExpired {
		t.Errorf("expected expired to be persisted, got %s", stored.Status)
	}
	if v.Credential != nil {
		t.Error("expired payment must not carry a credential")
	}
}

// Scenario B
func TestPaymentUseCase_VerifyTick(t *testing.T) {
	ctx := context.Background()

	t.Run("should complete the payment and issue one credential", func(t *testing.T) {
		env := newTestEnv(t)
		p := createCrypto(t, env)
		env.verifier.CheckFunc = func(ctx context.Context, req adapter.CheckRequest) (adapter.ConfirmationResult, error) {
			if req.Address != testAddress || req.MinAmount != p.SettlementAmount || !req.Since.Equal(p.CreatedAt) {
				t.Errorf("unexpected check request: %+v", req)
			}
			return adapter.ConfirmationResult{Confirmed: true, TxID: "abc123", ObservedAmount: req.MinAmount}, nil
		}

		done, err := env.payUC.VerifyTick(ctx, p.ID)
		if err != nil || !done {
			t.Fatalf("expected done without error, got done=%v err=%v", done, err)
		}

		v, err := env.payUC.Get(ctx, p.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		got := v.Payment
		if got.Status != model.PaymentStatusCompleted {
			t.Fatalf("expected completed, got %s", got.Status)
		}
		if got.SettlementTxID == nil || *got.SettlementTxID != "abc123" {
			t.Errorf("expected tx id abc123, got %v", got.SettlementTxID)
		}
		if got.CompletedAt == nil || got.IssuedCredentialID == nil {
			t.Fatal("completion fields must be set")
		}
		if v.Credential == nil || v.Credential.UUID != *got.IssuedCredentialID {
			t.Fatalf("issued credential does not match payment: %+v", v.Credential)
		}
		if want := t0.AddDate(0, 3, 0); !v.Credential.ExpiresAt.Equal(want) {
			t.Errorf("expected credential expiry %v, got %v", want, v.Credential.ExpiresAt)
		}
		if !strings.HasPrefix(v.Credential.ConfigBlob, "vless://"+v.Credential.UUID+"@vpn.example.com:443?") {
			t.Errorf("unexpected config blob %q", v.Credential.ConfigBlob)
		}
		if n := env.countCredentials(t); n != 1 {
			t.Errorf("expected exactly one credential, got %d", n)
		}
		outcomes := env.notifier.Outcomes()
		if len(outcomes) != 1 || outcomes[0] != adapter.OutcomePaymentConfirmed {
			t.Errorf("expected one confirmed notification, got %v", outcomes)
		}
	})

	t.Run("should keep polling while unconfirmed", func(t *testing.T) {
		env := newTestEnv(t)
		p := createCrypto(t, env)

		done, err := env.payUC.VerifyTick(ctx, p.ID)
		if err != nil || done {
			t.Fatalf("expected not done, got done=%v err=%v", done, err)
		}
		stored, _ := env.payments.FindByID(ctx, nil, p.ID)
		if stored.Status != model.PaymentStatusPending {
			t.Errorf("expected pending, got %s", stored.Status)
		}
	})

	t.Run("should treat verifier failures as transient", func(t *testing.T) {
		env := newTestEnv(t)
		p := createCrypto(t, env)
		env.verifier.CheckFunc = func(ctx context.Context, req adapter.CheckRequest) (adapter.ConfirmationResult, error) {
			return adapter.ConfirmationResult{}, adapter.Transient("trongrid", errors.New("connection reset"))
		}

		done, err := env.payUC.VerifyTick(ctx, p.ID)
		if done || !errors.Is(err, domain.ErrTransient) {
			t.Fatalf("expected transient error and not done, got done=%v err=%v", done, err)
		}
		stored, _ := env.payments.FindByID(ctx, nil, p.ID)
		if stored.Status != model.PaymentStatusPending {
			t.Errorf("expected pending after a failed check, got %s", stored.Status)
		}
		if n := env.countCredentials(t); n != 0 {
			t.Errorf("expected no credential, got %d", n)
		}
	})

	t.Run("should expire an overdue payment without calling the verifier", func(t *testing.T) {
		env := newTestEnv(t)
		p := createCrypto(t, env)
		env.verifier.CheckFunc = confirmWith("late")
		env.clock.Advance(30*time.Minute + time.Second)

		done, err := env.payUC.VerifyTick(ctx, p.ID)
		if err != nil || !done {
			t.Fatalf("expected done, got done=%v err=%v", done, err)
		}
		if env.verifier.calls.Load() != 0 {
			t.Error("verifier must not be called after the window closed")
		}
		stored, _ := env.payments.FindByID(ctx, nil, p.ID)
		if stored.Status != model.PaymentStatusExpired {
			t.Errorf("expected expired, got %s", stored.Status)
		}
	})

	t.Run("should expire when the confirmation arrives after the window", func(t *testing.T) {
		env := newTestEnv(t)
		p := createCrypto(t, env)
		env.clock.Advance(30*time.Minute - time.Second)
		env.verifier.CheckFunc = func(ctx context.Context, req adapter.CheckRequest) (adapter.ConfirmationResult, error) {
			env.clock.Advance(10 * time.Second)
			return adapter.ConfirmationResult{Confirmed: true, TxID: "late", ObservedAmount: req.MinAmount}, nil
		}

		done, err := env.payUC.VerifyTick(ctx, p.ID)
		if err != nil || !done {
			t.Fatalf("expected done, got done=%v err=%v", done, err)
		}
		stored, _ := env.payments.FindByID(ctx, nil, p.ID)
		if stored.Status != model.PaymentStatusExpired {
			t.Errorf("expected expired, got %s", stored.Status)
		}
		if stored.CompletedAt != nil || stored.SettlementTxID != nil {
			t.Errorf("expired payment must not carry completion fields: %+v", stored)
		}
		if n := env.countCredentials(t); n != 0 {
			t.Errorf("expected no credential, got %d", n)
		}
	})

	t.Run("should stop on unknown payments", func(t *testing.T) {
		env := newTestEnv(t)
		done, err := env.payUC.VerifyTick(ctx, "pay_missing")
		if !done || !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected done with not found, got done=%v err=%v", done, err)
		}
	})
}

func TestPaymentUseCase_VerifyTickIsIdempotent(t *testing.T) {
	ctx := context.Background()

	t.Run("should not issue twice on back to back ticks", func(t *testing.T) {
		env := newTestEnv(t)
		p := createCrypto(t, env)
		env.verifier.CheckFunc = confirmWith("abc123")

		for i := 0; i < 2; i++ {
			if done, err := env.payUC.VerifyTick(ctx, p.ID); err != nil || !done {
				t.Fatalf("tick %d: done=%v err=%v", i, done, err)
			}
		}
		if n := env.countCredentials(t); n != 1 {
			t.Errorf("expected one credential, got %d", n)
		}
		if env.verifier.calls.Load() != 1 {
			t.Errorf("second tick must see the completed status, verifier called %d times", env.verifier.calls.Load())
		}
		if len(env.notifier.Outcomes()) != 1 {
			t.Errorf("expected one notification, got %v", env.notifier.Outcomes())
		}
	})

	t.Run("should issue once when ticks race", func(t *testing.T) {
		env := newTestEnv(t)
		p := createCrypto(t, env)

		// Both ticks pass the status read before either completes.
		var gate sync.WaitGroup
		gate.Add(2)
		env.verifier.CheckFunc = func(ctx context.Context, req adapter.CheckRequest) (adapter.ConfirmationResult, error) {
			gate.Done()
			gate.Wait()
			return adapter.ConfirmationResult{Confirmed: true, TxID: "abc123", ObservedAmount: req.MinAmount}, nil
		}

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := env.payUC.VerifyTick(ctx, p.ID); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("unexpected tick error: %v", err)
		}

		if n := env.countCredentials(t); n != 1 {
			t.Errorf("expected one credential, got %d", n)
		}
		stored, _ := env.payments.FindByID(ctx, nil, p.ID)
		if stored.Status != model.PaymentStatusCompleted {
			t.Errorf("expected completed, got %s", stored.Status)
		}
		if len(env.notifier.Outcomes()) != 1 {
			t.Errorf("expected one notification, got %v", env.notifier.Outcomes())
		}
	})
}

func TestPaymentUseCase_SettlementTxSettlesOnePayment(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := createCrypto(t, env)
	b := createCrypto(t, env)

	var excluded []string
	env.verifier.CheckFunc = func(ctx context.Context, req adapter.CheckRequest) (adapter.ConfirmationResult, error) {
		excluded = req.Exclude
		return adapter.ConfirmationResult{Confirmed: true, TxID: "onchain-tx-1", ObservedAmount: req.MinAmount}, nil
	}

	if done, err := env.payUC.VerifyTick(ctx, a.ID); err != nil || !done {
		t.Fatalf("first payment: done=%v err=%v", done, err)
	}
	done, err := env.payUC.VerifyTick(ctx, b.ID)
	if err != nil || done {
		t.Fatalf("second payment must keep polling, got done=%v err=%v", done, err)
	}
	if len(excluded) != 1 || excluded[0] != "onchain-tx-1" {
		t.Errorf("expected the used transfer to be excluded, got %v", excluded)
	}

	storedA, _ := env.payments.FindByID(ctx, nil, a.ID)
	storedB, _ := env.payments.FindByID(ctx, nil, b.ID)
	if storedA.Status != model.PaymentStatusCompleted {
		t.Errorf("expected first payment completed, got %s", storedA.Status)
	}
	if storedB.Status != model.PaymentStatusPending || storedB.SettlementTxID != nil || storedB.IssuedCredentialID != nil {
		t.Errorf("second payment must stay pending and untouched: %+v", storedB)
	}
	if n := env.countCredentials(t); n != 1 {
		t.Errorf("expected one credential, got %d", n)
	}

	// A fresh transfer settles the second payment.
	env.verifier.CheckFunc = confirmWith("onchain-tx-2")
	if done, err := env.payUC.VerifyTick(ctx, b.ID); err != nil || !done {
		t.Fatalf("second payment with its own transfer: done=%v err=%v", done, err)
	}
	if n := env.countCredentials(t); n != 2 {
		t.Errorf("expected two credentials, got %d", n)
	}
}

func TestPaymentUseCase_IssuanceFailureKeepsPaymentPending(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := createCrypto(t, env)
	env.verifier.CheckFunc = confirmWith("abc123")
	env.sealer.fail.Store(true)

	done, err := env.payUC.VerifyTick(ctx, p.ID)
	if err == nil || done {
		t.Fatalf("expected an error and not done, got done=%v err=%v", done, err)
	}
	stored, _ := env.payments.FindByID(ctx, nil, p.ID)
	if stored.Status != model.PaymentStatusPending {
		t.Fatalf("expected pending, got %s", stored.Status)
	}
	if stored.CompletedAt != nil || stored.SettlementTxID != nil || stored.IssuedCredentialID != nil {
		t.Errorf("completion fields must stay empty: %+v", stored)
	}
	if n := env.countCredentials(t); n != 0 {
		t.Errorf("expected no credential, got %d", n)
	}
	if len(env.notifier.Outcomes()) != 0 {
		t.Errorf("expected no notification, got %v", env.notifier.Outcomes())
	}

	env.sealer.fail.Store(false)
	if done, err := env.payUC.VerifyTick(ctx, p.ID); err != nil || !done {
		t.Fatalf("retry: done=%v err=%v", done, err)
	}
	stored, _ = env.payments.FindByID(ctx, nil, p.ID)
	if stored.Status != model.PaymentStatusCompleted || stored.IssuedCredentialID == nil {
		t.Errorf("expected completed with a credential, got %+v", stored)
	}
	if n := env.countCredentials(t); n != 1 {
		t.Errorf("expected one credential, got %d", n)
	}
}

func TestPaymentUseCase_ResumePending(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first := createCrypto(t, env)
	second := createCrypto(t, env)
	createManual(t, env)
	env.clock.Advance(20 * time.Minute)
	fresh := createCrypto(t, env)
	// first and second are now past their window, fresh is not
	env.clock.Advance(15 * time.Minute)

	// "restart": a fresh use case with an empty scheduler over the same store
	sched := &MockScheduler{}
	restarted := env.newPaymentUseCase(sched)

	n, err := restarted.ResumePending(ctx)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if n != 3 || len(sched.IDs) != 3 {
		t.Fatalf("expected 3 crypto payments rescheduled, got n=%d ids=%v", n, sched.IDs)
	}

	env.verifier.CheckFunc = confirmWith("after-restart")
	for _, id := range []string{first.ID, second.ID} {
		if done, err := restarted.VerifyTick(ctx, id); err != nil || !done {
			t.Fatalf("tick %s: done=%v err=%v", id, done, err)
		}
	}
	if done, err := restarted.VerifyTick(ctx, fresh.ID); err != nil || !done {
		t.Fatalf("tick %s: done=%v err=%v", fresh.ID, done, err)
	}

	for _, id := range []string{first.ID, second.ID} {
		got, _ := env.payments.FindByID(ctx, nil, id)
		if got.Status != model.PaymentStatusExpired {
			t.Errorf("%s: expected expired, got %s", id, got.Status)
		}
	}
	got, _ := env.payments.FindByID(ctx, nil, fresh.ID)
	if got.Status != model.PaymentStatusCompleted {
		t.Errorf("expected payment inside its window to complete after restart, got %s", got.Status)
	}
}

// Scenario D
func TestPaymentUseCase_ManualFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("should go pending to waiting_confirmation to completed", func(t *testing.T) {
		env := newTestEnv(t)
		p := createManual(t, env)

		_, err := env.payUC.Approve(ctx, p.ID, "ops", "")
		if !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("approving a pending payment must conflict, got %v", err)
		}

		claimed, err := env.payUC.Claim(ctx, p.ID)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if claimed.Status != model.PaymentStatusWaitingConfirmation {
			t.Fatalf("expected waiting_confirmation, got %s", claimed.Status)
		}

		v, err := env.payUC.Approve(ctx, p.ID, "ops", "")
		if err != nil {
			t.Fatalf("approve: %v", err)
		}
		if v.Payment.Status != model.PaymentStatusCompleted {
			t.Fatalf("expected completed, got %s", v.Payment.Status)
		}
		if *v.Payment.SettlementTxID != "manual:ops:"+p.ID {
			t.Errorf("expected default reference, got %q", *v.Payment.SettlementTxID)
		}
		if v.Credential == nil || !v.Credential.ExpiresAt.Equal(t0.AddDate(0, 1, 0)) {
			t.Errorf("unexpected credential: %+v", v.Credential)
		}

		want := []adapter.Outcome{adapter.OutcomePaymentAwaitingApproval, adapter.OutcomePaymentConfirmed}
		got := env.notifier.Outcomes()
		if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("expected outcomes %v, got %v", want, got)
		}

		if _, err := env.payUC.Approve(ctx, p.ID, "ops", "again"); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("second approval must conflict, got %v", err)
		}
		if n := env.countCredentials(t); n != 1 {
			t.Errorf("expected one credential, got %d", n)
		}
	})

	t.Run("should keep an explicit reference", func(t *testing.T) {
		env := newTestEnv(t)
		p := createManual(t, env)
		if _, err := env.payUC.Claim(ctx, p.ID); err != nil {
			t.Fatal(err)
		}
		v, err := env.payUC.Approve(ctx, p.ID, "ops", "receipt-8841")
		if err != nil {
			t.Fatal(err)
		}
		if *v.Payment.SettlementTxID != "receipt-8841" {
			t.Errorf("expected receipt reference, got %q", *v.Payment.SettlementTxID)
		}
	})

	t.Run("should reject a claimed payment", func(t *testing.T) {
		env := newTestEnv(t)
		p := createManual(t, env)
		if _, err := env.payUC.Reject(ctx, p.ID, "ops"); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("rejecting an unclaimed payment must conflict, got %v", err)
		}
		if _, err := env.payUC.Claim(ctx, p.ID); err != nil {
			t.Fatal(err)
		}

		got, err := env.payUC.Reject(ctx, p.ID, "ops")
		if err != nil {
			t.Fatalf("reject: %v", err)
		}
		if got.Status != model.PaymentStatusRejected || got.CompletedAt != nil {
			t.Errorf("unexpected rejected payment: %+v", got)
		}
		if _, err := env.payUC.Approve(ctx, p.ID, "ops", ""); !errors.Is(err, domain.ErrConflict) {
			t.Errorf("rejected is terminal, got %v", err)
		}
		outcomes := env.notifier.Outcomes()
		if outcomes[len(outcomes)-1] != adapter.OutcomePaymentRejected {
			t.Errorf("expected a rejection notification, got %v", outcomes)
		}
	})

	t.Run("should expire a claim after the deadline", func(t *testing.T) {
		env := newTestEnv(t)
		p := createManual(t, env)
		env.clock.Advance(25 * time.Hour)

		if _, err := env.payUC.Claim(ctx, p.ID); !errors.Is(err, domain.ErrPaymentExpired) {
			t.Fatalf("expected payment expired, got %v", err)
		}
		stored, _ := env.payments.FindByID(ctx, nil, p.ID)
		if stored.Status != model.PaymentStatusExpired {
			t.Errorf("expected expired, got %s", stored.Status)
		}
	})

	t.Run("should refuse manual actions on crypto payments", func(t *testing.T) {
		env := newTestEnv(t)
		p := createCrypto(t, env)
		if _, err := env.payUC.Claim(ctx, p.ID); !errors.Is(err, domain.ErrNotManualPayment) {
			t.Errorf("claim: expected not manual, got %v", err)
		}
		if _, err := env.payUC.Approve(ctx, p.ID, "ops", ""); !errors.Is(err, domain.ErrNotManualPayment) {
			t.Errorf("approve: expected not manual, got %v", err)
		}
	})
}

func TestPaymentUseCase_ListByOwner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	createCrypto(t, env)
	createManual(t, env)
	env.clock.Advance(time.Hour)

	list, err := env.payUC.ListByOwner(ctx, env.owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(list))
	}
	statuses := map[model.PaymentStatus]int{}
	for _, p := range list {
		statuses[p.Status]++
	}
	if statuses[model.PaymentStatusExpired] != 1 || statuses[model.PaymentStatusPending] != 1 {
		t.Errorf("expected the crypto payment expired and the manual one pending, got %v", statuses)
	}

	if _, err := env.payUC.ListByOwner(ctx, "ghost"); !errors.Is(err, domain.ErrUnknownOwner) {
		t.Errorf("expected unknown owner, got %v", err)
	}
}

func TestPaymentUseCase_Check(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := createCrypto(t, env)
	env.verifier.CheckFunc = confirmWith("on-demand")

	v, err := env.payUC.Check(ctx, p.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if v.Payment.Status != model.PaymentStatusCompleted || v.Credential == nil {
		t.Errorf("expected completed with credential, got %+v", v)
	}
}
