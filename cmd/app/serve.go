package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"vpn-key-subscription/internal/infra/adapters/telegram"
	"vpn-key-subscription/internal/infra/adapters/verifier"
	"vpn-key-subscription/internal/infra/api"
	"vpn-key-subscription/internal/infra/i18n"
	"vpn-key-subscription/internal/infra/metrics"
	red "vpn-key-subscription/internal/infra/redis"
	"vpn-key-subscription/internal/infra/sched"
	"vpn-key-subscription/internal/infra/worker"
	"vpn-key-subscription/internal/usecase"
)

func serveCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, verification runner and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(f)
		},
	}
}

func runServe(f *rootFlags) error {
	cfg, logger, err := loadConfig(f)
	if err != nil {
		return err
	}
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(Version, Commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Ledger store ----
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// ---- Redis (optional) ----
	rc, err := openRedis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	owners := st.owners
	var (
		locker  red.Locker
		limiter api.Limiter
	)
	if rc != nil {
		defer rc.Close()
		owners = red.NewOwnerRepoCache(st.owners, rc, cfg.Redis.TTL)
		locker = red.NewLocker(rc)
		limiter = red.NewRateLimiter(rc)
	}

	// ---- Adapters ----
	sealer, err := newSealer(cfg, logger)
	if err != nil {
		return fmt.Errorf("sealer: %w", err)
	}
	registry, err := verifier.FromConfig(cfg.Currencies, httpClient(cfg.Payments.VerifyTimeout))
	if err != nil {
		return fmt.Errorf("verifiers: %w", err)
	}
	logger.Info().Strs("currencies", registry.Currencies()).Msg("settlement verifiers registered")

	var sender telegram.Sender
	if cfg.Bot.Token != "" {
		bs, err := telegram.NewBotSender(cfg.Bot.Token)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		sender = bs
	} else {
		logger.Warn().Msg("bot.token not set: notifications are logged only")
		sender = telegram.NewLogSender(logger)
	}
	tr, err := i18n.New(cfg.Bot.Language)
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	pool := worker.NewPool(cfg.Notifications.Workers, cfg.Notifications.QueueSize, logger)
	notifier := worker.NewAsyncNotifier(pool, telegram.NewNotifier(sender, owners, cfg.Bot.AdminIDs, tr), cfg.Notifications.Timeout, logger)

	// ---- Use cases ----
	pricing := newPricing(cfg, httpClient(cfg.Rates.Timeout), logger)
	creds := newCredentials(cfg, st, owners, sealer, logger)
	runner := sched.NewVerificationRunner(cfg.Payments.PollInterval, logger)
	payments := usecase.NewPaymentUseCase(usecase.PaymentDeps{
		Payments:    st.payments,
		Owners:      owners,
		TxManager:   st.tx,
		Credentials: creds,
		Pricing:     pricing,
		Verifiers:   registry,
		Notifier:    notifier,
		Scheduler:   runner,
	}, usecase.PaymentOptions{
		CryptoWindow:  cfg.Payments.CryptoWindow,
		ManualWindow:  cfg.Payments.ManualWindow,
		VerifyTimeout: cfg.Payments.VerifyTimeout,
		ManualAddress: manualAddress(cfg),
	}, logger)
	recon := usecase.NewReconcilerUseCase(st.creds, st.payments, cfg.Credentials.Retention, nil, logger)

	server := api.NewServer(api.Deps{
		Payments:    payments,
		Credentials: creds,
		Owners:      usecase.NewOwnerUseCase(owners, logger),
		Pricing:     pricing,
		Reconciler:  recon,
		Auth:        api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Limiter:     limiter,
		Health:      st,
	}, api.Options{
		RequestTimeout:  cfg.HTTP.RequestTimeout,
		CreateRateLimit: cfg.HTTP.RateLimitPerMinute,
		CheckRateLimit:  cfg.HTTP.RateLimitPerMinute,
		TrialRateLimit:  cfg.HTTP.RateLimitPerMinute,
	}, logger)

	// ---- Boot re-scan ----
	n, err := payments.ResumePending(ctx)
	if err != nil {
		return fmt.Errorf("resume pending payments: %w", err)
	}
	logger.Info().Int("count", n).Msg("pending crypto payments rescheduled")

	// ---- Run ----
	pool.Start(context.WithoutCancel(ctx))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx, fmt.Sprintf(":%d", cfg.HTTP.Port), cfg.HTTP.ShutdownTimeout)
	})
	g.Go(func() error { return runner.Run(gctx, payments) })
	expiry := sched.NewExpiryWorker(cfg.Credentials.SweepInterval, recon, locker, logger)
	retention := sched.NewRetentionWorker(cfg.Credentials.CleanupInterval, recon, locker, logger)
	g.Go(func() error { return expiry.Run(gctx) })
	g.Go(func() error { return retention.Run(gctx) })
	g.Go(func() error {
		st.report(gctx)
		return nil
	})

	err = g.Wait()
	pool.Stop()
	logger.Info().Msg("shutdown complete")
	return err
}
