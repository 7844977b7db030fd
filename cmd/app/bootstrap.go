package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"vpn-key-subscription/internal/config"
	"vpn-key-subscription/internal/domain/ports/adapter"
	"vpn-key-subscription/internal/domain/ports/repository"
	"vpn-key-subscription/internal/infra/adapters/rates"
	pg "vpn-key-subscription/internal/infra/db/postgres"
	"vpn-key-subscription/internal/infra/db/sqlite"
	"vpn-key-subscription/internal/infra/logging"
	red "vpn-key-subscription/internal/infra/redis"
	"vpn-key-subscription/internal/infra/security"
	"vpn-key-subscription/internal/usecase"
)

// stores is the ledger behind either driver.
type stores struct {
	owners   repository.OwnerRepository
	creds    repository.CredentialRepository
	payments repository.PaymentRepository
	tx       repository.TransactionManager
	ping     func(ctx context.Context) error
	report   func(ctx context.Context) // blocks, publishing connection gauges
	close    func()
}

func (s *stores) Ping(ctx context.Context) error { return s.ping(ctx) }

func loadConfig(f *rootFlags) (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.LoadConfig(f.configPath, f.dev)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	return cfg, logging.New(cfg.Log, cfg.Runtime.Dev), nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*stores, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		st, err := sqlite.Open(cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		logger.Info().Str("driver", "sqlite").Msg("ledger store opened")
		return &stores{
			owners:   sqlite.NewOwnerRepo(st),
			creds:    sqlite.NewCredentialRepo(st),
			payments: sqlite.NewPaymentRepo(st),
			tx:       st,
			ping:     st.Ping,
			report:   func(ctx context.Context) { st.ReportStats(ctx, 15*time.Second) },
			close:    func() { _ = st.Close() },
		}, nil
	default:
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info().Str("driver", "postgres").Msg("ledger store opened")
		return &stores{
			owners:   pg.NewOwnerRepo(pool),
			creds:    pg.NewCredentialRepo(pool),
			payments: pg.NewPaymentRepo(pool),
			tx:       pg.NewTxManager(pool),
			ping:     pool.Ping,
			report: func(ctx context.Context) {
				pg.ReportPoolStats(ctx, pool, 15*time.Second, logger)
			},
			close: pool.Close,
		}, nil
	}
}

// openRedis returns nil when redis is not configured.
func openRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*red.Client, error) {
	if cfg.Redis.URL == "" {
		logger.Warn().Msg("redis not configured: rate limiting and job locks disabled")
		return nil, nil
	}
	c, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return c, nil
}

func newSealer(cfg *config.Config, logger *zerolog.Logger) (adapter.SecretSealer, error) {
	if cfg.Credentials.EncryptionKey == "" {
		logger.Warn().Msg("credentials.encryption_key not set: config blobs stored in plaintext")
	}
	return security.NewFromKey(cfg.Credentials.EncryptionKey)
}

func newPricing(cfg *config.Config, client *http.Client, logger *zerolog.Logger) usecase.PricingUseCase {
	fallback := make(map[string]float64, len(cfg.Currencies))
	ids := make(map[string]string, len(cfg.Currencies))
	for code, cur := range cfg.Currencies {
		fallback[code] = cur.FallbackUSD
		if cur.RateID != "" {
			ids[code] = cur.RateID
		}
	}

	var source adapter.RateSource
	if cfg.Rates.ProviderURL != "" {
		source = rates.NewCached(rates.NewCoinGecko(cfg.Rates.ProviderURL, ids, client), 64, cfg.Rates.CacheTTL)
	}
	return usecase.NewPricingUseCase(source, usecase.PricingOptions{
		FiatCurrency: cfg.Pricing.FiatCurrency,
		FiatUSDRate:  cfg.Pricing.FiatUSDRate,
		Plans:        cfg.Pricing.Plans,
		FallbackUSD:  fallback,
		RateTimeout:  cfg.Rates.Timeout,
	}, logger)
}

func newCredentials(cfg *config.Config, st *stores, owners repository.OwnerRepository, sealer adapter.SecretSealer, logger *zerolog.Logger) usecase.CredentialUseCase {
	srv := cfg.Credentials.Server
	return usecase.NewCredentialUseCase(st.creds, owners, st.tx, sealer, usecase.CredentialOptions{
		TrialDuration: cfg.Credentials.TrialDuration,
		Server:        usecase.ServerEndpoint{Host: srv.Host, Port: srv.Port, SNI: srv.SNI, Tag: srv.Tag},
	}, logger)
}

func manualAddress(cfg *config.Config) string {
	m := cfg.Payments.Manual
	if m.CardNumber == "" {
		return ""
	}
	if m.Bank == "" {
		return m.CardNumber
	}
	return fmt.Sprintf("%s (%s)", m.CardNumber, m.Bank)
}

func httpClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
