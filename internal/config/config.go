// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// Per-client request budget for the public write endpoints; 0 disables.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres | sqlite
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty disables rate limiting and reconciler locks
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type BotConfig struct {
	Token    string  `yaml:"token"` // empty selects the log-only notifier
	AdminIDs []int64 `yaml:"admin_ids"`
	Language string  `yaml:"language"` // notification catalogue, en | ru
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type PaymentsConfig struct {
	CryptoWindow  time.Duration `yaml:"crypto_window"`
	ManualWindow  time.Duration `yaml:"manual_window"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	VerifyTimeout time.Duration `yaml:"verify_timeout"`
	Manual        struct {
		CardNumber string `yaml:"card_number"`
		Bank       string `yaml:"bank"`
	} `yaml:"manual"`
}

// PricingConfig is the price catalogue: plan -> periodMonths -> fiat price.
type PricingConfig struct {
	FiatCurrency string                   `yaml:"fiat_currency"`
	FiatUSDRate  float64                  `yaml:"fiat_usd_rate"`
	Plans        map[string]map[int]int64 `yaml:"plans"`
}

// CurrencyConfig describes one settlement currency. Kind selects the
// verifier implementation.
type CurrencyConfig struct {
	Kind        string  `yaml:"kind"` // blockchain_info | etherscan | etherscan_token | trongrid | toncenter
	Address     string  `yaml:"address"`
	Contract    string  `yaml:"contract"` // token contract for etherscan_token / trongrid
	Decimals    int     `yaml:"decimals"`
	APIURL      string  `yaml:"api_url"`
	APIKey      string  `yaml:"api_key"`
	FallbackUSD float64 `yaml:"fallback_usd"` // USD per unit when the rate source is unavailable
	RateID      string  `yaml:"rate_id"`      // id at the rate provider, e.g. "ethereum"
}

type RatesConfig struct {
	ProviderURL string        `yaml:"provider_url"` // empty means static fallback rates only
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	Timeout     time.Duration `yaml:"timeout"`
}

type CredentialsConfig struct {
	TrialDuration   time.Duration `yaml:"trial_duration"`
	Retention       time.Duration `yaml:"retention"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	EncryptionKey   string        `yaml:"encryption_key"` // 32 bytes; empty stores blobs in plaintext
	Server          struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		SNI  string `yaml:"sni"`
		Tag  string `yaml:"tag"`
	} `yaml:"server"`
}

type NotificationsConfig struct {
	Workers   int           `yaml:"workers"`
	QueueSize int           `yaml:"queue_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Config struct {
	Log           LogConfig                 `yaml:"log"`
	HTTP          HTTPConfig                `yaml:"http"`
	Database      DatabaseConfig            `yaml:"database"`
	Redis         RedisConfig               `yaml:"redis"`
	Bot           BotConfig                 `yaml:"bot"`
	Auth          AuthConfig                `yaml:"auth"`
	Payments      PaymentsConfig            `yaml:"payments"`
	Pricing       PricingConfig             `yaml:"pricing"`
	Currencies    map[string]CurrencyConfig `yaml:"currencies"`
	Rates         RatesConfig               `yaml:"rates"`
	Credentials   CredentialsConfig         `yaml:"credentials"`
	Notifications NotificationsConfig       `yaml:"notifications"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies environment overrides for
// secrets, fills defaults and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.Database.URL, "DATABASE_URL")
	override(&c.Redis.URL, "REDIS_URL")
	override(&c.Bot.Token, "BOT_TOKEN")
	override(&c.Auth.JWTSecret, "AUTH_JWT_SECRET")
	override(&c.Credentials.EncryptionKey, "CREDENTIALS_ENCRYPTION_KEY")
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	c.HTTP.RequestTimeout = orDefault(c.HTTP.RequestTimeout, 30*time.Second)
	c.HTTP.ShutdownTimeout = orDefault(c.HTTP.ShutdownTimeout, 10*time.Second)
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	c.Redis.TTL = normalizeTTL(c.Redis.TTL)
	if c.Bot.Language == "" {
		c.Bot.Language = "en"
	}
	c.Auth.TokenTTL = orDefault(c.Auth.TokenTTL, 24*time.Hour)

	c.Payments.CryptoWindow = orDefault(c.Payments.CryptoWindow, 30*time.Minute)
	c.Payments.ManualWindow = orDefault(c.Payments.ManualWindow, 24*time.Hour)
	c.Payments.PollInterval = orDefault(c.Payments.PollInterval, 30*time.Second)
	c.Payments.VerifyTimeout = orDefault(c.Payments.VerifyTimeout, 15*time.Second)

	if c.Pricing.FiatCurrency == "" {
		c.Pricing.FiatCurrency = "RUB"
	}

	c.Rates.CacheTTL = orDefault(c.Rates.CacheTTL, 5*time.Minute)
	c.Rates.Timeout = orDefault(c.Rates.Timeout, 10*time.Second)

	c.Credentials.TrialDuration = orDefault(c.Credentials.TrialDuration, time.Hour)
	c.Credentials.Retention = orDefault(c.Credentials.Retention, 7*24*time.Hour)
	c.Credentials.SweepInterval = orDefault(c.Credentials.SweepInterval, time.Hour)
	c.Credentials.CleanupInterval = orDefault(c.Credentials.CleanupInterval, 24*time.Hour)
	if c.Credentials.Server.Port == 0 {
		c.Credentials.Server.Port = 443
	}
	if c.Credentials.Server.SNI == "" {
		c.Credentials.Server.SNI = c.Credentials.Server.Host
	}
	if c.Credentials.Server.Tag == "" {
		c.Credentials.Server.Tag = "VPN"
	}

	if c.Notifications.Workers <= 0 {
		c.Notifications.Workers = 4
	}
	if c.Notifications.QueueSize <= 0 {
		c.Notifications.QueueSize = 256
	}
	c.Notifications.Timeout = orDefault(c.Notifications.Timeout, 10*time.Second)
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Credentials.Server.Host == "" {
		return errors.New("credentials.server.host is required")
	}
	if k := len(c.Credentials.EncryptionKey); k != 0 && k != 32 {
		return errors.New("credentials.encryption_key must be 32 bytes")
	}
	if c.Pricing.FiatUSDRate <= 0 {
		return errors.New("pricing.fiat_usd_rate is required")
	}
	if len(c.Pricing.Plans) == 0 {
		return errors.New("pricing.plans is required")
	}
	for plan, prices := range c.Pricing.Plans {
		for months, price := range prices {
			if months <= 0 || price <= 0 {
				return fmt.Errorf("pricing.plans.%s: invalid entry %d: %d", plan, months, price)
			}
		}
	}
	for code, cur := range c.Currencies {
		if cur.Kind == "" {
			return fmt.Errorf("currencies.%s.kind is required", code)
		}
		if cur.Address == "" {
			return fmt.Errorf("currencies.%s.address is required", code)
		}
		if cur.FallbackUSD <= 0 {
			return fmt.Errorf("currencies.%s.fallback_usd is required", code)
		}
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
