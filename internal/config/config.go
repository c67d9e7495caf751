// Package config loads runtime settings from the environment, an optional .env file and
// the ROFEX credentials file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/hetulpatel/dlrarb/internal/chain"
	"github.com/hetulpatel/dlrarb/internal/rofex"
)

// Feed names accepted by DLRARB_FEED and --feed.
const (
	FeedRofex  = "rofex"
	FeedAmbito = "ambito"
	FeedMock   = "mock"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Feed     string `env:"DLRARB_FEED" envDefault:"ambito"`
	HTTPAddr string `env:"DLRARB_HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"false"`

	FundingTenor   string  `env:"DLRARB_FUNDING_TENOR" envDefault:"1d"`
	FundingRate    float64 `env:"DLRARB_FUNDING_RATE" envDefault:"0.35"`
	CommissionPct  float64 `env:"DLRARB_COMMISSION_PCT" envDefault:"0"`
	SimSpreadBps   float64 `env:"DLRARB_SIM_SPREAD_BPS" envDefault:"0"`
	FallbackRate   float64 `env:"DLRARB_SPOT_FALLBACK_RATE" envDefault:"0.35"`
	MaturityPolicy string  `env:"DLRARB_MATURITY_POLICY" envDefault:"business"`
	HalfSpread     float64 `env:"DLRARB_GAPFILL_HALF_SPREAD" envDefault:"0.0001"`
	Timezone       string  `env:"DLRARB_TIMEZONE" envDefault:"America/Argentina/Buenos_Aires"`

	SecretsFile string `env:"DLRARB_SECRETS_FILE" envDefault:".streamlit/secrets.toml"`

	Rofex  RofexConfig  `envPrefix:"ROFEX_"`
	Ambito AmbitoConfig `envPrefix:"AMBITO_"`
	Mock   MockConfig   `envPrefix:"MOCK_"`
	Redis  RedisConfig  `envPrefix:"REDIS_"`
	Kafka  KafkaConfig  `envPrefix:"KAFKA_"`
	SQLite SQLiteConfig `envPrefix:"SQLITE_"`
}

type RofexConfig struct {
	User        string        `env:"USER"`
	Password    string        `env:"PASSWORD"`
	Account     string        `env:"ACCOUNT"`
	Environment string        `env:"ENVIRONMENT" envDefault:"remarket"`
	BaseURL     string        `env:"BASE_URL"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"10s"`
	TickerLimit int           `env:"TICKER_LIMIT" envDefault:"30"`
	SeriesOnly  bool          `env:"SERIES_ONLY" envDefault:"true"`
	Series      string        `env:"SERIES" envDefault:"A"`
	MonthlyOnly bool          `env:"MONTHLY_ONLY" envDefault:"true"`
}

type AmbitoConfig struct {
	FuturesURL     string        `env:"FUTURES_URL"`
	SpotURL        string        `env:"SPOT_URL"`
	SpotTimeout    time.Duration `env:"SPOT_TIMEOUT" envDefault:"5s"`
	FuturesTimeout time.Duration `env:"FUTURES_TIMEOUT" envDefault:"10s"`
}

// MockConfig seeds the synthetic feed. Seed 0 means time-based.
type MockConfig struct {
	Seed int64 `env:"SEED" envDefault:"0"`
}

// RedisConfig is optional; an empty Addr disables the best-opportunity cache.
type RedisConfig struct {
	Addr     string        `env:"ADDR"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	TTL      time.Duration `env:"TTL" envDefault:"24h"`
	Prefix   string        `env:"PREFIX" envDefault:"dlr_best"`
}

// KafkaConfig is optional; empty Brokers (or "-") disables publishing.
type KafkaConfig struct {
	Brokers string `env:"BROKERS"`
	Topic   string `env:"TICKS_TOPIC" envDefault:"dlrarb.ticks"`
}

// SQLiteConfig is optional; an empty Path disables the journal.
type SQLiteConfig struct {
	Path string `env:"PATH"`
}

// Load reads .env (if present), the environment and the credentials file, then validates.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv is Load without the .env step.
func LoadFromEnv() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.applySecrets(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerations and numeric ranges. Missing ROFEX credentials are not an
// error here; the ROFEX feed reports them when it is selected.
func (c *Config) Validate() error {
	switch c.Feed {
	case FeedRofex, FeedAmbito, FeedMock:
	default:
		return fmt.Errorf("%w: feed %q (want rofex, ambito or mock)", ErrInvalid, c.Feed)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.LogLevel)
	}
	if strings.TrimSpace(c.FundingTenor) == "" {
		return fmt.Errorf("%w: funding tenor is empty", ErrInvalid)
	}
	if !(c.FallbackRate >= 0 && c.FallbackRate <= 1) {
		return fmt.Errorf("%w: spot fallback rate %.4f outside [0, 1]", ErrInvalid, c.FallbackRate)
	}
	if !(c.HalfSpread >= 0 && c.HalfSpread < 0.05) {
		return fmt.Errorf("%w: gap-fill half spread %.6f outside [0, 0.05)", ErrInvalid, c.HalfSpread)
	}
	if _, err := chain.ParsePolicy(c.MaturityPolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalid, c.Timezone, err)
	}
	if _, err := rofex.ParseEnvironment(c.Rofex.Environment); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Rofex.TickerLimit <= 0 {
		return fmt.Errorf("%w: ticker limit must be positive", ErrInvalid)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("%w: redis db must be >= 0", ErrInvalid)
	}
	return nil
}

// Normalizer builds the chain normalizer for the configured maturity policy and timezone.
func (c *Config) Normalizer() (*chain.Normalizer, error) {
	policy, err := chain.ParsePolicy(c.MaturityPolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalid, c.Timezone, err)
	}
	n := chain.NewNormalizer()
	n.Policy = policy
	n.HalfSpread = c.HalfSpread
	n.Location = loc
	return n, nil
}

// RofexCredentials returns the configured login.
func (c *Config) RofexCredentials() rofex.Credentials {
	return rofex.Credentials{Username: c.Rofex.User, Password: c.Rofex.Password, Account: c.Rofex.Account}
}

// TickerFilter returns the ROFEX symbol filter.
func (c *Config) TickerFilter() chain.TickerFilter {
	return chain.TickerFilter{MonthlyOnly: c.Rofex.MonthlyOnly, SeriesOnly: c.Rofex.SeriesOnly, Series: c.Rofex.Series}
}
