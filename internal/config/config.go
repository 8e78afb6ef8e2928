// Package config defines the bot configuration and its validation rules.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/arbiq/spreadbot/internal/feed"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file, then overridden by SPREADBOT_* environment variables, then by CLI
// flags.
type Config struct {
	// Symbol is the human-readable trading pair, e.g. "BTC/USDT".
	Symbol string `toml:"symbol"`

	// Exchanges lists the exchange ids to monitor, in priority order. The
	// order doubles as the tie-break rule when spread endpoints are equal.
	Exchanges []string `toml:"exchanges"`

	// Threshold is the minimum spread percentage (inclusive) that triggers
	// an arbitrage attempt or alert.
	Threshold float64 `toml:"threshold"`

	// TradeLimit caps the base amount of a single live trade.
	TradeLimit float64 `toml:"trade_limit"`

	// MaxTrades stops the bot after this many completed live trades; zero
	// means unlimited.
	MaxTrades int `toml:"max_trades"`

	// RealTrade enables live trading; the default is dry-run.
	RealTrade bool `toml:"real_trade"`

	// IncludeSimulatedProfit adds dry-run results to the cumulative profit
	// total.
	IncludeSimulatedProfit bool `toml:"include_simulated_profit"`

	Mode     string `toml:"mode"`
	LogLevel string `toml:"log_level"`

	Notify   NotifyConfig   `toml:"notify"`
	Gateway  GatewayConfig  `toml:"gateway"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
}

// NotifyConfig holds the notification endpoint.
type NotifyConfig struct {
	WebhookURL string `toml:"webhook_url"`
}

// GatewayConfig holds trade-execution service parameters.
type GatewayConfig struct {
	BaseURL        string   `toml:"base_url"`
	APIKey         string   `toml:"api_key"`
	SimulatedDelay duration `toml:"simulated_delay"`
}

// RedisConfig holds parameters for the optional latest-price mirror.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds parameters for the optional attempt journal.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "500ms", "2s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for the TOML decoder.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Symbol:                 "BTC/USDT",
		Exchanges:              []string{"binance", "okx"},
		Threshold:              0.3,
		TradeLimit:             0.01,
		MaxTrades:              0,
		RealTrade:              false,
		IncludeSimulatedProfit: true,
		Mode:                   "trade",
		LogLevel:               "info",
		Gateway: GatewayConfig{
			SimulatedDelay: duration{500 * time.Millisecond},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "spreadbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a combined
// error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if !strings.Contains(c.Symbol, "/") {
		errs = append(errs, fmt.Sprintf("symbol %q must be BASE/QUOTE, e.g. BTC/USDT", c.Symbol))
	}

	if len(c.Exchanges) < 2 {
		errs = append(errs, "at least two exchanges are required")
	}
	supported := make(map[string]bool)
	for _, ex := range feed.SupportedExchanges() {
		supported[ex] = true
	}
	seen := make(map[string]bool)
	for _, ex := range c.Exchanges {
		if !supported[ex] {
			errs = append(errs, fmt.Sprintf("unsupported exchange %q (valid: %s)",
				ex, strings.Join(feed.SupportedExchanges(), ", ")))
		}
		if seen[ex] {
			errs = append(errs, fmt.Sprintf("duplicate exchange %q", ex))
		}
		seen[ex] = true
	}

	if c.Threshold <= 0 {
		errs = append(errs, "threshold must be > 0")
	}
	if c.MaxTrades < 0 {
		errs = append(errs, "max_trades must be >= 0")
	}

	if c.RealTrade {
		if c.TradeLimit <= 0 {
			errs = append(errs, "trade_limit must be > 0 for live trading")
		}
		if c.Gateway.BaseURL == "" {
			errs = append(errs, "gateway: base_url is required for live trading")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Postgres.Enabled && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
