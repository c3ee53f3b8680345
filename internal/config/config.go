// Package config defines the top-level configuration for the paper trading
// pilot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// duration wraps time.Duration so it can be decoded from TOML strings like
// "15m".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PILOT_* environment variables.
type Config struct {
	Account    AccountConfig    `toml:"account"`
	Pilot      PilotConfig      `toml:"pilot"`
	Risk       RiskConfig       `toml:"risk"`
	MarketData MarketDataConfig `toml:"market_data"`
	TextGen    TextGenConfig    `toml:"textgen"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`      // run / daemon
	LogLevel   string           `toml:"log_level"` // debug / info / warn / error
}

// AccountConfig identifies the pilot account and its bootstrap cash.
type AccountConfig struct {
	OwnerID      string  `toml:"owner_id"`
	StartingCash float64 `toml:"starting_cash"` // dollars
}

// PilotConfig controls the autonomous decision cycle.
type PilotConfig struct {
	Watchlist       []string `toml:"watchlist"`
	CycleInterval   duration `toml:"cycle_interval"`
	CycleTimeout    duration `toml:"cycle_timeout"`
	AutoExecute     bool     `toml:"auto_execute"`
	ConfidenceFloor float64  `toml:"confidence_floor"`
	// Concurrency bounds the number of symbols whose analysis and risk
	// stages run in parallel. State mutation is serialized regardless.
	Concurrency int `toml:"concurrency"`
}

// RiskConfig holds the portfolio constraint and sizing parameters.
type RiskConfig struct {
	MaxPositions        int     `toml:"max_positions"`
	MaxPositionNotional float64 `toml:"max_position_notional"` // dollars
	MaxRiskPerTrade     float64 `toml:"max_risk_per_trade"`    // fraction of equity
	MinRewardRisk       float64 `toml:"min_reward_risk"`
	CashBufferFrac      float64 `toml:"cash_buffer_frac"` // cash reserved on buys
}

// MaxPositionNotionalTicks returns the notional ceiling in fixed-point.
func (r RiskConfig) MaxPositionNotionalTicks() int64 {
	return domain.DollarsToTicks(r.MaxPositionNotional)
}

// MarketDataConfig controls the market-data collaborator and snapshot cache.
type MarketDataConfig struct {
	CacheTTL    duration `toml:"cache_ttl"`
	HistoryDays int      `toml:"history_days"`
	// StreamURL, when set, enables the websocket tick feed that refreshes
	// cached quotes between fetches.
	StreamURL string `toml:"stream_url"`
}

// TextGenConfig holds the text-generation collaborator parameters. When
// APIKey is empty the pilot falls back to deterministic template reasoning.
type TextGenConfig struct {
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Model   string   `toml:"model"`
	Timeout duration `toml:"timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection parameters for the cycle lock. When
// Enabled is false the pilot falls back to an in-process lock, which is
// sufficient for a single instance.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds object storage parameters for the trace document store.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds the HTTP API parameters. An empty APIKey disables
// authentication, which is only sensible for local development.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel parameters.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns the built-in configuration, matching the original pilot's
// parameters: $100k starting cash, 10 positions, $10k per position, 2% risk
// per trade, 2:1 reward/risk, 15-minute market-data TTL.
func Defaults() Config {
	return Config{
		Account: AccountConfig{
			OwnerID:      "pilot",
			StartingCash: 100_000,
		},
		Pilot: PilotConfig{
			Watchlist:       []string{"NVDA", "TSLA", "AAPL", "MSFT", "GOOGL"},
			CycleInterval:   duration{30 * time.Minute},
			CycleTimeout:    duration{10 * time.Minute},
			AutoExecute:     true,
			ConfidenceFloor: 0.6,
			Concurrency:     4,
		},
		Risk: RiskConfig{
			MaxPositions:        10,
			MaxPositionNotional: 10_000,
			MaxRiskPerTrade:     0.02,
			MinRewardRisk:       2.0,
			CashBufferFrac:      0,
		},
		MarketData: MarketDataConfig{
			CacheTTL:    duration{15 * time.Minute},
			HistoryDays: 90,
		},
		TextGen: TextGenConfig{
			Model:   "gpt-4o-mini",
			Timeout: duration{30 * time.Second},
		},
		Postgres: PostgresConfig{
			SSLMode:      "disable",
			PoolMaxConns: 8,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 8,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Mode:     "daemon",
		LogLevel: "info",
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	if len(c.Pilot.Watchlist) == 0 {
		return fmt.Errorf("config: pilot.watchlist must not be empty")
	}
	seen := make(map[string]bool, len(c.Pilot.Watchlist))
	for _, s := range c.Pilot.Watchlist {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if sym == "" {
			return fmt.Errorf("config: pilot.watchlist contains an empty symbol")
		}
		if seen[sym] {
			return fmt.Errorf("config: pilot.watchlist contains %s twice", sym)
		}
		seen[sym] = true
	}
	if c.Account.StartingCash <= 0 {
		return fmt.Errorf("config: account.starting_cash must be positive")
	}
	if c.Risk.MaxPositions <= 0 {
		return fmt.Errorf("config: risk.max_positions must be positive")
	}
	if c.Risk.MaxRiskPerTrade <= 0 || c.Risk.MaxRiskPerTrade >= 1 {
		return fmt.Errorf("config: risk.max_risk_per_trade must be in (0,1)")
	}
	if c.Risk.MinRewardRisk <= 0 {
		return fmt.Errorf("config: risk.min_reward_risk must be positive")
	}
	if c.Risk.CashBufferFrac < 0 || c.Risk.CashBufferFrac >= 1 {
		return fmt.Errorf("config: risk.cash_buffer_frac must be in [0,1)")
	}
	if c.Pilot.ConfidenceFloor < 0 || c.Pilot.ConfidenceFloor > 1 {
		return fmt.Errorf("config: pilot.confidence_floor must be in [0,1]")
	}
	if c.MarketData.CacheTTL.Duration <= 0 {
		return fmt.Errorf("config: market_data.cache_ttl must be positive")
	}
	switch c.Mode {
	case "run", "daemon":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}
	return nil
}

// StartingCashTicks returns the bootstrap cash in fixed-point.
func (c *Config) StartingCashTicks() int64 {
	return domain.DollarsToTicks(c.Account.StartingCash)
}

// NormalizedWatchlist returns the watchlist upper-cased and trimmed,
// preserving order. Watchlist order defines constraint priority.
func (c *Config) NormalizedWatchlist() []string {
	out := make([]string, 0, len(c.Pilot.Watchlist))
	for _, s := range c.Pilot.Watchlist {
		out = append(out, strings.ToUpper(strings.TrimSpace(s)))
	}
	return out
}
