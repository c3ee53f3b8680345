package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PILOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PILOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Account.OwnerID, "PILOT_ACCOUNT_OWNER_ID")
	setFloat64(&cfg.Account.StartingCash, "PILOT_ACCOUNT_STARTING_CASH")

	setStringSlice(&cfg.Pilot.Watchlist, "PILOT_WATCHLIST")
	setDuration(&cfg.Pilot.CycleInterval, "PILOT_CYCLE_INTERVAL")
	setDuration(&cfg.Pilot.CycleTimeout, "PILOT_CYCLE_TIMEOUT")
	setBool(&cfg.Pilot.AutoExecute, "PILOT_AUTO_EXECUTE")
	setFloat64(&cfg.Pilot.ConfidenceFloor, "PILOT_CONFIDENCE_FLOOR")
	setInt(&cfg.Pilot.Concurrency, "PILOT_CONCURRENCY")

	setInt(&cfg.Risk.MaxPositions, "PILOT_RISK_MAX_POSITIONS")
	setFloat64(&cfg.Risk.MaxPositionNotional, "PILOT_RISK_MAX_POSITION_NOTIONAL")
	setFloat64(&cfg.Risk.MaxRiskPerTrade, "PILOT_RISK_MAX_RISK_PER_TRADE")
	setFloat64(&cfg.Risk.MinRewardRisk, "PILOT_RISK_MIN_REWARD_RISK")
	setFloat64(&cfg.Risk.CashBufferFrac, "PILOT_RISK_CASH_BUFFER_FRAC")

	setDuration(&cfg.MarketData.CacheTTL, "PILOT_MARKET_DATA_CACHE_TTL")
	setInt(&cfg.MarketData.HistoryDays, "PILOT_MARKET_DATA_HISTORY_DAYS")
	setStr(&cfg.MarketData.StreamURL, "PILOT_MARKET_DATA_STREAM_URL")

	setStr(&cfg.TextGen.BaseURL, "PILOT_TEXTGEN_BASE_URL")
	setStr(&cfg.TextGen.APIKey, "PILOT_TEXTGEN_API_KEY")
	setStr(&cfg.TextGen.Model, "PILOT_TEXTGEN_MODEL")
	setDuration(&cfg.TextGen.Timeout, "PILOT_TEXTGEN_TIMEOUT")

	setStr(&cfg.Postgres.DSN, "PILOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PILOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PILOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PILOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PILOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PILOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PILOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PILOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PILOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PILOT_POSTGRES_RUN_MIGRATIONS")

	setBool(&cfg.Redis.Enabled, "PILOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PILOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PILOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PILOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PILOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PILOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PILOT_REDIS_TLS_ENABLED")

	setStr(&cfg.S3.Endpoint, "PILOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PILOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "PILOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PILOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PILOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PILOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PILOT_S3_FORCE_PATH_STYLE")

	setBool(&cfg.Server.Enabled, "PILOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PILOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "PILOT_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "PILOT_SERVER_CORS_ORIGINS")

	setStr(&cfg.Notify.TelegramToken, "PILOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PILOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PILOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PILOT_NOTIFY_EVENTS")

	setStr(&cfg.Mode, "PILOT_MODE")
	setStr(&cfg.LogLevel, "PILOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
