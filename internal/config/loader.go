package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ROSTERFI_* environment variable overrides, and
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

// applyEnvOverrides reads well-known ROSTERFI_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "ROSTERFI_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "ROSTERFI_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "ROSTERFI_WALLET_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "ROSTERFI_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "ROSTERFI_CHAIN_ID")
	setStr(&cfg.Chain.ExchangeContract, "ROSTERFI_CHAIN_EXCHANGE_CONTRACT")
	setStr(&cfg.Chain.PlayerTokenContract, "ROSTERFI_CHAIN_PLAYER_TOKEN_CONTRACT")
	setStr(&cfg.Chain.CurrencyContract, "ROSTERFI_CHAIN_CURRENCY_CONTRACT")
	setStr(&cfg.Chain.ExplorerURL, "ROSTERFI_CHAIN_EXPLORER_URL")

	// ── Backend ──
	setStr(&cfg.Backend.BaseURL, "ROSTERFI_BACKEND_BASE_URL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ROSTERFI_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ROSTERFI_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ROSTERFI_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ROSTERFI_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ROSTERFI_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ROSTERFI_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ROSTERFI_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "ROSTERFI_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "ROSTERFI_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ROSTERFI_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ROSTERFI_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ROSTERFI_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ROSTERFI_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ROSTERFI_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ROSTERFI_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ROSTERFI_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ROSTERFI_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ROSTERFI_POSTGRES_RUN_MIGRATIONS")

	// ── Server ──
	setInt(&cfg.Server.Port, "ROSTERFI_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ROSTERFI_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ROSTERFI_SERVER_API_KEY")
	setFloat64(&cfg.Server.RateLimitRPS, "ROSTERFI_SERVER_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateLimitBurst, "ROSTERFI_SERVER_RATE_LIMIT_BURST")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ROSTERFI_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ROSTERFI_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ROSTERFI_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ROSTERFI_NOTIFY_EVENTS")

	// ── Trading ──
	setFloat64(&cfg.Trading.DefaultSlippagePercent, "ROSTERFI_TRADING_DEFAULT_SLIPPAGE_PERCENT")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ROSTERFI_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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
