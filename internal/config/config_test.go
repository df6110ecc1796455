package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testExchange = "0x1111111111111111111111111111111111111111"
const testPlayerToken = "0x2222222222222222222222222222222222222222"
const testCurrency = "0x3333333333333333333333333333333333333333"

func validConfig() Config {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	cfg.Chain.ExchangeContract = testExchange
	cfg.Chain.PlayerTokenContract = testPlayerToken
	cfg.Chain.CurrencyContract = testCurrency
	return cfg
}

func TestValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing wallet key", func(c *Config) { c.Wallet.PrivateKey = "" }, "wallet"},
		{"keyfile without password", func(c *Config) {
			c.Wallet.PrivateKey = ""
			c.Wallet.EncryptedKeyPath = "/tmp/key.json"
		}, "key_password"},
		{"missing rpc url", func(c *Config) { c.Chain.RPCURL = "" }, "rpc_url"},
		{"bad chain id", func(c *Config) { c.Chain.ChainID = 0 }, "chain_id"},
		{"bad contract address", func(c *Config) { c.Chain.ExchangeContract = "not-an-address" }, "exchange_contract"},
		{"missing backend url", func(c *Config) { c.Backend.BaseURL = "" }, "base_url"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"bad server port", func(c *Config) { c.Server.Port = 99999 }, "port"},
		{"slippage out of range", func(c *Config) { c.Trading.DefaultSlippagePercent = 75 }, "slippage"},
		{"redis enabled without addr", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, "redis"},
		{"postgres pool inverted", func(c *Config) {
			c.Postgres.Enabled = true
			c.Postgres.PoolMinConns = 20
		}, "pool_min_conns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[chain]
rpc_url = "https://mainnet.base.org"
chain_id = 8453

[server]
port = 9100
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://mainnet.base.org", cfg.Chain.RPCURL)
	assert.Equal(t, 9100, cfg.Server.Port)
	// Defaults survive where the file is silent.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0.5, cfg.Trading.DefaultSlippagePercent)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "info"`), 0o600))

	t.Setenv("ROSTERFI_WALLET_PRIVATE_KEY", "deadbeef")
	t.Setenv("ROSTERFI_CHAIN_ID", "84532")
	t.Setenv("ROSTERFI_SERVER_CORS_ORIGINS", "https://app.example.com, https://beta.example.com")
	t.Setenv("ROSTERFI_REDIS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)
	assert.Equal(t, int64(84532), cfg.Chain.ChainID)
	assert.Equal(t, []string{"https://app.example.com", "https://beta.example.com"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Redis.Enabled)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "hunter2"
	cfg.Server.APIKey = "secret-key"
	cfg.Notify.TelegramToken = "tg-token"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Server.APIKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	// Original untouched.
	assert.Equal(t, "hunter2", cfg.Postgres.Password)

	// Non-secret fields survive.
	assert.Equal(t, cfg.Chain.RPCURL, red.Chain.RPCURL)
}
