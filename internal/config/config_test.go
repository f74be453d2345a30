package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultsAreInvalidWithoutToken(t *testing.T) {
	cfg := Defaults()
	// Full mode with the bot enabled needs a Telegram token.
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "telegram")
}

func TestDefaultsValidateWithToken(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "123:abc"
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "banana"
	cfg.LogLevel = "loud"
	cfg.Server.Port = -1
	cfg.Ledger.FallbackPrice = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, "unknown mode")
	require.Contains(t, msg, "unknown log_level")
	require.Contains(t, msg, "port must be")
	require.Contains(t, msg, "fallback_price")
}

func TestValidateRateTierOrdering(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "123:abc"
	cfg.Ledger.LendRates = []RateTierConfig{
		{MaxTermDays: 90, Rate: 0.05},
		{MaxTermDays: 30, Rate: 0.04},
	}

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "strictly increasing")
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
mode = "server"
log_level = "debug"

[server]
port = 9090

[oracle]
timeout = "5s"
refresh_interval = "30s"

[ledger]
seed_collateral = 250.0

[[ledger.lend_rates]]
max_term_days = 60
rate = 0.03
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "server", cfg.Mode)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 5*time.Second, cfg.Oracle.Timeout.Duration)
	require.Equal(t, 30*time.Second, cfg.Oracle.RefreshInterval.Duration)
	require.Equal(t, 250.0, cfg.Ledger.SeedCollateral)
	require.Len(t, cfg.Ledger.LendRates, 1)
	require.Equal(t, 60, cfg.Ledger.LendRates[0].MaxTermDays)

	// Untouched sections keep defaults.
	require.Equal(t, 1.5, cfg.Ledger.CollateralRatio)
	require.Len(t, cfg.Ledger.BorrowRates, 3)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	require.Equal(t, "full", cfg.Mode)
	require.Equal(t, 8000, cfg.Server.Port)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GOLDBOT_MODE", "bot")
	t.Setenv("GOLDBOT_SERVER_PORT", "7070")
	t.Setenv("GOLDBOT_LEDGER_SEED_COLLATERAL", "42.5")
	t.Setenv("GOLDBOT_LEDGER_LOCK_WAIT", "750ms")
	t.Setenv("GOLDBOT_NOTIFY_EVENTS", "borrow, repay")
	t.Setenv("GOLDBOT_REDIS_ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "bot", cfg.Mode)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, 42.5, cfg.Ledger.SeedCollateral)
	require.Equal(t, 750*time.Millisecond, cfg.Ledger.LockWait.Duration)
	require.Equal(t, []string{"borrow", "repay"}, cfg.Notify.Events)
	require.True(t, cfg.Redis.Enabled)
}
