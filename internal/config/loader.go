package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load builds the configuration in three layers: built-in defaults, the TOML
// file at path (skipped when path is empty or missing), then GOLDBOT_*
// environment variables. A .env file in the working directory is loaded
// first so overrides work the same way in development.
func Load(path string) (Config, error) {
	cfg := Defaults()

	_ = godotenv.Load()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("config: decode %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr("GOLDBOT_MODE", &cfg.Mode)
	setStr("GOLDBOT_LOG_LEVEL", &cfg.LogLevel)

	setBool("GOLDBOT_SERVER_ENABLED", &cfg.Server.Enabled)
	setInt("GOLDBOT_SERVER_PORT", &cfg.Server.Port)
	setStringSlice("GOLDBOT_SERVER_CORS_ORIGINS", &cfg.Server.CORSOrigins)
	setStr("GOLDBOT_SERVER_API_KEY", &cfg.Server.APIKey)

	setBool("GOLDBOT_POSTGRES_ENABLED", &cfg.Postgres.Enabled)
	setStr("GOLDBOT_POSTGRES_DSN", &cfg.Postgres.DSN)
	setStr("GOLDBOT_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("GOLDBOT_POSTGRES_PORT", &cfg.Postgres.Port)
	setStr("GOLDBOT_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setStr("GOLDBOT_POSTGRES_USER", &cfg.Postgres.User)
	setStr("GOLDBOT_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setStr("GOLDBOT_POSTGRES_SSL_MODE", &cfg.Postgres.SSLMode)
	setBool("GOLDBOT_POSTGRES_RUN_MIGRATIONS", &cfg.Postgres.RunMigrations)

	setBool("GOLDBOT_REDIS_ENABLED", &cfg.Redis.Enabled)
	setStr("GOLDBOT_REDIS_ADDR", &cfg.Redis.Addr)
	setStr("GOLDBOT_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("GOLDBOT_REDIS_DB", &cfg.Redis.DB)
	setBool("GOLDBOT_REDIS_TLS_ENABLED", &cfg.Redis.TLSEnabled)

	setBool("GOLDBOT_S3_ENABLED", &cfg.S3.Enabled)
	setStr("GOLDBOT_S3_ENDPOINT", &cfg.S3.Endpoint)
	setStr("GOLDBOT_S3_REGION", &cfg.S3.Region)
	setStr("GOLDBOT_S3_BUCKET", &cfg.S3.Bucket)
	setStr("GOLDBOT_S3_ACCESS_KEY", &cfg.S3.AccessKey)
	setStr("GOLDBOT_S3_SECRET_KEY", &cfg.S3.SecretKey)
	setInt("GOLDBOT_S3_RETENTION_DAYS", &cfg.S3.RetentionDays)
	setDuration("GOLDBOT_S3_ARCHIVE_INTERVAL", &cfg.S3.ArchiveInterval)

	setStr("GOLDBOT_ORACLE_BASE_URL", &cfg.Oracle.BaseURL)
	setStr("GOLDBOT_ORACLE_API_KEY", &cfg.Oracle.APIKey)
	setDuration("GOLDBOT_ORACLE_TIMEOUT", &cfg.Oracle.Timeout)
	setDuration("GOLDBOT_ORACLE_REFRESH_INTERVAL", &cfg.Oracle.RefreshInterval)

	setFloat64("GOLDBOT_LEDGER_SEED_COLLATERAL", &cfg.Ledger.SeedCollateral)
	setFloat64("GOLDBOT_LEDGER_FALLBACK_PRICE", &cfg.Ledger.FallbackPrice)
	setFloat64("GOLDBOT_LEDGER_COLLATERAL_RATIO", &cfg.Ledger.CollateralRatio)
	setDuration("GOLDBOT_LEDGER_LOCK_TTL", &cfg.Ledger.LockTTL)
	setDuration("GOLDBOT_LEDGER_LOCK_WAIT", &cfg.Ledger.LockWait)
	setDuration("GOLDBOT_LEDGER_SNAPSHOT_INTERVAL", &cfg.Ledger.SnapshotInterval)

	setBool("GOLDBOT_TELEGRAM_ENABLED", &cfg.Telegram.Enabled)
	setStr("GOLDBOT_TELEGRAM_TOKEN", &cfg.Telegram.Token)

	setStr("GOLDBOT_NOTIFY_TELEGRAM_TOKEN", &cfg.Notify.TelegramToken)
	setStr("GOLDBOT_NOTIFY_TELEGRAM_CHAT_ID", &cfg.Notify.TelegramChatID)
	setStr("GOLDBOT_NOTIFY_DISCORD_WEBHOOK_URL", &cfg.Notify.DiscordWebhookURL)
	setStringSlice("GOLDBOT_NOTIFY_EVENTS", &cfg.Notify.Events)
}

func setStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(key string, dst *duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(key string, dst *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}
