// Package config defines the top-level configuration for goldbot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// duration wraps time.Duration so TOML files can say "30s" or "1h".
type duration struct {
	time.Duration
}

// UnmarshalText parses Go duration syntax.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Config is the root configuration. Fields are populated from a TOML file
// and then optionally overridden by GOLDBOT_* environment variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Oracle   OracleConfig   `toml:"oracle"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Telegram TelegramConfig `toml:"telegram"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds the HTTP API parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// PostgresConfig holds connection parameters for the ledger database. When
// disabled, the process falls back to in-memory stores and keeps no state
// across restarts.
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

// RedisConfig holds Redis connection parameters. When disabled, locking and
// events stay in-process.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds object storage parameters for ledger archival.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	RetentionDays   int      `toml:"retention_days"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// OracleConfig holds the goldchain price API parameters.
type OracleConfig struct {
	BaseURL         string   `toml:"base_url"`
	APIKey          string   `toml:"api_key"`
	Timeout         duration `toml:"timeout"`
	RefreshInterval duration `toml:"refresh_interval"`
	CacheMaxStale   duration `toml:"cache_max_stale"`
}

// RateTierConfig is one interest tier: the rate applies to terms up to and
// including max_term_days.
type RateTierConfig struct {
	MaxTermDays int     `toml:"max_term_days"`
	Rate        float64 `toml:"rate"`
}

// LedgerConfig holds the engine's business constants.
type LedgerConfig struct {
	SeedCollateral   float64          `toml:"seed_collateral"`
	FallbackPrice    float64          `toml:"fallback_price"`
	CollateralRatio  float64          `toml:"collateral_ratio"`
	LendRates        []RateTierConfig `toml:"lend_rates"`
	BorrowRates      []RateTierConfig `toml:"borrow_rates"`
	LockTTL          duration         `toml:"lock_ttl"`
	LockWait         duration         `toml:"lock_wait"`
	SnapshotInterval duration         `toml:"snapshot_interval"`
}

// TelegramConfig holds the chat bot parameters.
type TelegramConfig struct {
	Enabled bool   `toml:"enabled"`
	Token   string `toml:"token"`
}

// NotifyConfig holds operator alert parameters.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns the built-in configuration: a single-node development
// setup with in-memory stores and the stock rate tiers.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Port:          5432,
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		S3: S3Config{
			Enabled:         false,
			Region:          "us-east-1",
			UseSSL:          true,
			RetentionDays:   90,
			ArchiveInterval: duration{24 * time.Hour},
		},
		Oracle: OracleConfig{
			BaseURL:         "https://api.goldchain.io",
			Timeout:         duration{10 * time.Second},
			RefreshInterval: duration{time.Minute},
			CacheMaxStale:   duration{time.Minute},
		},
		Ledger: LedgerConfig{
			SeedCollateral:  100,
			FallbackPrice:   0.05,
			CollateralRatio: 1.5,
			LendRates: []RateTierConfig{
				{MaxTermDays: 30, Rate: 0.04},
				{MaxTermDays: 90, Rate: 0.055},
				{MaxTermDays: 365, Rate: 0.07},
			},
			BorrowRates: []RateTierConfig{
				{MaxTermDays: 30, Rate: 0.06},
				{MaxTermDays: 90, Rate: 0.075},
				{MaxTermDays: 365, Rate: 0.09},
			},
			LockTTL:          duration{15 * time.Second},
			LockWait:         duration{2 * time.Second},
			SnapshotInterval: duration{time.Hour},
		},
		Telegram: TelegramConfig{
			Enabled: true,
		},
		Notify: NotifyConfig{
			Events: []string{"borrow", "repay", "claim", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"bot":    true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration and returns one combined error naming
// every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: bot, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	mode := strings.ToLower(c.Mode)
	botActive := c.Telegram.Enabled && (mode == "bot" || mode == "full")
	if botActive && c.Telegram.Token == "" {
		errs = append(errs, "telegram: token is required when the bot is enabled")
	}
	if mode == "bot" && !c.Telegram.Enabled {
		errs = append(errs, "telegram: must be enabled for mode bot")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
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
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
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

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1")
		}
	}

	if c.Oracle.BaseURL == "" {
		errs = append(errs, "oracle: base_url must not be empty")
	}

	if c.Ledger.SeedCollateral < 0 {
		errs = append(errs, "ledger: seed_collateral must not be negative")
	}
	if c.Ledger.FallbackPrice <= 0 {
		errs = append(errs, "ledger: fallback_price must be > 0")
	}
	if c.Ledger.CollateralRatio < 1 {
		errs = append(errs, "ledger: collateral_ratio must be >= 1")
	}
	if len(c.Ledger.LendRates) == 0 {
		errs = append(errs, "ledger: at least one lend rate tier is required")
	}
	if len(c.Ledger.BorrowRates) == 0 {
		errs = append(errs, "ledger: at least one borrow rate tier is required")
	}
	for _, tiers := range [][]RateTierConfig{c.Ledger.LendRates, c.Ledger.BorrowRates} {
		for i, t := range tiers {
			if t.Rate < 0 {
				errs = append(errs, fmt.Sprintf("ledger: rate tier %d has negative rate", i))
			}
			if i > 0 && t.MaxTermDays <= tiers[i-1].MaxTermDays {
				errs = append(errs, "ledger: rate tiers must have strictly increasing max_term_days")
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
