package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies VERITAS_* environment variable overrides, and
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

// applyEnvOverrides reads well-known VERITAS_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Signer ──
	setStr(&cfg.Signer.PrivateKey, "VERITAS_SIGNER_PRIVATE_KEY")
	setStr(&cfg.Signer.EncryptedKeyPath, "VERITAS_SIGNER_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Signer.KeyPassword, "VERITAS_SIGNER_KEY_PASSWORD")
	setInt64(&cfg.Signer.ChainID, "VERITAS_SIGNER_CHAIN_ID")
	setStr(&cfg.Signer.VerifyingContract, "VERITAS_SIGNER_VERIFYING_CONTRACT")
	setStr(&cfg.Signer.Owner, "VERITAS_SIGNER_OWNER")

	// ── Quote ──
	setDuration(&cfg.Quote.TTL, "VERITAS_QUOTE_TTL")

	// ── Oracle ──
	setDecimal(&cfg.Oracle.ProposerBond, "VERITAS_ORACLE_PROPOSER_BOND")
	setDecimal(&cfg.Oracle.DisputerBond, "VERITAS_ORACLE_DISPUTER_BOND")
	setDuration(&cfg.Oracle.DisputeWindow, "VERITAS_ORACLE_DISPUTE_WINDOW")
	setDuration(&cfg.Oracle.ResolutionDeadline, "VERITAS_ORACLE_RESOLUTION_DEADLINE")
	setStringSlice(&cfg.Oracle.Resolvers, "VERITAS_ORACLE_RESOLVERS")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "VERITAS_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "VERITAS_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "VERITAS_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "VERITAS_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "VERITAS_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "VERITAS_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "VERITAS_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "VERITAS_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "VERITAS_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "VERITAS_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "VERITAS_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "VERITAS_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "VERITAS_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VERITAS_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VERITAS_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "VERITAS_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "VERITAS_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "VERITAS_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "VERITAS_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "VERITAS_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "VERITAS_S3_REGION")
	setStr(&cfg.S3.Bucket, "VERITAS_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "VERITAS_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "VERITAS_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "VERITAS_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "VERITAS_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "VERITAS_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "VERITAS_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "VERITAS_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "VERITAS_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "VERITAS_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "VERITAS_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "VERITAS_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "VERITAS_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "VERITAS_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "VERITAS_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "VERITAS_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "VERITAS_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "VERITAS_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "VERITAS_MODE")
	setStr(&cfg.LogLevel, "VERITAS_LOG_LEVEL")
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

func setDecimal(dst *decimal.Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			*dst = d
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
