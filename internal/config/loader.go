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
// built-in defaults, applies SEKAD_* environment variable overrides, and
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

// applyEnvOverrides reads well-known SEKAD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Protocol ──
	setStr(&cfg.Protocol.AdminPublicKey, "SEKAD_PROTOCOL_ADMIN_PUBLIC_KEY")
	setStr(&cfg.Protocol.Mint, "SEKAD_PROTOCOL_MINT")
	setStr(&cfg.Protocol.PrivateKey, "SEKAD_PROTOCOL_PRIVATE_KEY")
	setStr(&cfg.Protocol.EncryptedKeyPath, "SEKAD_PROTOCOL_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Protocol.KeyPassword, "SEKAD_PROTOCOL_KEY_PASSWORD")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SEKAD_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SEKAD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SEKAD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SEKAD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SEKAD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SEKAD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SEKAD_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SEKAD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SEKAD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SEKAD_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SEKAD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SEKAD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SEKAD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SEKAD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SEKAD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SEKAD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SEKAD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SEKAD_S3_REGION")
	setStr(&cfg.S3.Bucket, "SEKAD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SEKAD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SEKAD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SEKAD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SEKAD_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "SEKAD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SEKAD_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SEKAD_SERVER_API_KEY")
	setStr(&cfg.Server.AdminKey, "SEKAD_SERVER_ADMIN_KEY")
	setStr(&cfg.Server.AdminSecret, "SEKAD_SERVER_ADMIN_SECRET")

	// ── Archive ──
	setInt(&cfg.Archive.RetentionDays, "SEKAD_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "SEKAD_ARCHIVE_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.Mode, "SEKAD_MODE")
	setStr(&cfg.LogLevel, "SEKAD_LOG_LEVEL")
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
