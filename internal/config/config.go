// Package config defines the escrow service configuration, loaded from TOML
// with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// duration wraps time.Duration so TOML files can use human-readable values
// like "15m" or "24h".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the root configuration for the escrow service.
type Config struct {
	Protocol ProtocolConfig `toml:"protocol"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Archive  ArchiveConfig  `toml:"archive"`

	// Mode selects what the process does: "serve" runs the API server,
	// "archive" runs a one-shot archive pass and exits.
	Mode string `toml:"mode"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

// ProtocolConfig holds the on-protocol identities the service operates with.
type ProtocolConfig struct {
	// AdminPublicKey is the base58 public key allowed to initialize the
	// config and resolve bets.
	AdminPublicKey string `toml:"admin_public_key"`

	// Mint is the base58 mint address of the token every bet escrows.
	Mint string `toml:"mint"`

	// PrivateKey is the service signing key in base58. Prefer the encrypted
	// keyfile in production.
	PrivateKey string `toml:"private_key"`

	// EncryptedKeyPath points at an encrypted keyfile; KeyPassword decrypts
	// it. Used when PrivateKey is empty.
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PostgresConfig holds the Postgres connection settings. DSN takes priority;
// otherwise the discrete fields are assembled into one.
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

// RedisConfig holds the Redis connection settings. An empty Addr disables
// Redis; the service then runs without the cache and event fanout.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds the object storage settings for the archiver. An empty
// Bucket disables archiving.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`

	// APIKey protects the public API when set; empty leaves it open.
	APIKey string `toml:"api_key"`

	// AdminKey and AdminSecret are the HMAC credentials for /api/admin
	// endpoints. Both must be set for the admin surface to accept requests.
	AdminKey    string `toml:"admin_key"`
	AdminSecret string `toml:"admin_secret"`
}

// ArchiveConfig controls the background archive loop in serve mode.
type ArchiveConfig struct {
	// RetentionDays is how long events stay in Postgres before being moved
	// to object storage.
	RetentionDays int `toml:"retention_days"`

	// Interval is how often the archive loop runs.
	Interval duration `toml:"interval"`
}

// Defaults returns a Config populated with sensible defaults. Load merges the
// TOML file and environment overrides on top of this.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "sekad",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "",
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
		},
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"*"},
		},
		Archive: ArchiveConfig{
			RetentionDays: 30,
			Interval:      duration{24 * time.Hour},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"serve":   true,
	"archive": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for inconsistencies. All problems are
// collected and returned as a single error so operators see everything at
// once.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[c.Mode] {
		errs = append(errs, fmt.Sprintf("mode %q is not valid (serve, archive)", c.Mode))
	}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("log_level %q is not valid (debug, info, warn, error)", c.LogLevel))
	}

	if c.Protocol.AdminPublicKey == "" {
		errs = append(errs, "protocol.admin_public_key is required")
	}
	if c.Protocol.Mint == "" {
		errs = append(errs, "protocol.mint is required")
	}
	if c.Protocol.EncryptedKeyPath != "" && c.Protocol.KeyPassword == "" {
		errs = append(errs, "protocol.key_password is required when protocol.encrypted_key_path is set")
	}

	if c.Postgres.DSN == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres.host is required when postgres.dsn is not set")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres.port %d is out of range", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres.database is required when postgres.dsn is not set")
		}
		if c.Postgres.User == "" {
			errs = append(errs, "postgres.user is required when postgres.dsn is not set")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres.pool_max_conns must be at least 1")
	}
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres.pool_min_conns must be between 0 and pool_max_conns")
	}

	if c.S3.Bucket != "" {
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			errs = append(errs, "s3.access_key and s3.secret_key are required when s3.bucket is set")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if (c.Server.AdminKey == "") != (c.Server.AdminSecret == "") {
		errs = append(errs, "server.admin_key and server.admin_secret must be set together")
	}

	if c.Archive.RetentionDays < 1 {
		errs = append(errs, "archive.retention_days must be at least 1")
	}
	if c.Archive.Interval.Duration <= 0 {
		errs = append(errs, "archive.interval must be positive")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}
