package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Protocol.AdminPublicKey = "8tk7QMWEvc4Y5csZKDDieT4iGnCXzBbr6kkSSa8zinEv"
	cfg.Protocol.Mint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	return cfg
}

func TestValidateDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "bogus"
	cfg.Server.Port = 0
	cfg.Archive.RetentionDays = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode")
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "archive.retention_days")
}

func TestValidateAdminCredentialsPaired(t *testing.T) {
	cfg := validConfig()
	cfg.Server.AdminKey = "ops"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin_secret")

	cfg.Server.AdminSecret = "s3cret"
	require.NoError(t, cfg.Validate())
}

func TestValidateDSNSkipsDiscreteFields(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.DSN = "postgres://u:p@db:5432/sekad"
	cfg.Postgres.Host = ""
	cfg.Postgres.Database = ""
	cfg.Postgres.User = ""
	require.NoError(t, cfg.Validate())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "serve"
log_level = "debug"

[protocol]
admin_public_key = "8tk7QMWEvc4Y5csZKDDieT4iGnCXzBbr6kkSSa8zinEv"
mint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

[server]
port = 9000

[archive]
interval = "6h"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	t.Setenv("SEKAD_SERVER_PORT", "9100")
	t.Setenv("SEKAD_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("SEKAD_ARCHIVE_INTERVAL", "12h")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9100, cfg.Server.Port, "env var beats TOML")
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, 12*time.Hour, cfg.Archive.Interval.Duration)
	require.NoError(t, cfg.Validate())
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Protocol.PrivateKey = "supersecretkey"
	cfg.Postgres.Password = "dbpass"
	cfg.Server.AdminSecret = "hmacsecret"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Protocol.PrivateKey)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Server.AdminSecret)

	// The original is untouched.
	assert.Equal(t, "dbpass", cfg.Postgres.Password)
}
