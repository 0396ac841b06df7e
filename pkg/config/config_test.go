package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redsunjin/NestClaw/pkg/config"
)

// clearEnv blanks every variable Load reads so earlier shell state
// cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NESTCLAW_CONFIG", "NESTCLAW_ADDR", "NESTCLAW_DB_BACKEND", "NESTCLAW_DB_PATH",
		"NESTCLAW_DATABASE_URL", "NESTCLAW_REPORTS_ROOT", "NESTCLAW_MAX_RETRY",
		"NESTCLAW_APPROVAL_TTL", "NESTCLAW_JWT_SECRET", "NESTCLAW_AUTH_MODE",
		"NESTCLAW_IDP_JWKS_PATH", "NESTCLAW_IDP_ISSUER", "NESTCLAW_IDP_AUDIENCE",
		"NESTCLAW_IDP_ROLE_CLAIM", "NESTCLAW_ALLOW_SSO_HEADERS", "NESTCLAW_ALLOW_HEADER_AUTH",
		"NESTCLAW_CORS_ORIGINS", "NESTCLAW_RATE_RPS", "NESTCLAW_RATE_BURST",
		"NESTCLAW_REDIS_ADDR", "NESTCLAW_OTEL_ENDPOINT", "NESTCLAW_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, config.BackendSQLite, cfg.DBBackend)
	assert.Equal(t, "data/nestclaw.db", cfg.DBPath)
	assert.Equal(t, "reports", cfg.ReportsRoot)
	assert.Equal(t, 1, cfg.MaxRetry)
	assert.Equal(t, time.Duration(0), cfg.ApprovalTTL)
	assert.Equal(t, config.DefaultJWTSecret, cfg.JWTSecret)
	assert.Equal(t, "local", cfg.AuthMode)
	assert.Equal(t, "role", cfg.IDPRoleClaim)
	assert.True(t, cfg.AllowSSOHeaders)
	assert.True(t, cfg.AllowHeaderAuth)
	assert.Equal(t, float64(50), cfg.RateRPS)
	assert.Equal(t, 100, cfg.RateBurst)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.CORSOrigins)
	assert.Empty(t, cfg.OTELEndpoint)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("NESTCLAW_ADDR", ":9090")
	t.Setenv("NESTCLAW_DB_BACKEND", "postgres")
	t.Setenv("NESTCLAW_DATABASE_URL", "postgres://orch:secret@db:5432/nestclaw?sslmode=disable")
	t.Setenv("NESTCLAW_MAX_RETRY", "3")
	t.Setenv("NESTCLAW_APPROVAL_TTL", "45m")
	t.Setenv("NESTCLAW_ALLOW_HEADER_AUTH", "0")
	t.Setenv("NESTCLAW_CORS_ORIGINS", "https://ok.example, https://two.example")
	t.Setenv("NESTCLAW_RATE_RPS", "2.5")
	t.Setenv("NESTCLAW_LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, config.BackendPostgres, cfg.DBBackend)
	assert.Equal(t, 3, cfg.MaxRetry)
	assert.Equal(t, 45*time.Minute, cfg.ApprovalTTL)
	assert.False(t, cfg.AllowHeaderAuth)
	assert.True(t, cfg.AllowSSOHeaders)
	assert.Equal(t, []string{"https://ok.example", "https://two.example"}, cfg.CORSOrigins)
	assert.Equal(t, 2.5, cfg.RateRPS)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadProfileAndPrecedence(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":7070"
db_backend: sqlite
reports_root: /var/lib/nestclaw/reports
max_retry: 2
approval_ttl: 30m
allow_sso_headers: false
cors_origins:
  - https://file.example
rate_burst: 10
`), 0o600))

	t.Setenv("NESTCLAW_CONFIG", path)
	// Environment beats the profile.
	t.Setenv("NESTCLAW_ADDR", ":6060")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":6060", cfg.Addr)
	assert.Equal(t, "/var/lib/nestclaw/reports", cfg.ReportsRoot)
	assert.Equal(t, 2, cfg.MaxRetry)
	assert.Equal(t, 30*time.Minute, cfg.ApprovalTTL)
	assert.False(t, cfg.AllowSSOHeaders)
	assert.True(t, cfg.AllowHeaderAuth)
	assert.Equal(t, []string{"https://file.example"}, cfg.CORSOrigins)
	assert.Equal(t, 10, cfg.RateBurst)
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("NESTCLAW_DB_BACKEND", "oracle")
	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported db backend")

	clearEnv(t)
	t.Setenv("NESTCLAW_DB_BACKEND", "postgres")
	_, err = config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NESTCLAW_DATABASE_URL")

	clearEnv(t)
	t.Setenv("NESTCLAW_AUTH_MODE", "basic")
	_, err = config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported auth mode")

	clearEnv(t)
	t.Setenv("NESTCLAW_AUTH_MODE", "idp")
	_, err = config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NESTCLAW_IDP_JWKS_PATH")

	clearEnv(t)
	t.Setenv("NESTCLAW_MAX_RETRY", "many")
	_, err = config.Load()
	require.Error(t, err)

	clearEnv(t)
	t.Setenv("NESTCLAW_APPROVAL_TTL", "soon")
	_, err = config.Load()
	require.Error(t, err)

	clearEnv(t)
	t.Setenv("NESTCLAW_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = config.Load()
	require.Error(t, err)
}
