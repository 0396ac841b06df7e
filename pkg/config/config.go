// Package config assembles the runtime configuration once at startup.
// Values come from an optional YAML profile named by NESTCLAW_CONFIG,
// with NESTCLAW_* environment variables taking precedence. Nothing
// re-reads the environment after Load returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration.
type Config struct {
	Addr        string
	DBBackend   string
	DBPath      string
	DatabaseURL string
	ReportsRoot string
	MaxRetry    int
	ApprovalTTL time.Duration

	JWTSecret       string
	AuthMode        string
	IDPJWKSPath     string
	IDPIssuer       string
	IDPAudience     string
	IDPRoleClaim    string
	AllowSSOHeaders bool
	AllowHeaderAuth bool

	CORSOrigins  []string
	RateRPS      float64
	RateBurst    int
	RedisAddr    string
	OTELEndpoint string
	LogLevel     string
}

// Backend names accepted by DBBackend.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// DefaultJWTSecret signs local dev tokens when no secret is
// configured. Anything production-facing must override it.
const DefaultJWTSecret = "nestclaw-dev-secret-change"

// Load builds the configuration from the profile file and environment.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:            ":8080",
		DBBackend:       BackendSQLite,
		DBPath:          "data/nestclaw.db",
		ReportsRoot:     "reports",
		MaxRetry:        1,
		JWTSecret:       DefaultJWTSecret,
		AuthMode:        "local",
		IDPRoleClaim:    "role",
		AllowSSOHeaders: true,
		AllowHeaderAuth: true,
		RateRPS:         50,
		RateBurst:       100,
		LogLevel:        "info",
	}

	if path := os.Getenv("NESTCLAW_CONFIG"); path != "" {
		if err := cfg.applyProfile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// profile is the YAML file shape. Pointer fields distinguish "absent"
// from zero values so the file only overrides what it names.
type profile struct {
	Addr            string   `yaml:"addr"`
	DBBackend       string   `yaml:"db_backend"`
	DBPath          string   `yaml:"db_path"`
	DatabaseURL     string   `yaml:"database_url"`
	ReportsRoot     string   `yaml:"reports_root"`
	MaxRetry        *int     `yaml:"max_retry"`
	ApprovalTTL     string   `yaml:"approval_ttl"`
	JWTSecret       string   `yaml:"jwt_secret"`
	AuthMode        string   `yaml:"auth_mode"`
	IDPJWKSPath     string   `yaml:"idp_jwks_path"`
	IDPIssuer       string   `yaml:"idp_issuer"`
	IDPAudience     string   `yaml:"idp_audience"`
	IDPRoleClaim    string   `yaml:"idp_role_claim"`
	AllowSSOHeaders *bool    `yaml:"allow_sso_headers"`
	AllowHeaderAuth *bool    `yaml:"allow_header_auth"`
	CORSOrigins     []string `yaml:"cors_origins"`
	RateRPS         *float64 `yaml:"rate_rps"`
	RateBurst       *int     `yaml:"rate_burst"`
	RedisAddr       string   `yaml:"redis_addr"`
	OTELEndpoint    string   `yaml:"otel_endpoint"`
	LogLevel        string   `yaml:"log_level"`
}

func (c *Config) applyProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config profile: %w", err)
	}
	var p profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse config profile %s: %w", path, err)
	}

	setString(&c.Addr, p.Addr)
	setString(&c.DBBackend, p.DBBackend)
	setString(&c.DBPath, p.DBPath)
	setString(&c.DatabaseURL, p.DatabaseURL)
	setString(&c.ReportsRoot, p.ReportsRoot)
	setString(&c.JWTSecret, p.JWTSecret)
	setString(&c.AuthMode, p.AuthMode)
	setString(&c.IDPJWKSPath, p.IDPJWKSPath)
	setString(&c.IDPIssuer, p.IDPIssuer)
	setString(&c.IDPAudience, p.IDPAudience)
	setString(&c.IDPRoleClaim, p.IDPRoleClaim)
	setString(&c.RedisAddr, p.RedisAddr)
	setString(&c.OTELEndpoint, p.OTELEndpoint)
	setString(&c.LogLevel, p.LogLevel)

	if p.MaxRetry != nil {
		c.MaxRetry = *p.MaxRetry
	}
	if p.AllowSSOHeaders != nil {
		c.AllowSSOHeaders = *p.AllowSSOHeaders
	}
	if p.AllowHeaderAuth != nil {
		c.AllowHeaderAuth = *p.AllowHeaderAuth
	}
	if p.RateRPS != nil {
		c.RateRPS = *p.RateRPS
	}
	if p.RateBurst != nil {
		c.RateBurst = *p.RateBurst
	}
	if p.CORSOrigins != nil {
		c.CORSOrigins = p.CORSOrigins
	}
	if p.ApprovalTTL != "" {
		ttl, err := time.ParseDuration(p.ApprovalTTL)
		if err != nil {
			return fmt.Errorf("parse approval_ttl: %w", err)
		}
		c.ApprovalTTL = ttl
	}
	return nil
}

func (c *Config) applyEnv() error {
	setEnvString(&c.Addr, "NESTCLAW_ADDR")
	setEnvString(&c.DBBackend, "NESTCLAW_DB_BACKEND")
	setEnvString(&c.DBPath, "NESTCLAW_DB_PATH")
	setEnvString(&c.DatabaseURL, "NESTCLAW_DATABASE_URL")
	setEnvString(&c.ReportsRoot, "NESTCLAW_REPORTS_ROOT")
	setEnvString(&c.JWTSecret, "NESTCLAW_JWT_SECRET")
	setEnvString(&c.AuthMode, "NESTCLAW_AUTH_MODE")
	setEnvString(&c.IDPJWKSPath, "NESTCLAW_IDP_JWKS_PATH")
	setEnvString(&c.IDPIssuer, "NESTCLAW_IDP_ISSUER")
	setEnvString(&c.IDPAudience, "NESTCLAW_IDP_AUDIENCE")
	setEnvString(&c.IDPRoleClaim, "NESTCLAW_IDP_ROLE_CLAIM")
	setEnvString(&c.RedisAddr, "NESTCLAW_REDIS_ADDR")
	setEnvString(&c.OTELEndpoint, "NESTCLAW_OTEL_ENDPOINT")
	setEnvString(&c.LogLevel, "NESTCLAW_LOG_LEVEL")

	if raw := os.Getenv("NESTCLAW_CORS_ORIGINS"); raw != "" {
		parts := strings.Split(raw, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		c.CORSOrigins = origins
	}

	if raw := os.Getenv("NESTCLAW_MAX_RETRY"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse NESTCLAW_MAX_RETRY: %w", err)
		}
		c.MaxRetry = n
	}
	if raw := os.Getenv("NESTCLAW_APPROVAL_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parse NESTCLAW_APPROVAL_TTL: %w", err)
		}
		c.ApprovalTTL = ttl
	}
	if raw := os.Getenv("NESTCLAW_RATE_RPS"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("parse NESTCLAW_RATE_RPS: %w", err)
		}
		c.RateRPS = f
	}
	if raw := os.Getenv("NESTCLAW_RATE_BURST"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse NESTCLAW_RATE_BURST: %w", err)
		}
		c.RateBurst = n
	}
	if raw := os.Getenv("NESTCLAW_ALLOW_SSO_HEADERS"); raw != "" {
		c.AllowSSOHeaders = truthy(raw)
	}
	if raw := os.Getenv("NESTCLAW_ALLOW_HEADER_AUTH"); raw != "" {
		c.AllowHeaderAuth = truthy(raw)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.DBBackend {
	case BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("unsupported db backend: %s", c.DBBackend)
	}
	if c.DBBackend == BackendPostgres && c.DatabaseURL == "" {
		return fmt.Errorf("NESTCLAW_DATABASE_URL is required for the postgres backend")
	}
	switch c.AuthMode {
	case "local", "idp", "mixed":
	default:
		return fmt.Errorf("unsupported auth mode: %s", c.AuthMode)
	}
	if c.AuthMode == "idp" && c.IDPJWKSPath == "" {
		return fmt.Errorf("NESTCLAW_IDP_JWKS_PATH is required for auth mode idp")
	}
	if c.MaxRetry < 0 {
		return fmt.Errorf("max retry must not be negative")
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setEnvString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func truthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
