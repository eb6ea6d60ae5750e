// Package config loads service configuration from the environment once at
// startup. The resulting Config is treated as immutable.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// MinAuthSecretLen is the minimum acceptable signing key length in bytes.
// A shorter key makes forged tokens feasible, so startup refuses it outright.
const MinAuthSecretLen = 32

// Config holds all runtime settings for the service.
type Config struct {
	// Database
	DatabaseDSN string

	// Tokens
	AuthSecret      string
	TokenIssuer     string
	TokenAudience   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Registration policy. Empty means any syntactically valid address.
	AllowedEmailDomains []string

	// Bootstrap admin credential. Defaults are demo values; operators are
	// expected to override both in anything resembling production.
	AdminEmail    string
	AdminPassword string

	// Server
	HTTPAddr string

	// Rate limiting
	RateBurst  int
	RatePerSec int
}

// Load reads configuration from environment variables. Missing required
// variables and an undersized signing key are reported as errors so the
// process fails at startup rather than per-request.
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseDSN = os.Getenv("ESHOP_PG_DSN")
	if cfg.DatabaseDSN == "" {
		missing = append(missing, "ESHOP_PG_DSN")
	}

	cfg.AuthSecret = strings.TrimSpace(os.Getenv("ESHOP_AUTH_SECRET"))
	if cfg.AuthSecret == "" {
		missing = append(missing, "ESHOP_AUTH_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}
	if len(cfg.AuthSecret) < MinAuthSecretLen {
		return nil, fmt.Errorf("ESHOP_AUTH_SECRET must be at least %d bytes", MinAuthSecretLen)
	}

	cfg.TokenIssuer = getEnvString("ESHOP_TOKEN_ISSUER", "eshop")
	cfg.TokenAudience = getEnvString("ESHOP_TOKEN_AUDIENCE", "eshop-clients")
	cfg.AccessTokenTTL = getEnvDuration("ESHOP_ACCESS_TOKEN_TTL", 15*time.Minute)
	cfg.RefreshTokenTTL = getEnvDuration("ESHOP_REFRESH_TOKEN_TTL", 7*24*time.Hour)
	cfg.AllowedEmailDomains = splitList(os.Getenv("ESHOP_ALLOWED_EMAIL_DOMAINS"))
	cfg.AdminEmail = getEnvString("ESHOP_ADMIN_EMAIL", "admin1@gmail.com")
	cfg.AdminPassword = getEnvString("ESHOP_ADMIN_PASSWORD", "Admin@123")
	cfg.HTTPAddr = getEnvString("ESHOP_HTTP_ADDR", ":8080")
	cfg.RateBurst = getEnvInt("ESHOP_RATE_BURST", 20)
	cfg.RatePerSec = getEnvInt("ESHOP_RATE_PER_SEC", 10)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
