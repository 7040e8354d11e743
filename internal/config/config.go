// Package config centralises configuration parsing for the callback console.
package config

import (
	"os"
	"strings"
	"time"
)

// DefaultAgents is the agent roster offered by the editor when the
// deployment does not configure its own. The upstream CRM has no roster
// endpoint, so the list ships with the console.
var DefaultAgents = []string{
	"John Smith",
	"Emily Johnson",
	"Michael Brown",
	"Sarah Davis",
	"Robert Wilson",
}

// Config captures runtime configuration values for the console.
type Config struct {
	HTTPAddress       string
	UpstreamBaseURL   string
	UpstreamTimeout   time.Duration
	SessionHashKey    string
	SessionBlockKey   string
	SessionCookieName string
	SessionMaxAge     time.Duration
	EditorFormTTL     time.Duration
	AllowedOrigin     string
	Agents            []string
}

// Load reads environment variables into Config, applying sensible defaults for local dev.
func Load() Config {
	cfg := Config{
		HTTPAddress:       getEnv("HTTP_ADDRESS", ":8090"),
		UpstreamBaseURL:   getEnv("UPSTREAM_BASE_URL", "http://localhost:8000/api/v1"),
		UpstreamTimeout:   getDurationEnv("UPSTREAM_TIMEOUT", 10*time.Second),
		SessionHashKey:    getEnv("SESSION_HASH_KEY", "dev-hash-key-change-me"),
		SessionBlockKey:   getEnv("SESSION_BLOCK_KEY", ""),
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "crmx_session"),
		SessionMaxAge:     getDurationEnv("SESSION_MAX_AGE", 12*time.Hour),
		EditorFormTTL:     getDurationEnv("EDITOR_FORM_TTL", 30*time.Minute),
		AllowedOrigin:     getEnv("CONSOLE_ALLOWED_ORIGIN", "http://localhost:3000"),
	}

	cfg.Agents = splitAndTrim(getEnv("CONSOLE_AGENTS", ""))
	if len(cfg.Agents) == 0 {
		cfg.Agents = DefaultAgents
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
