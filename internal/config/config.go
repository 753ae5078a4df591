// Package config provides application configuration through environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// BackendURL is the base URL of the music backend.
	BackendURL string
	// BackendPublicKey is the project-scoped public API key.
	BackendPublicKey string
	// BackendServiceKey is the privileged service key used as the bearer credential.
	BackendServiceKey string

	// ClientID identifies this gateway to the backend.
	ClientID string
	// AgentID is the default acting agent identity; per-call overrides win.
	AgentID string

	// ToolGroups is a comma-separated list of tool groups to expose.
	ToolGroups string

	// HTTPListen is the listen address for the HTTP surface.
	HTTPListen string
	// MCPListen is the listen address for the MCP JSON-RPC surface.
	MCPListen string

	// RequestTimeout bounds each backend request attempt; a call that retries
	// can run for up to MaxRetries+1 times this.
	RequestTimeout time.Duration
	// MaxRetries is the retry budget for retryable backend failures.
	MaxRetries int

	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	loadDotEnv()

	return &Config{
		BackendURL:        env.GetString("MUSEHUB_BACKEND_URL", ""),
		BackendPublicKey:  env.GetString("MUSEHUB_PUBLIC_KEY", ""),
		BackendServiceKey: env.GetString("MUSEHUB_SERVICE_KEY", ""),

		ClientID: env.GetString("MUSEHUB_CLIENT_ID", "musehub"),
		AgentID:  env.GetString("MUSEHUB_AGENT_ID", ""),

		ToolGroups: env.GetString("MUSEHUB_TOOL_GROUPS", "generation,library,styles,projects"),

		HTTPListen: env.GetString("MUSEHUB_HTTP_LISTEN", "0.0.0.0:8080"),
		MCPListen:  env.GetString("MUSEHUB_MCP_LISTEN", "0.0.0.0:8090"),

		RequestTimeout: env.GetDuration("MUSEHUB_REQUEST_TIMEOUT_SECONDS", 30, time.Second),
		MaxRetries:     env.GetInt("MUSEHUB_MAX_RETRIES", 2),

		LogLevel: env.GetString("LOG_LEVEL", "info"),
	}
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("MUSEHUB_BACKEND_URL is required")
	}
	if c.BackendPublicKey == "" {
		return fmt.Errorf("MUSEHUB_PUBLIC_KEY is required")
	}
	if c.BackendServiceKey == "" {
		return fmt.Errorf("MUSEHUB_SERVICE_KEY is required")
	}
	return nil
}

// Groups splits ToolGroups into individual group names.
func (c *Config) Groups() []string {
	parts := strings.Split(c.ToolGroups, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
