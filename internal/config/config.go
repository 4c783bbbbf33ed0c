// Package config provides agent configuration from command-line overrides,
// environment variables, and .env files.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the agent configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Data    DataConfig
	Server  ServerConfig
	Remote  RemoteConfig
	Session SessionConfig
	Reveal  RevealConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds local persistence configuration.
type DataConfig struct {
	// Dir is the base directory for the snapshot database.
	Dir string
	// StoreDriver selects the persistence backend: "badger" or "sqlite".
	StoreDriver string
}

// ServerConfig holds the localhost HTTP surface configuration.
type ServerConfig struct {
	// ListenAddr is the address the agent binds. Loopback by default; the
	// UI shell is the only intended client.
	ListenAddr   string
	ShellOrigin  string // CORS origin of the UI shell
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// RemoteConfig holds the authoritative rank endpoint configuration.
type RemoteConfig struct {
	// BaseURL of the ReadMark API, e.g. https://api.readmark.app
	BaseURL string
	// FetchRPS and FetchBurst pace outbound snapshot fetches per cache key.
	FetchRPS   float64
	FetchBurst int
	Timeout    time.Duration
}

// SessionConfig holds access-token verification configuration.
type SessionConfig struct {
	// TokenKeyHex is the PASETO v4 symmetric key shared with the API,
	// 32 bytes hex-encoded.
	TokenKeyHex string
}

// RevealConfig holds level-up reveal scheduling configuration.
type RevealConfig struct {
	// VisibleDelay is applied before revealing while the shell is visible.
	VisibleDelay time.Duration
	// HiddenDelay is the debounce applied after the shell becomes visible.
	HiddenDelay time.Duration
}

// Overrides carries command-line values that take precedence over
// environment variables. Empty fields fall through to the environment.
type Overrides struct {
	Environment string
	LogLevel    string
	DataDir     string
	StoreDriver string
	ListenAddr  string
	RemoteURL   string
	EnvFile     string
}

// Load builds configuration with precedence:
// 1. Command-line overrides (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// Load .env if present (silently ignore if not found).
	_ = loadEnvFile(envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(overrides.Environment, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(overrides.LogLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			Dir:         getConfigValue(overrides.DataDir, "DATA_DIR", ""),
			StoreDriver: getConfigValue(overrides.StoreDriver, "STORE_DRIVER", "badger"),
		},
		Server: ServerConfig{
			ListenAddr:  getConfigValue(overrides.ListenAddr, "LISTEN_ADDR", "127.0.0.1:7420"),
			ShellOrigin: getConfigValue("", "SHELL_ORIGIN", "app://readmark"),
		},
		Remote: RemoteConfig{
			BaseURL:    getConfigValue(overrides.RemoteURL, "REMOTE_BASE_URL", "https://api.readmark.app"),
			FetchRPS:   getFloatConfigValue("", "REMOTE_FETCH_RPS", 0.5),
			FetchBurst: getIntConfigValue("", "REMOTE_FETCH_BURST", 2),
		},
		Session: SessionConfig{
			TokenKeyHex: getConfigValue("", "SESSION_TOKEN_KEY", ""),
		},
	}

	// Parse durations.
	var err error
	if cfg.Server.ReadTimeout, err = getDurationConfigValue("SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = getDurationConfigValue("SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = getDurationConfigValue("SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.Remote.Timeout, err = getDurationConfigValue("REMOTE_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.Reveal.VisibleDelay, err = getDurationConfigValue("REVEAL_VISIBLE_DELAY", "300ms"); err != nil {
		return nil, err
	}
	if cfg.Reveal.HiddenDelay, err = getDurationConfigValue("REVEAL_HIDDEN_DELAY", "1s"); err != nil {
		return nil, err
	}

	if err := cfg.expandDataDir(); err != nil {
		return nil, fmt.Errorf("invalid data dir: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.StoreDriver != "badger" && c.Data.StoreDriver != "sqlite" {
		return fmt.Errorf("invalid store driver: %s (must be badger or sqlite)", c.Data.StoreDriver)
	}

	if c.Data.Dir == "" {
		return errors.New("data dir cannot be empty after expansion")
	}

	if c.Remote.FetchRPS <= 0 {
		return fmt.Errorf("remote fetch rate must be positive, got %v", c.Remote.FetchRPS)
	}

	return nil
}

// expandDataDir expands ~ and makes the path absolute.
// Defaults to ~/.readmark/agent.
func (c *Config) expandDataDir() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, ".readmark", "agent")

	expanded, err := expandPath(c.Data.Dir, defaultPath)
	if err != nil {
		return err
	}
	c.Data.Dir = expanded
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from override, env var, or default.
func getConfigValue(overrideValue, envKey, defaultValue string) string {
	if overrideValue != "" {
		return overrideValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from override, env var, or default.
func getIntConfigValue(overrideValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(overrideValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from override, env var, or default.
func getFloatConfigValue(overrideValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(overrideValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// getDurationConfigValue parses a duration from the environment or default.
func getDurationConfigValue(envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue("", envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		// Env vars take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
