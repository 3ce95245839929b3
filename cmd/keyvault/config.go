package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fahmaliyi/keyvault/auth"
	"github.com/fahmaliyi/keyvault/vault"
	"github.com/pkg/errors"
)

// Config holds the keyvault settings.
// Priority: env vars > settings.json > defaults.
type Config struct {
	File              string   `json:"file"`
	LogLevel          string   `json:"log_level"`
	MinLength         int      `json:"min_length"`
	Symbols           string   `json:"symbols"`
	MaxAttempts       int      `json:"max_attempts"`
	AttemptIntervalMS int64    `json:"attempt_interval_ms"`
	Scheme            string   `json:"scheme"`
	RequiredSecrets   []string `json:"required_secrets"`
	ClipboardClearMS  int64    `json:"clipboard_clear_ms"`
}

func defaultConfig(dir string) Config {
	def := auth.DefaultConfig()
	return Config{
		File:              filepath.Join(dir, "keyvault.env"),
		LogLevel:          "warn",
		MinLength:         def.Policy.MinLength,
		Symbols:           def.Policy.Symbols,
		MaxAttempts:       def.MaxAttempts,
		AttemptIntervalMS: 1000,
		Scheme:            string(vault.SchemeFernet),
		RequiredSecrets:   def.RequiredSecrets,
		ClipboardClearMS:  30 * 1000,
	}
}

func settingsPath(dir string) string {
	return filepath.Join(dir, "settings.json")
}

func loadConfig(dir string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig(dir)

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath(dir)); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse %s", settingsPath(dir))
		}
	}

	// Layer 3: env vars override.
	if v := getenv("KEYVAULT_FILE"); v != "" {
		cfg.File = v
	}
	if v := getenv("KEYVAULT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("KEYVAULT_SYMBOLS"); v != "" {
		cfg.Symbols = v
	}
	if v := getenv("KEYVAULT_SCHEME"); v != "" {
		cfg.Scheme = v
	}
	if v := getenv("KEYVAULT_REQUIRED"); v != "" {
		cfg.RequiredSecrets = splitList(v)
	}
	for _, iv := range []struct {
		env string
		dst *int64
	}{
		{"KEYVAULT_ATTEMPT_INTERVAL_MS", &cfg.AttemptIntervalMS},
		{"KEYVAULT_CLIPBOARD_CLEAR_MS", &cfg.ClipboardClearMS},
	} {
		if v := getenv(iv.env); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return cfg, errors.Wrapf(err, "%s", iv.env)
			}
			*iv.dst = n
		}
	}
	if v := getenv("KEYVAULT_MIN_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, errors.Wrap(err, "KEYVAULT_MIN_LENGTH")
		}
		cfg.MinLength = n
	}
	if v := getenv("KEYVAULT_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, errors.Wrap(err, "KEYVAULT_MAX_ATTEMPTS")
		}
		cfg.MaxAttempts = n
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// authConfig converts the file settings into a session configuration.
func (c Config) authConfig() (auth.Config, error) {
	scheme, err := vault.ParseScheme(c.Scheme)
	if err != nil {
		return auth.Config{}, err
	}
	if c.MaxAttempts < 1 {
		return auth.Config{}, errors.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	for _, name := range c.RequiredSecrets {
		if err := vault.ValidateName(name); err != nil {
			return auth.Config{}, errors.Wrap(err, "required_secrets")
		}
	}
	return auth.Config{
		Policy:          auth.Policy{MinLength: c.MinLength, Symbols: c.Symbols},
		MaxAttempts:     c.MaxAttempts,
		AttemptInterval: time.Duration(c.AttemptIntervalMS) * time.Millisecond,
		Scheme:          scheme,
		RequiredSecrets: c.RequiredSecrets,
	}, nil
}

func (c Config) clipboardClear() time.Duration {
	return time.Duration(c.ClipboardClearMS) * time.Millisecond
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
