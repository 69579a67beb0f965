package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// CurrentSchemaVersion is the current config schema version.
const CurrentSchemaVersion = 1

// Environment variable names for config overrides.
// Priority: Environment > Config File > Default
const (
	EnvPort           = "ROOMCHECK_PORT"
	EnvLanEnabled     = "ROOMCHECK_LAN_ENABLED"
	EnvSerialEnabled  = "ROOMCHECK_SERIAL_ENABLED"
	EnvSerialPort     = "ROOMCHECK_SERIAL_PORT"
	EnvSerialBaud     = "ROOMCHECK_SERIAL_BAUD"
	EnvLogLevel       = "ROOMCHECK_LOG_LEVEL"
	EnvAllowedOrigins = "ROOMCHECK_ALLOWED_ORIGINS"
	EnvTokenTTLHours  = "ROOMCHECK_TOKEN_TTL_HOURS"
)

// Config holds non-sensitive application configuration.
type Config struct {
	SchemaVersion  int      `json:"schema_version"`
	Port           int      `json:"port"`
	LanEnabled     bool     `json:"lan_enabled"`
	SerialEnabled  bool     `json:"serial_enabled"`
	SerialPort     string   `json:"serial_port"` // empty = auto-detect
	SerialBaud     int      `json:"serial_baud"`
	LogLevel       string   `json:"log_level"`
	AllowedOrigins []string `json:"allowed_origins"`
	TokenTTLHours  int      `json:"token_ttl_hours"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SchemaVersion:  CurrentSchemaVersion,
		Port:           3000,
		LanEnabled:     false,
		SerialEnabled:  true,
		SerialPort:     "",
		SerialBaud:     115200,
		LogLevel:       "info",
		AllowedOrigins: []string{"http://localhost:5173"},
		TokenTTLHours:  24,
	}
}

// LoadConfig reads config from disk. If the file doesn't exist or is corrupt,
// it returns DefaultConfig with a warning logged (non-fatal).
func LoadConfig() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}

	return LoadConfigFrom(path)
}

// LoadConfigFrom reads config from the specified path.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		slog.Warn("failed to read config file, using defaults", "path", path, "error", err)
		return cfg, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cfg); err != nil {
		slog.Warn("config file is corrupt, using defaults", "path", path, "error", err)
		return DefaultConfig(), nil
	}

	if cfg.SchemaVersion != CurrentSchemaVersion {
		slog.Warn("config schema version mismatch, using defaults",
			"got", cfg.SchemaVersion,
			"expected", CurrentSchemaVersion,
		)
		return DefaultConfig(), nil
	}

	return normalizeConfig(cfg), nil
}

// normalizeConfig validates and normalizes config values.
func normalizeConfig(cfg Config) Config {
	defaults := DefaultConfig()

	cfg.SchemaVersion = CurrentSchemaVersion

	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = defaults.Port
	}
	if cfg.SerialBaud <= 0 {
		cfg.SerialBaud = defaults.SerialBaud
	}
	if _, ok := ParseLogLevel(cfg.LogLevel); !ok {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.TokenTTLHours <= 0 {
		cfg.TokenTTLHours = defaults.TokenTTLHours
	}
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = defaults.AllowedOrigins
	}

	return cfg
}

// SaveConfig writes config to disk atomically.
func SaveConfig(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	return SaveConfigTo(cfg, path)
}

// SaveConfigTo writes config to the specified path atomically.
func SaveConfigTo(cfg Config, path string) error {
	cfg.SchemaVersion = CurrentSchemaVersion

	return writeJSONAtomic(path, cfg, configFileMode)
}

// ApplyEnvOverrides applies environment variable overrides to the config.
// Environment variables take highest priority over config file values.
func ApplyEnvOverrides(cfg Config) Config {
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port <= 65535 {
			cfg.Port = port
		}
	}

	if v := os.Getenv(EnvLanEnabled); v != "" {
		cfg.LanEnabled = parseBool(v)
	}

	if v := os.Getenv(EnvSerialEnabled); v != "" {
		cfg.SerialEnabled = parseBool(v)
	}

	if v := os.Getenv(EnvSerialPort); v != "" {
		cfg.SerialPort = v
	}

	if v := os.Getenv(EnvSerialBaud); v != "" {
		if baud, err := strconv.Atoi(v); err == nil && baud > 0 {
			cfg.SerialBaud = baud
		}
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		if _, ok := ParseLogLevel(v); ok {
			cfg.LogLevel = strings.ToLower(strings.TrimSpace(v))
		}
	}

	// Comma-separated list
	if v := os.Getenv(EnvAllowedOrigins); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.AllowedOrigins = origins
	}

	if v := os.Getenv(EnvTokenTTLHours); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			cfg.TokenTTLHours = h
		}
	}

	return cfg
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// parseBool parses a boolean from various string representations.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
// All other values are treated as false.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
