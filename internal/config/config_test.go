package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoadConfigFrom_NotExist(t *testing.T) {
	cfg, err := LoadConfigFrom("/nonexistent/path/config.json")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.Port != defaults.Port {
		t.Errorf("expected port %d, got %d", defaults.Port, cfg.Port)
	}
	if cfg.SerialBaud != 115200 {
		t.Errorf("expected baud 115200, got %d", cfg.SerialBaud)
	}
}

func TestLoadConfigFrom_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("not valid json{{{"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if cfg.Port != DefaultConfig().Port {
		t.Errorf("expected default port, got %d", cfg.Port)
	}
}

func TestLoadConfigFrom_InvalidVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"schema_version": 999, "port": 9999}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if cfg.Port != DefaultConfig().Port {
		t.Errorf("expected default port, got %d", cfg.Port)
	}
}

func TestSaveLoadConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	original := Config{
		SchemaVersion:  CurrentSchemaVersion,
		Port:           9000,
		LanEnabled:     true,
		SerialEnabled:  false,
		SerialPort:     "COM5",
		SerialBaud:     9600,
		LogLevel:       "debug",
		AllowedOrigins: []string{"http://kiosk.local"},
		TokenTTLHours:  8,
	}

	if err := SaveConfigTo(original, path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if !reflect.DeepEqual(loaded, original) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, original)
	}
}

func TestLoadConfigFrom_Normalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := fmt.Sprintf(`{"schema_version": %d, "port": 70000, "serial_baud": -1, "log_level": "loud", "token_ttl_hours": 0}`, CurrentSchemaVersion)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.Port != defaults.Port {
		t.Errorf("port = %d, want default", cfg.Port)
	}
	if cfg.SerialBaud != defaults.SerialBaud {
		t.Errorf("baud = %d, want default", cfg.SerialBaud)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.LogLevel)
	}
	if cfg.TokenTTLHours != defaults.TokenTTLHours {
		t.Errorf("ttl = %d, want default", cfg.TokenTTLHours)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, defaults.AllowedOrigins) {
		t.Errorf("origins = %v, want defaults", cfg.AllowedOrigins)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvPort, "4000")
	t.Setenv(EnvLanEnabled, "yes")
	t.Setenv(EnvSerialEnabled, "off")
	t.Setenv(EnvSerialPort, "/dev/ttyACM1")
	t.Setenv(EnvSerialBaud, "57600")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvAllowedOrigins, "http://a.test, ,http://b.test")
	t.Setenv(EnvTokenTTLHours, "2")

	cfg := ApplyEnvOverrides(DefaultConfig())

	if cfg.Port != 4000 {
		t.Errorf("port = %d", cfg.Port)
	}
	if !cfg.LanEnabled {
		t.Error("lan should be enabled")
	}
	if cfg.SerialEnabled {
		t.Error("serial should be disabled")
	}
	if cfg.SerialPort != "/dev/ttyACM1" || cfg.SerialBaud != 57600 {
		t.Errorf("serial = %s@%d", cfg.SerialPort, cfg.SerialBaud)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
	if want := []string{"http://a.test", "http://b.test"}; !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Errorf("origins = %v, want %v", cfg.AllowedOrigins, want)
	}
	if cfg.TokenTTLHours != 2 {
		t.Errorf("ttl = %d", cfg.TokenTTLHours)
	}
}

func TestApplyEnvOverrides_InvalidValuesIgnored(t *testing.T) {
	t.Setenv(EnvPort, "99999")
	t.Setenv(EnvSerialBaud, "fast")
	t.Setenv(EnvLogLevel, "verbose")
	t.Setenv(EnvTokenTTLHours, "-3")

	cfg := ApplyEnvOverrides(DefaultConfig())
	defaults := DefaultConfig()

	if cfg.Port != defaults.Port || cfg.SerialBaud != defaults.SerialBaud ||
		cfg.LogLevel != defaults.LogLevel || cfg.TokenTTLHours != defaults.TokenTTLHours {
		t.Errorf("invalid env values leaked into config: %+v", cfg)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{" Info ", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"ERROR", slog.LevelError, true},
		{"trace", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLogLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLogLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "TRUE", "1", "yes", "on", " On "} {
		if !parseBool(v) {
			t.Errorf("parseBool(%q) should be true", v)
		}
	}
	for _, v := range []string{"false", "0", "no", "off", "", "anything"} {
		if parseBool(v) {
			t.Errorf("parseBool(%q) should be false", v)
		}
	}
}

func TestSecret_StringMasking(t *testing.T) {
	s := Secret("hunter2")

	if s.String() != "[REDACTED]" {
		t.Errorf("String() = %q", s.String())
	}
	if out := fmt.Sprintf("%v %s %#v", s, s, s); strings.Contains(out, "hunter2") {
		t.Errorf("secret leaked through fmt: %q", out)
	}
	if s.Value() != "hunter2" {
		t.Errorf("Value() = %q", s.Value())
	}
}

func TestSaveLoadSecrets_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")

	original := Secrets{SchemaVersion: CurrentSchemaVersion, JWTSecret: Secret("abc123")}
	if err := SaveSecretsTo(original, path); err != nil {
		t.Fatalf("failed to save secrets: %v", err)
	}

	loaded, status, err := LoadSecretsFrom(path)
	if err != nil {
		t.Fatalf("failed to load secrets: %v", err)
	}
	if status != SecretsLoaded {
		t.Errorf("expected status SecretsLoaded, got %v", status)
	}
	if loaded.JWTSecret.Value() != "abc123" {
		t.Errorf("jwt_secret mismatch")
	}
}

func TestLoadSecretsFrom_Status(t *testing.T) {
	dir := t.TempDir()

	_, status, err := LoadSecretsFrom(filepath.Join(dir, "missing.json"))
	if err != nil || status != SecretsMissing {
		t.Errorf("missing file: status=%v err=%v", status, err)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{"), 0600); err != nil {
		t.Fatal(err)
	}
	_, status, err = LoadSecretsFrom(corrupt)
	if err == nil || status != SecretsFallback {
		t.Errorf("corrupt file: status=%v err=%v", status, err)
	}
}

func TestEnsureJWTSecret(t *testing.T) {
	var s Secrets
	updated, err := EnsureJWTSecret(&s)
	if err != nil {
		t.Fatalf("EnsureJWTSecret: %v", err)
	}
	if !updated || len(s.JWTSecret.Value()) != 64 {
		t.Errorf("updated=%v secret length=%d", updated, len(s.JWTSecret.Value()))
	}

	before := s.JWTSecret
	updated, err = EnsureJWTSecret(&s)
	if err != nil || updated || s.JWTSecret != before {
		t.Error("existing secret must be kept")
	}
}

func TestGeneratePassword(t *testing.T) {
	pw, err := GeneratePassword(PasswordLength)
	if err != nil {
		t.Fatalf("GeneratePassword: %v", err)
	}
	if len(pw) != PasswordLength {
		t.Errorf("len = %d", len(pw))
	}
	for _, c := range pw {
		if !strings.ContainsRune(passwordCharset, c) {
			t.Errorf("unexpected rune %q", c)
		}
	}
	if _, err := GeneratePassword(0); err == nil {
		t.Error("expected error for zero length")
	}
}

func TestWritePasswordFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	path, err := WritePasswordFile(dir, "admin", "pw123")
	if err != nil {
		t.Fatalf("WritePasswordFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Username: admin") || !strings.Contains(string(data), "Password: pw123") {
		t.Errorf("unexpected content: %q", data)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 && os.PathSeparator == '/' {
		t.Errorf("perm = %o, want 0600", perm)
	}
}

func TestWriteJSONAtomic_ModesAndNoTempLeft(t *testing.T) {
	if os.PathSeparator != '/' {
		t.Skip("POSIX permissions only")
	}
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	secPath := filepath.Join(dir, "secrets.json")

	if err := SaveConfigTo(DefaultConfig(), cfgPath); err != nil {
		t.Fatalf("SaveConfigTo: %v", err)
	}
	// A second save replaces the existing file.
	if err := SaveConfigTo(DefaultConfig(), cfgPath); err != nil {
		t.Fatalf("SaveConfigTo again: %v", err)
	}
	if err := SaveSecretsTo(DefaultSecrets(), secPath); err != nil {
		t.Fatalf("SaveSecretsTo: %v", err)
	}

	for path, want := range map[string]os.FileMode{cfgPath: 0644, secPath: 0600} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != want {
			t.Errorf("%s perm = %o, want %o", filepath.Base(path), perm, want)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("unexpected files: %v", names)
	}
}
