package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/graaaaa/roomcheck/internal/config"
)

// ConfigUsecase defines the configuration management use case.
type ConfigUsecase interface {
	// GetConfig returns the current configuration.
	GetConfig(ctx context.Context) ConfigResponse

	// UpdateConfig updates the configuration with the given changes.
	// Returns the result indicating success and whether restart is required.
	UpdateConfig(ctx context.Context, req ConfigUpdateRequest) (ConfigUpdateResponse, error)
}

// ConfigResponse represents the current configuration (excludes secret values).
type ConfigResponse struct {
	Port           int      `json:"port"`
	LanEnabled     bool     `json:"lan_enabled"`
	SerialEnabled  bool     `json:"serial_enabled"`
	SerialPort     string   `json:"serial_port"`
	SerialBaud     int      `json:"serial_baud"`
	LogLevel       string   `json:"log_level"`
	AllowedOrigins []string `json:"allowed_origins"`
	TokenTTLHours  int      `json:"token_ttl_hours"`
}

// ConfigUpdateRequest contains optional fields for updating configuration.
type ConfigUpdateRequest struct {
	Port           *int      `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	LanEnabled     *bool     `json:"lan_enabled,omitempty"`
	SerialEnabled  *bool     `json:"serial_enabled,omitempty"`
	SerialPort     *string   `json:"serial_port,omitempty" validate:"omitempty,max=256"`
	SerialBaud     *int      `json:"serial_baud,omitempty" validate:"omitempty,min=1200,max=4000000"`
	LogLevel       *string   `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	AllowedOrigins *[]string `json:"allowed_origins,omitempty" validate:"omitempty,dive,url"`
	TokenTTLHours  *int      `json:"token_ttl_hours,omitempty" validate:"omitempty,min=1,max=720"`
}

// ConfigUpdateResponse indicates the result of a configuration update.
type ConfigUpdateResponse struct {
	Success         bool `json:"success"`
	RestartRequired bool `json:"restart_required"`
	NewPort         int  `json:"new_port,omitempty"`
}

// ConfigService implements ConfigUsecase.
type ConfigService struct {
	ConfigPath string

	validator *validator.Validate
}

// NewConfigService creates a ConfigService backed by the file at path.
func NewConfigService(path string) *ConfigService {
	return &ConfigService{ConfigPath: path, validator: newValidator()}
}

// GetConfig returns the current configuration.
func (s *ConfigService) GetConfig(ctx context.Context) ConfigResponse {
	cfg, _ := config.LoadConfigFrom(s.ConfigPath)

	return ConfigResponse{
		Port:           cfg.Port,
		LanEnabled:     cfg.LanEnabled,
		SerialEnabled:  cfg.SerialEnabled,
		SerialPort:     cfg.SerialPort,
		SerialBaud:     cfg.SerialBaud,
		LogLevel:       cfg.LogLevel,
		AllowedOrigins: cfg.AllowedOrigins,
		TokenTTLHours:  cfg.TokenTTLHours,
	}
}

// UpdateConfig updates the configuration. Every change takes effect on restart.
func (s *ConfigService) UpdateConfig(ctx context.Context, req ConfigUpdateRequest) (ConfigUpdateResponse, error) {
	if s.validator == nil {
		s.validator = newValidator()
	}
	if req.LogLevel != nil {
		lvl := strings.ToLower(strings.TrimSpace(*req.LogLevel))
		req.LogLevel = &lvl
	}
	if err := validateStruct(s.validator, req); err != nil {
		return ConfigUpdateResponse{}, err
	}

	cfg, err := config.LoadConfigFrom(s.ConfigPath)
	if err != nil {
		return ConfigUpdateResponse{}, fmt.Errorf("load config: %w", err)
	}

	originalPort := cfg.Port
	changed := false

	if req.Port != nil {
		cfg.Port = *req.Port
		changed = true
	}
	if req.LanEnabled != nil {
		cfg.LanEnabled = *req.LanEnabled
		changed = true
	}
	if req.SerialEnabled != nil {
		cfg.SerialEnabled = *req.SerialEnabled
		changed = true
	}
	if req.SerialPort != nil {
		cfg.SerialPort = strings.TrimSpace(*req.SerialPort)
		changed = true
	}
	if req.SerialBaud != nil {
		cfg.SerialBaud = *req.SerialBaud
		changed = true
	}
	if req.LogLevel != nil {
		cfg.LogLevel = *req.LogLevel
		changed = true
	}
	if req.AllowedOrigins != nil {
		cfg.AllowedOrigins = append([]string(nil), (*req.AllowedOrigins)...)
		changed = true
	}
	if req.TokenTTLHours != nil {
		cfg.TokenTTLHours = *req.TokenTTLHours
		changed = true
	}

	if changed {
		if err := config.SaveConfigTo(cfg, s.ConfigPath); err != nil {
			return ConfigUpdateResponse{}, fmt.Errorf("save config: %w", err)
		}
	}

	resp := ConfigUpdateResponse{
		Success:         true,
		RestartRequired: changed,
	}
	if cfg.Port != originalPort {
		resp.NewPort = cfg.Port
	}
	return resp, nil
}
