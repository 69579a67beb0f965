// Package app provides application use cases.
package app

import (
	"context"
	"log/slog"

	"github.com/graaaaa/roomcheck/internal/lib/logger/sl"
)

// Health status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// HealthUsecase defines the health check use case.
type HealthUsecase interface {
	Handle(ctx context.Context) (HealthResult, error)
}

// HealthResult represents the health check response.
type HealthResult struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Pinger checks that a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService implements HealthUsecase.
type HealthService struct {
	Version string
	DB      Pinger
}

// Handle returns the current health status. A failed database ping
// reports "degraded" rather than an error.
func (s HealthService) Handle(ctx context.Context) (HealthResult, error) {
	status := StatusOK
	if s.DB != nil {
		if err := s.DB.Ping(ctx); err != nil {
			slog.Warn("health check: database unreachable", sl.Err(err))
			status = StatusDegraded
		}
	}
	return HealthResult{
		Status:  status,
		Version: s.Version,
	}, nil
}
