package app

import (
	"context"

	"github.com/graaaaa/roomcheck/internal/domain"
)

// ResultBuffer hands out the most recent hardware scan result once.
type ResultBuffer interface {
	Take() (domain.ScanResult, bool)
}

// ScanResultsUsecase exposes the buffered hardware scan result.
type ScanResultsUsecase interface {
	// Last returns and clears the pending result. ok is false when none is pending.
	Last(ctx context.Context) (r domain.ScanResult, ok bool)
}

// ScanResultService implements ScanResultsUsecase.
type ScanResultService struct {
	Buffer ResultBuffer
}

// Last consumes the pending scan result.
func (s ScanResultService) Last(ctx context.Context) (domain.ScanResult, bool) {
	if s.Buffer == nil {
		return domain.ScanResult{}, false
	}
	return s.Buffer.Take()
}
