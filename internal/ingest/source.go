// Package ingest reads lines from a serial QR scanner, turns QR_SCAN lines
// into ledger time-ins and buffers the latest outcome for pollers.
package ingest

import (
	"context"
	"time"
)

// LineSource abstracts scanner line production for testing.
// Implementations should close both channels when ctx is cancelled or on fatal error.
type LineSource interface {
	// Start begins producing lines. Returns channels that close on ctx.Done().
	// The error channel may receive multiple non-fatal errors during operation.
	Start(ctx context.Context) (<-chan string, <-chan error, error)
}

// Clock provides time for deterministic testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// DefaultClock is the wall clock.
var DefaultClock Clock = realClock{}
