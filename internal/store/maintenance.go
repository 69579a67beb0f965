package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/graaaaa/roomcheck/internal/lib/logger/sl"
)

const (
	// VacuumInterval is the minimum interval between VACUUM operations.
	VacuumInterval = 30 * 24 * time.Hour

	// ScanFailureRetention is how long unrecognized scanner lines are kept.
	ScanFailureRetention = 14 * 24 * time.Hour
)

const metadataKeyLastVacuum = "last_vacuum_at"

// MaintenanceResult reports what a maintenance pass did.
type MaintenanceResult struct {
	FailuresPruned int64
	Vacuumed       bool
}

// Maintain prunes old scan failures and then runs VACUUM when the last one
// is older than VacuumInterval. The attendance ledger is never touched.
func (s *Store) Maintain(ctx context.Context) (MaintenanceResult, error) {
	var res MaintenanceResult

	pruned, err := s.pruneScanFailures(ctx, s.now().Add(-ScanFailureRetention))
	if err != nil {
		return res, err
	}
	res.FailuresPruned = pruned

	lastVacuum, err := s.lastVacuumTime(ctx)
	if err != nil {
		return res, err
	}
	if s.now().Sub(lastVacuum) < VacuumInterval {
		return res, nil
	}

	s.logger.Info("running VACUUM", "last_run", lastVacuum)
	start := time.Now()
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return res, fmt.Errorf("vacuum: %w", err)
	}
	res.Vacuumed = true
	s.logger.Info("VACUUM completed", "elapsed", time.Since(start))

	if err := s.setLastVacuumTime(ctx, s.now()); err != nil {
		s.logger.Warn("failed to update last_vacuum_at", sl.Err(err))
	}
	return res, nil
}

func (s *Store) pruneScanFailures(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM scan_failures WHERE ts < ?`, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune scan failures: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned scan failures", "count", n)
	}
	return n, nil
}

// lastVacuumTime returns the zero time when no VACUUM has been recorded or
// the stored value is unreadable, so the next pass runs one.
func (s *Store) lastVacuumTime(ctx context.Context) (time.Time, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM metadata WHERE key = ?`,
		metadataKeyLastVacuum,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read last vacuum: %w", err)
	}

	t, err := time.Parse(TimeFormat, value)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

func (s *Store) setLastVacuumTime(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metadataKeyLastVacuum,
		formatTime(t),
	)
	return err
}
