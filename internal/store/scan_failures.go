package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// InsertScanFailure records a scanner line that could not be used.
// Returns true if the failure was inserted, false if it was a duplicate.
// Uses ON CONFLICT(dedupe_key) DO NOTHING for deduplication.
func (s *Store) InsertScanFailure(ctx context.Context, rawLine, errorMsg string) (inserted bool, err error) {
	if rawLine == "" {
		return false, fmt.Errorf("raw_line is required")
	}

	const query = `
	INSERT INTO scan_failures (ts, raw_line, error_msg, dedupe_key)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(dedupe_key) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query, formatTime(s.now()), rawLine, errorMsg, sha256Hex(rawLine))
	if err != nil {
		return false, fmt.Errorf("insert scan failure: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// CountScanFailures returns the number of recorded scan failures.
func (s *Store) CountScanFailures(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scan_failures`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count scan failures: %w", err)
	}
	return n, nil
}

// sha256Hex returns the SHA256 hash of the input string as a hex string.
func sha256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
