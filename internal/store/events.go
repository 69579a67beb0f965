package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/graaaaa/roomcheck/internal/domain"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

// AppendEvent appends an attendance event and refreshes the guest's
// time_in/time_out mirrors in the same transaction.
// On success, sets e.ID to the inserted row's ID.
func (s *Store) AppendEvent(ctx context.Context, e *domain.Event) error {
	if err := validateEvent(e); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := appendEvent(ctx, tx, e)
		if err != nil {
			return err
		}
		if err := refreshMirrors(ctx, tx, e.GuestID); err != nil {
			return err
		}
		e.ID = id
		return nil
	})
}

func appendEvent(ctx context.Context, tx *sql.Tx, e *domain.Event) (int64, error) {
	const query = `
	INSERT INTO attendance_events (guest_id, room_id, type, ts, schema_version)
	VALUES (?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query,
		e.GuestID,
		e.RoomID,
		string(e.Type),
		formatTime(e.Ts),
		CurrentSchemaVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// refreshMirrors recomputes the guest's denormalized time_in/time_out
// columns from the ledger.
func refreshMirrors(ctx context.Context, tx *sql.Tx, guestID int64) error {
	const query = `
	UPDATE guests SET
		time_in = (
			SELECT ts FROM attendance_events
			WHERE guest_id = ?1 AND type = 'time_in'
			ORDER BY ts DESC, id DESC LIMIT 1
		),
		time_out = (
			SELECT ts FROM attendance_events
			WHERE guest_id = ?1 AND type = 'time_out'
			ORDER BY ts DESC, id DESC LIMIT 1
		)
	WHERE id = ?1
	`
	result, err := tx.ExecContext(ctx, query, guestID)
	if err != nil {
		return fmt.Errorf("refresh guest mirrors: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrGuestNotFound
	}
	return nil
}

// LatestEvent returns the guest's latest event in ledger order.
// Returns nil if the guest has no events.
func (s *Store) LatestEvent(ctx context.Context, guestID int64) (*domain.Event, error) {
	const query = `
	SELECT ` + eventColumns + `
	FROM attendance_events
	WHERE guest_id = ?
	ORDER BY ts DESC, id DESC
	LIMIT 1
	`
	e, err := scanEvent(s.db.QueryRowContext(ctx, query, guestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest event: %w", err)
	}
	return &e, nil
}

// LatestEventsByRoom resolves the latest event of every guest that has
// at least one event in the room, in a single set query.
func (s *Store) LatestEventsByRoom(ctx context.Context, roomID int64) ([]domain.Event, error) {
	return latestEvents(ctx, s.db, "WHERE room_id = ?", roomID)
}

// LatestEvents resolves the latest event of every guest that has any event.
func (s *Store) LatestEvents(ctx context.Context) ([]domain.Event, error) {
	return latestEvents(ctx, s.db, "")
}

func latestEvents(ctx context.Context, q querier, where string, args ...any) ([]domain.Event, error) {
	query := `
	SELECT ` + eventColumns + `
	FROM (
		SELECT ` + eventColumns + `,
			ROW_NUMBER() OVER (PARTITION BY guest_id ORDER BY ts DESC, id DESC) AS rn
		FROM attendance_events
		` + where + `
	)
	WHERE rn = 1
	ORDER BY guest_id
	`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query latest events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

// HasTimeOutSince reports whether the guest has a time-out event at or after since.
func (s *Store) HasTimeOutSince(ctx context.Context, guestID int64, since time.Time) (bool, error) {
	const query = `
	SELECT EXISTS (
		SELECT 1 FROM attendance_events
		WHERE guest_id = ? AND type = 'time_out' AND ts >= ?
	)
	`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, guestID, formatTime(since)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check recent time-out: %w", err)
	}
	return exists, nil
}

// EventFilter contains paging options for a guest's history.
type EventFilter struct {
	Limit  int
	Cursor *string
}

// EventPage is one page of a guest's history, newest first.
type EventPage struct {
	Items      []domain.Event `json:"items"`
	NextCursor *string        `json:"nextCursor,omitempty"`
}

// GuestEvents returns the guest's events newest first with cursor-based pagination.
func (s *Store) GuestEvents(ctx context.Context, guestID int64, f EventFilter) (EventPage, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	} else if limit > maxLimit {
		limit = maxLimit
	}

	var (
		sb   strings.Builder
		args []any
	)

	sb.WriteString(`SELECT ` + eventColumns + ` FROM attendance_events WHERE guest_id = ?`)
	args = append(args, guestID)

	// Cursor handling (composite cursor: ts|id), walking backwards in time
	if f.Cursor != nil && *f.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(*f.Cursor)
		if err != nil {
			return EventPage{}, fmt.Errorf("decode cursor: %w", err)
		}
		cursorTimeStr := formatTime(cursorTime)
		sb.WriteString(" AND (ts < ? OR (ts = ? AND id < ?))")
		args = append(args, cursorTimeStr, cursorTimeStr, cursorID)
	}

	sb.WriteString(" ORDER BY ts DESC, id DESC LIMIT ?")
	args = append(args, limit+1) // fetch one extra to detect next page

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return EventPage{}, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Event, 0, limit+1)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return EventPage{}, fmt.Errorf("scan event: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return EventPage{}, fmt.Errorf("rows error: %w", err)
	}

	var nextCursor *string
	if len(items) > limit {
		last := items[limit-1]
		items = items[:limit]
		c := EncodeCursor(last.Ts, last.ID)
		nextCursor = &c
	}

	return EventPage{Items: items, NextCursor: nextCursor}, nil
}

// CountEvents returns the total number of attendance events. Nothing in
// the server reads it; tests in other packages use it to assert how many
// events an operation wrote.
func (s *Store) CountEvents(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM attendance_events`

	var count int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}
