package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/graaaaa/roomcheck/internal/domain"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

func parseTime(col, v string) (time.Time, error) {
	t, err := time.Parse(TimeFormat, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s %q: %w", col, v, err)
	}
	return t, nil
}

func parseNullTime(col string, v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := parseTime(col, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const eventColumns = `id, guest_id, room_id, type, ts`

// eventRow is the internal type representing an attendance_events row.
type eventRow struct {
	ID      int64
	GuestID int64
	RoomID  int64
	Type    string
	Ts      string
}

func scanEvent(sc scanner) (domain.Event, error) {
	var r eventRow
	if err := sc.Scan(&r.ID, &r.GuestID, &r.RoomID, &r.Type, &r.Ts); err != nil {
		return domain.Event{}, err
	}
	ts, err := parseTime("ts", r.Ts)
	if err != nil {
		return domain.Event{}, err
	}
	return domain.Event{
		ID:      r.ID,
		GuestID: r.GuestID,
		RoomID:  r.RoomID,
		Type:    domain.EventType(r.Type),
		Ts:      ts,
	}, nil
}

// validateEvent checks that required fields are set.
func validateEvent(e *domain.Event) error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if e.GuestID == 0 {
		return fmt.Errorf("%w: guest_id is required", ErrInvalidEvent)
	}
	if e.RoomID == 0 {
		return fmt.Errorf("%w: room_id is required", ErrInvalidEvent)
	}
	if e.Ts.IsZero() {
		return fmt.Errorf("%w: ts is required", ErrInvalidEvent)
	}
	return nil
}

const guestColumns = `id, full_name, age, gender, room_id, time_in, time_out, created_at`

func scanGuest(sc scanner) (domain.Guest, error) {
	var (
		g         domain.Guest
		timeIn    sql.NullString
		timeOut   sql.NullString
		createdAt string
	)
	if err := sc.Scan(&g.ID, &g.FullName, &g.Age, &g.Gender, &g.RoomID, &timeIn, &timeOut, &createdAt); err != nil {
		return domain.Guest{}, err
	}
	var err error
	if g.TimeIn, err = parseNullTime("time_in", timeIn); err != nil {
		return domain.Guest{}, err
	}
	if g.TimeOut, err = parseNullTime("time_out", timeOut); err != nil {
		return domain.Guest{}, err
	}
	if g.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return domain.Guest{}, err
	}
	return g, nil
}

const roomColumns = `id, title, description, code, created_at, updated_at`

func scanRoom(sc scanner) (domain.Room, error) {
	var (
		r                    domain.Room
		createdAt, updatedAt string
	)
	if err := sc.Scan(&r.ID, &r.Title, &r.Description, &r.Code, &createdAt, &updatedAt); err != nil {
		return domain.Room{}, err
	}
	var err error
	if r.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return domain.Room{}, err
	}
	if r.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return domain.Room{}, err
	}
	return r, nil
}
