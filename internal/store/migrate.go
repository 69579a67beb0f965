package store

import (
	"context"
	"fmt"
)

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// migrate runs database migrations.
func (s *Store) migrate(ctx context.Context) error {
	steps := []struct {
		name   string
		schema string
	}{
		{"rooms", roomsSchema},
		{"guests", guestsSchema},
		{"attendance_events", eventsSchema},
		{"admins", adminsSchema},
		{"scan_failures", scanFailuresSchema},
		{"metadata", metadataSchema},
	}
	for _, step := range steps {
		if _, err := s.db.ExecContext(ctx, step.schema); err != nil {
			return fmt.Errorf("create %s table: %w", step.name, err)
		}
	}
	return nil
}

const roomsSchema = `
CREATE TABLE IF NOT EXISTS rooms (
	id          INTEGER PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL,
	code        TEXT NOT NULL UNIQUE,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
`

const guestsSchema = `
CREATE TABLE IF NOT EXISTS guests (
	id         INTEGER PRIMARY KEY,
	full_name  TEXT NOT NULL,
	age        INTEGER NOT NULL,
	gender     TEXT NOT NULL,
	room_id    INTEGER NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	time_in    TEXT,
	time_out   TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_guests_room ON guests(room_id);
`

// AUTOINCREMENT keeps event ids monotonic; they break timestamp ties.
const eventsSchema = `
CREATE TABLE IF NOT EXISTS attendance_events (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	guest_id       INTEGER NOT NULL REFERENCES guests(id) ON DELETE CASCADE,
	room_id        INTEGER NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	type           TEXT NOT NULL CHECK (type IN ('time_in', 'time_out')),
	ts             TEXT NOT NULL,
	schema_version INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_guest_ts_id ON attendance_events(guest_id, ts, id);
CREATE INDEX IF NOT EXISTS idx_events_guest_type_ts ON attendance_events(guest_id, type, ts);
CREATE INDEX IF NOT EXISTS idx_events_room_guest ON attendance_events(room_id, guest_id, ts, id);
`

const adminsSchema = `
CREATE TABLE IF NOT EXISTS admins (
	id            INTEGER PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash BLOB NOT NULL,
	created_at    TEXT NOT NULL
);
`

const scanFailuresSchema = `
CREATE TABLE IF NOT EXISTS scan_failures (
	id         INTEGER PRIMARY KEY,
	ts         TEXT NOT NULL,
	raw_line   TEXT NOT NULL,
	error_msg  TEXT NOT NULL,
	dedupe_key TEXT NOT NULL UNIQUE
);
`

const metadataSchema = `
CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
