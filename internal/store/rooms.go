package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/graaaaa/roomcheck/internal/domain"
)

// CreateRoom inserts a room. Sets r.ID, r.CreatedAt and r.UpdatedAt.
// Returns domain.ErrDuplicateRoomCode if the code is taken.
func (s *Store) CreateRoom(ctx context.Context, r *domain.Room) error {
	const query = `
	INSERT INTO rooms (title, description, code, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	`
	now := s.now().UTC()
	result, err := s.db.ExecContext(ctx, query, r.Title, r.Description, r.Code, formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateRoomCode
		}
		return fmt.Errorf("insert room: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

// GetRoom returns the room with the given ID.
func (s *Store) GetRoom(ctx context.Context, id int64) (domain.Room, error) {
	return getRoom(ctx, s.db, roomByIDQuery, id)
}

// GetRoomByCode returns the room with the given code.
func (s *Store) GetRoomByCode(ctx context.Context, code string) (domain.Room, error) {
	const query = `SELECT ` + roomColumns + ` FROM rooms WHERE code = ?`
	return getRoom(ctx, s.db, query, code)
}

const roomByIDQuery = `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`

func getRoom(ctx context.Context, q querier, query string, arg any) (domain.Room, error) {
	r, err := scanRoom(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("get room: %w", err)
	}
	return r, nil
}

// ListRooms returns all rooms, newest first.
func (s *Store) ListRooms(ctx context.Context) ([]domain.Room, error) {
	const query = `SELECT ` + roomColumns + ` FROM rooms ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	rooms := []domain.Room{}
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return rooms, nil
}

// DeleteRoom deletes a room. Its guests and their events are removed by
// ON DELETE CASCADE.
func (s *Store) DeleteRoom(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}
