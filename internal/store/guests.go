package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/graaaaa/roomcheck/internal/domain"
)

// CreateGuest inserts a guest with no events. Sets g.ID and g.CreatedAt.
func (s *Store) CreateGuest(ctx context.Context, g *domain.Guest) error {
	const query = `
	INSERT INTO guests (full_name, age, gender, room_id, created_at)
	VALUES (?, ?, ?, ?, ?)
	`
	now := s.now().UTC()
	result, err := s.db.ExecContext(ctx, query, g.FullName, g.Age, g.Gender, g.RoomID, formatTime(now))
	if err != nil {
		return fmt.Errorf("insert guest: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	g.ID = id
	g.CreatedAt = now
	g.TimeIn = nil
	g.TimeOut = nil
	return nil
}

// GetGuest returns the guest with the given ID.
func (s *Store) GetGuest(ctx context.Context, id int64) (domain.Guest, error) {
	const query = `SELECT ` + guestColumns + ` FROM guests WHERE id = ?`

	g, err := scanGuest(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Guest{}, domain.ErrGuestNotFound
	}
	if err != nil {
		return domain.Guest{}, fmt.Errorf("get guest: %w", err)
	}
	return g, nil
}

// ListGuests returns all guests, highest ID first.
func (s *Store) ListGuests(ctx context.Context) ([]domain.Guest, error) {
	const query = `SELECT ` + guestColumns + ` FROM guests ORDER BY id DESC`
	return s.queryGuests(ctx, query)
}

// ListGuestsByRoom returns the room's guests, newest registration first.
func (s *Store) ListGuestsByRoom(ctx context.Context, roomID int64) ([]domain.Guest, error) {
	const query = `SELECT ` + guestColumns + ` FROM guests WHERE room_id = ? ORDER BY created_at DESC, id DESC`
	return s.queryGuests(ctx, query, roomID)
}

func (s *Store) queryGuests(ctx context.Context, query string, args ...any) ([]domain.Guest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query guests: %w", err)
	}
	defer rows.Close()

	guests := []domain.Guest{}
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan guest: %w", err)
		}
		guests = append(guests, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return guests, nil
}

// DeleteGuest deletes a guest together with its events.
func (s *Store) DeleteGuest(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM guests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete guest: %w", err)
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
