package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/graaaaa/roomcheck/internal/domain"
)

// RoomSnapshot is a room together with its guest count and the latest event
// of each guest that has one, all read from the same database state.
type RoomSnapshot struct {
	Room   domain.Room
	Guests int
	Latest []domain.Event
}

// RoomSnapshot reads the room, its guest count and its latest events inside
// one transaction. Returns domain.ErrRoomNotFound if the room does not exist.
func (s *Store) RoomSnapshot(ctx context.Context, roomID int64) (RoomSnapshot, error) {
	var snap RoomSnapshot
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		room, err := getRoom(ctx, tx, roomByIDQuery, roomID)
		if err != nil {
			return err
		}
		guests, err := countGuestsInRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}
		latest, err := latestEvents(ctx, tx, "WHERE room_id = ?", roomID)
		if err != nil {
			return err
		}
		snap = RoomSnapshot{Room: room, Guests: guests, Latest: latest}
		return nil
	})
	if err != nil {
		return RoomSnapshot{}, err
	}
	return snap, nil
}

// countGuestsInRoom counts registered guests, whether or not they have events.
func countGuestsInRoom(ctx context.Context, q querier, roomID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM guests WHERE room_id = ?`

	var n int
	if err := q.QueryRowContext(ctx, query, roomID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count guests: %w", err)
	}
	return n, nil
}
