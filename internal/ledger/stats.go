package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/graaaaa/roomcheck/internal/derive"
	"github.com/graaaaa/roomcheck/internal/domain"
)

// RoomStats counts the room's registered guests and how many of them were
// last seen timing in or out. Guests without events count toward neither.
// All three counts come from one snapshot of the store.
func (e *Engine) RoomStats(ctx context.Context, roomID int64) (domain.RoomStats, error) {
	snap, err := e.store.RoomSnapshot(ctx, roomID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.RoomStats{}, err
	}
	if err != nil {
		return domain.RoomStats{}, fmt.Errorf("room stats: %w", err)
	}

	in, out := derive.Tally(snap.Latest)
	return domain.RoomStats{
		TotalGuests:  snap.Guests,
		TimeInCount:  in,
		TimeOutCount: out,
	}, nil
}
