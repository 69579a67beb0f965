package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/graaaaa/roomcheck/internal/domain"
	"github.com/graaaaa/roomcheck/internal/lib/logger/sl"
)

// BulkResult reports a time-out-all pass.
//
// Count is the number of guests that needed a time-out, including any
// skipped because a recent time-out already existed. Written is the number
// of events actually appended.
type BulkResult struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Written int    `json:"-"`
	Message string `json:"message"`
}

// TimeOutAll appends one time-out, with a shared timestamp, for every guest
// in the room whose latest event is a time-in. Guests that already have a
// time-out inside the dedup window are skipped. A failure for one guest is
// logged and does not stop the others; only a failure to enumerate the
// room's guests fails the call.
func (e *Engine) TimeOutAll(ctx context.Context, roomID int64) (BulkResult, error) {
	if _, err := e.store.GetRoom(ctx, roomID); err != nil {
		return BulkResult{}, err
	}

	latest, err := e.store.LatestEventsByRoom(ctx, roomID)
	if err != nil {
		return BulkResult{}, fmt.Errorf("time out all: %w", err)
	}
	if len(latest) == 0 {
		return BulkResult{Success: true, Message: "No guests found in this room"}, nil
	}

	var needTimeout []int64
	for _, ev := range latest {
		if ev.Type == domain.TypeTimeIn {
			needTimeout = append(needTimeout, ev.GuestID)
		}
	}
	if len(needTimeout) == 0 {
		return BulkResult{Success: true, Message: "No guests currently need to be timed out"}, nil
	}

	now := e.clock.Now().UTC()
	since := now.Add(-e.dedupWindow)
	log := e.logger.With("room_id", roomID)

	written := 0
	for _, guestID := range needTimeout {
		ok, err := e.timeOutIfNoRecent(ctx, guestID, roomID, now, since)
		if err != nil {
			log.Warn("time out all: guest skipped", "guest_id", guestID, sl.Err(err))
			continue
		}
		if ok {
			written++
		}
	}

	e.metrics.BulkTimeoutsWritten(written)
	log.Info("time out all finished",
		"needed", len(needTimeout),
		"written", written,
	)

	return BulkResult{
		Success: true,
		Count:   len(needTimeout),
		Written: written,
		Message: fmt.Sprintf("Successfully timed out %d guests", len(needTimeout)),
	}, nil
}

// timeOutIfNoRecent runs the dedup check and the append under the guest's lock.
// The batch timestamp is kept unless it would sort before the guest's latest
// event, in which case the latest timestamp is used.
func (e *Engine) timeOutIfNoRecent(ctx context.Context, guestID, roomID int64, ts, since time.Time) (bool, error) {
	unlock := e.locks.Lock(guestID)
	defer unlock()

	recent, err := e.store.HasTimeOutSince(ctx, guestID, since)
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	if recent {
		e.logger.Debug("time out all: recent time-out exists", "guest_id", guestID)
		return false, nil
	}
	latest, err := e.store.LatestEvent(ctx, guestID)
	if err != nil {
		return false, fmt.Errorf("latest event: %w", err)
	}
	if latest != nil && ts.Before(latest.Ts) {
		ts = latest.Ts
	}
	if _, err := e.write(ctx, guestID, roomID, domain.TypeTimeOut, ts, sourceBulk); err != nil {
		return false, err
	}
	return true, nil
}
