// Package ledger implements the attendance ledger: it decides which event
// a presence signal becomes, appends it, and derives state and room
// aggregates from the append-only history.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/graaaaa/roomcheck/internal/derive"
	"github.com/graaaaa/roomcheck/internal/domain"
	"github.com/graaaaa/roomcheck/internal/metrics"
	"github.com/graaaaa/roomcheck/internal/store"
)

// DefaultDedupWindow is how far back time-out-all looks for an existing
// time-out before writing another.
const DefaultDedupWindow = 24 * time.Hour

// Store defines the persistence operations the engine needs.
type Store interface {
	GetGuest(ctx context.Context, id int64) (domain.Guest, error)
	GetRoom(ctx context.Context, id int64) (domain.Room, error)
	LatestEvent(ctx context.Context, guestID int64) (*domain.Event, error)
	AppendEvent(ctx context.Context, e *domain.Event) error
	LatestEventsByRoom(ctx context.Context, roomID int64) ([]domain.Event, error)
	HasTimeOutSince(ctx context.Context, guestID int64, since time.Time) (bool, error)
	RoomSnapshot(ctx context.Context, roomID int64) (store.RoomSnapshot, error)
}

// Clock provides time for deterministic testing.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Event sources, used as a metrics label.
const (
	sourceToggle  = "toggle"
	sourceAdmin   = "admin"
	sourceScan    = "scan"
	sourceScanner = "scanner"
	sourceBulk    = "bulk"
)

// Engine serializes read-latest-then-append per guest and applies the
// toggle and explicit transition rules.
type Engine struct {
	store       Store
	clock       Clock
	logger      *slog.Logger
	metrics     *metrics.Metrics
	dedupWindow time.Duration
	locks       keyedMutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for the Engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock sets the clock for the Engine (for testing).
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithMetrics enables Prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithDedupWindow overrides DefaultDedupWindow. Non-positive values are ignored.
func WithDedupWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.dedupWindow = d
		}
	}
}

// New creates an Engine backed by store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		clock:       realClock{},
		logger:      slog.Default(),
		dedupWindow: DefaultDedupWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GuestClaim is the identity a scan declares: a guest id plus the details
// that must match the stored record.
type GuestClaim struct {
	ID     int64
	Name   string
	Age    string
	Gender string
}

// RecordToggle appends time-in when the guest has no events or was last
// timed out, otherwise time-out.
func (e *Engine) RecordToggle(ctx context.Context, guestID int64) (domain.Event, error) {
	g, err := e.store.GetGuest(ctx, guestID)
	if err != nil {
		return domain.Event{}, err
	}
	return e.toggle(ctx, g, sourceToggle)
}

// RecordExplicitTimeIn appends time-in unless the latest event already is one.
func (e *Engine) RecordExplicitTimeIn(ctx context.Context, guestID int64) (domain.Event, error) {
	g, err := e.store.GetGuest(ctx, guestID)
	if err != nil {
		return domain.Event{}, err
	}
	return e.timeIn(ctx, g, sourceAdmin)
}

// RecordExplicitTimeOut appends time-out. It fails with ErrTimeOutBeforeTimeIn
// when the guest has no events and ErrAlreadyTimedOut when the latest event
// is a time-out.
func (e *Engine) RecordExplicitTimeOut(ctx context.Context, guestID int64) (domain.Event, error) {
	g, err := e.store.GetGuest(ctx, guestID)
	if err != nil {
		return domain.Event{}, err
	}

	unlock := e.locks.Lock(g.ID)
	defer unlock()

	latest, err := e.store.LatestEvent(ctx, g.ID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("latest event: %w", err)
	}
	switch {
	case latest == nil:
		e.metrics.Rejected("time_out_before_time_in")
		return domain.Event{}, domain.ErrTimeOutBeforeTimeIn
	case latest.Type == domain.TypeTimeOut:
		e.metrics.Rejected("already_timed_out")
		return domain.Event{}, domain.ErrAlreadyTimedOut
	}
	return e.append(ctx, g, domain.TypeTimeOut, latest, sourceAdmin)
}

// CurrentState derives the guest's presence from its latest event.
func (e *Engine) CurrentState(ctx context.Context, guestID int64) (domain.Presence, error) {
	if _, err := e.store.GetGuest(ctx, guestID); err != nil {
		return domain.PresenceUnknown, err
	}
	latest, err := e.store.LatestEvent(ctx, guestID)
	if err != nil {
		return domain.PresenceUnknown, fmt.Errorf("latest event: %w", err)
	}
	return derive.PresenceOf(latest), nil
}

// VerifyClaim loads the claimed guest and checks that name, age and gender
// match the stored record exactly.
func (e *Engine) VerifyClaim(ctx context.Context, c GuestClaim) (domain.Guest, error) {
	g, err := e.store.GetGuest(ctx, c.ID)
	if err != nil {
		return domain.Guest{}, err
	}
	if !g.Matches(c.Name, c.Age, c.Gender) {
		e.metrics.Rejected("detail_mismatch")
		return domain.Guest{}, domain.ErrGuestDetailMismatch
	}
	return g, nil
}

// Scan verifies the claim and toggles the guest. Used by the HTTP scan endpoint.
func (e *Engine) Scan(ctx context.Context, c GuestClaim) (domain.Event, domain.Guest, error) {
	g, err := e.VerifyClaim(ctx, c)
	if err != nil {
		return domain.Event{}, domain.Guest{}, err
	}
	ev, err := e.toggle(ctx, g, sourceScan)
	if err != nil {
		return domain.Event{}, domain.Guest{}, err
	}
	return ev, g, nil
}

// ProcessScan verifies the claim and records an explicit time-in. The
// hardware scanner never checks a guest out; a repeated scan fails with
// ErrAlreadyTimedIn.
func (e *Engine) ProcessScan(ctx context.Context, c GuestClaim) (domain.Event, domain.Guest, error) {
	g, err := e.VerifyClaim(ctx, c)
	if err != nil {
		return domain.Event{}, domain.Guest{}, err
	}
	ev, err := e.timeIn(ctx, g, sourceScanner)
	if err != nil {
		return domain.Event{}, domain.Guest{}, err
	}
	return ev, g, nil
}

func (e *Engine) toggle(ctx context.Context, g domain.Guest, source string) (domain.Event, error) {
	unlock := e.locks.Lock(g.ID)
	defer unlock()

	latest, err := e.store.LatestEvent(ctx, g.ID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("latest event: %w", err)
	}
	return e.append(ctx, g, derive.NextToggle(latest), latest, source)
}

func (e *Engine) timeIn(ctx context.Context, g domain.Guest, source string) (domain.Event, error) {
	unlock := e.locks.Lock(g.ID)
	defer unlock()

	latest, err := e.store.LatestEvent(ctx, g.ID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("latest event: %w", err)
	}
	if latest != nil && latest.Type == domain.TypeTimeIn {
		e.metrics.Rejected("already_timed_in")
		return domain.Event{}, domain.ErrAlreadyTimedIn
	}
	return e.append(ctx, g, domain.TypeTimeIn, latest, source)
}

// append writes one event. Caller must hold the guest's lock.
// The timestamp never goes behind latest so that the new event stays last
// in ledger order even if the wall clock steps backwards.
func (e *Engine) append(ctx context.Context, g domain.Guest, typ domain.EventType, latest *domain.Event, source string) (domain.Event, error) {
	ts := e.clock.Now().UTC()
	if latest != nil && ts.Before(latest.Ts) {
		ts = latest.Ts
	}
	return e.write(ctx, g.ID, g.RoomID, typ, ts, source)
}

func (e *Engine) write(ctx context.Context, guestID, roomID int64, typ domain.EventType, ts time.Time, source string) (domain.Event, error) {
	ev := domain.Event{
		GuestID: guestID,
		RoomID:  roomID,
		Type:    typ,
		Ts:      ts,
	}
	if err := e.store.AppendEvent(ctx, &ev); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Event{}, err
		}
		return domain.Event{}, fmt.Errorf("append %s: %w", typ, err)
	}

	e.metrics.EventAppended(string(typ), source)
	e.logger.Debug("attendance event appended",
		"guest_id", guestID,
		"room_id", roomID,
		"type", typ,
		"source", source,
	)
	return ev, nil
}
