package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/graaaaa/roomcheck/internal/domain"
	"github.com/graaaaa/roomcheck/internal/ledger"
	"github.com/graaaaa/roomcheck/internal/store"
)

var base = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

// stepClock advances by one second on every read.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// recordingPublisher collects published attendance events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) PublishAttendance(e domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) published() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.events...)
}

type env struct {
	st     *store.Store
	eng    *ledger.Engine
	rooms  *RoomService
	guests *GuestService
	pub    *recordingPublisher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "app.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	eng := ledger.New(st, ledger.WithClock(&stepClock{now: base}))
	pub := &recordingPublisher{}
	return &env{
		st:     st,
		eng:    eng,
		rooms:  NewRoomService(st, eng, nil),
		guests: NewGuestService(st, eng, WithPublisher(pub)),
		pub:    pub,
	}
}

func (e *env) room(t *testing.T, code string) domain.Room {
	t.Helper()
	r, err := e.rooms.Create(context.Background(), CreateRoomRequest{
		Title:       "Room " + code,
		Description: "test room",
		Code:        code,
	})
	require.NoError(t, err)
	return r
}

func (e *env) guest(t *testing.T, code, name string) domain.Guest {
	t.Helper()
	g, err := e.guests.Register(context.Background(), RegisterGuestRequest{
		FullName: name,
		Age:      30,
		Gender:   "Female",
		RoomCode: code,
	})
	require.NoError(t, err)
	return g
}
