package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/graaaaa/roomcheck/internal/domain"
)

func TestAppendEvent_SetsIDAndMirrors(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	ctx := context.Background()

	room := createTestRoom(t, st, "MIRROR")
	g := createTestGuest(t, st, room.ID, "Ana")

	in := appendTestEvent(t, st, g, domain.TypeTimeIn, testBase)
	if in.ID == 0 {
		t.Fatal("expected event ID to be set")
	}

	got, err := st.GetGuest(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGuest: %v", err)
	}
	if got.TimeIn == nil || !got.TimeIn.Equal(testBase) {
		t.Errorf("TimeIn = %v, want %v", got.TimeIn, testBase)
	}
	if got.TimeOut != nil {
		t.Errorf("TimeOut = %v, want nil", got.TimeOut)
	}

	appendTestEvent(t, st, g, domain.TypeTimeOut, testBase.Add(time.Hour))
	appendTestEvent(t, st, g, domain.TypeTimeIn, testBase.Add(2*time.Hour))

	got, err = st.GetGuest(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGuest: %v", err)
	}
	if got.TimeIn == nil || !got.TimeIn.Equal(testBase.Add(2*time.Hour)) {
		t.Errorf("TimeIn = %v, want latest time-in", got.TimeIn)
	}
	if got.TimeOut == nil || !got.TimeOut.Equal(testBase.Add(time.Hour)) {
		t.Errorf("TimeOut = %v, want latest time-out", got.TimeOut)
	}
}

func TestAppendEvent_Validation(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()

	tests := []struct {
		name string
		e    domain.Event
	}{
		{"bad type", domain.Event{GuestID: 1, RoomID: 1, Type: "checked", Ts: testBase}},
		{"no guest", domain.Event{RoomID: 1, Type: domain.TypeTimeIn, Ts: testBase}},
		{"no room", domain.Event{GuestID: 1, Type: domain.TypeTimeIn, Ts: testBase}},
		{"no ts", domain.Event{GuestID: 1, RoomID: 1, Type: domain.TypeTimeIn}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := st.AppendEvent(context.Background(), &tt.e)
			if !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("err = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestAppendEvent_UnknownGuest(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()

	room := createTestRoom(t, st, "NOBODY")
	e := domain.Event{GuestID: 999, RoomID: room.ID, Type: domain.TypeTimeIn, Ts: testBase}
	if err := st.AppendEvent(context.Background(), &e); err == nil {
		t.Fatal("expected error appending event for unknown guest")
	}

	count, err := st.CountEvents(context.Background())
	if err != nil {
		t.Fatalf("CountEvents: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 (transaction rolled back)", count)
	}
}

func TestLatestEvent(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	ctx := context.Background()

	room := createTestRoom(t, st, "LATEST")
	g := createTestGuest(t, st, room.ID, "Ben")

	latest, err := st.LatestEvent(ctx, g.ID)
	if err != nil {
		t.Fatalf("LatestEvent: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected nil for guest without events, got %+v", latest)
	}

	// Same timestamp: the higher id is latest.
	appendTestEvent(t, st, g, domain.TypeTimeIn, testBase)
	second := appendTestEvent(t, st, g, domain.TypeTimeOut, testBase)

	latest, err = st.LatestEvent(ctx, g.ID)
	if err != nil {
		t.Fatalf("LatestEvent: %v", err)
	}
	if latest == nil || latest.ID != second.ID || latest.Type != domain.TypeTimeOut {
		t.Errorf("latest = %+v, want id %d time_out", latest, second.ID)
	}
}

func TestLatestEvent_OutOfOrderTimestamps(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()

	room := createTestRoom(t, st, "ORDERS")
	g := createTestGuest(t, st, room.ID, "Cy")

	later := appendTestEvent(t, st, g, domain.TypeTimeIn, testBase.Add(time.Minute))
	// Inserted afterwards but with an earlier timestamp
	appendTestEvent(t, st, g, domain.TypeTimeOut, testBase)

	latest, err := st.LatestEvent(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("LatestEvent: %v", err)
	}
	if latest.ID != later.ID {
		t.Errorf("latest id = %d, want %d (timestamp beats id)", latest.ID, later.ID)
	}
}

func TestLatestEventsByRoom(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	ctx := context.Background()

	room := createTestRoom(t, st, "ROOM01")
	other := createTestRoom(t, st, "ROOM02")

	g1 := createTestGuest(t, st, room.ID, "g1")
	g2 := createTestGuest(t, st, room.ID, "g2")
	createTestGuest(t, st, room.ID, "g3") // no events
	g4 := createTestGuest(t, st, other.ID, "g4")

	appendTestEvent(t, st, g1, domain.TypeTimeIn, testBase)
	appendTestEvent(t, st, g2, domain.TypeTimeIn, testBase)
	appendTestEvent(t, st, g2, domain.TypeTimeOut, testBase.Add(time.Minute))
	appendTestEvent(t, st, g4, domain.TypeTimeIn, testBase)

	latest, err := st.LatestEventsByRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("LatestEventsByRoom: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("len = %d, want 2", len(latest))
	}
	byGuest := map[int64]domain.EventType{}
	for _, e := range latest {
		if e.RoomID != room.ID {
			t.Errorf("event from room %d leaked into room %d", e.RoomID, room.ID)
		}
		byGuest[e.GuestID] = e.Type
	}
	if byGuest[g1.ID] != domain.TypeTimeIn || byGuest[g2.ID] != domain.TypeTimeOut {
		t.Errorf("unexpected latest types: %v", byGuest)
	}

	empty, err := st.LatestEventsByRoom(ctx, 12345)
	if err != nil {
		t.Fatalf("LatestEventsByRoom(unknown): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("len = %d, want 0", len(empty))
	}
}

func TestLatestEvents_AllRooms(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	ctx := context.Background()

	room := createTestRoom(t, st, "ROOM01")
	other := createTestRoom(t, st, "ROOM02")
	g1 := createTestGuest(t, st, room.ID, "g1")
	g2 := createTestGuest(t, st, other.ID, "g2")

	appendTestEvent(t, st, g1, domain.TypeTimeIn, testBase)
	appendTestEvent(t, st, g1, domain.TypeTimeOut, testBase)
	appendTestEvent(t, st, g2, domain.TypeTimeIn, testBase)

	latest, err := st.LatestEvents(ctx)
	if err != nil {
		t.Fatalf("LatestEvents: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("len = %d, want 2", len(latest))
	}
	if latest[0].GuestID != g1.ID || latest[0].Type != domain.TypeTimeOut {
		t.Errorf("guest1 latest = %+v, want time_out (higher id on tie)", latest[0])
	}
	if latest[1].GuestID != g2.ID || latest[1].Type != domain.TypeTimeIn {
		t.Errorf("guest2 latest = %+v, want time_in", latest[1])
	}
}

func TestHasTimeOutSince(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	ctx := context.Background()

	room := createTestRoom(t, st, "DEDUPE")
	g := createTestGuest(t, st, room.ID, "Dee")

	appendTestEvent(t, st, g, domain.TypeTimeIn, testBase)
	appendTestEvent(t, st, g, domain.TypeTimeOut, testBase.Add(time.Hour))

	tests := []struct {
		name  string
		since time.Time
		want  bool
	}{
		{"window covers time-out", testBase, true},
		{"boundary is inclusive", testBase.Add(time.Hour), true},
		{"window after time-out", testBase.Add(2 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.HasTimeOutSince(ctx, g.ID, tt.since)
			if err != nil {
				t.Fatalf("HasTimeOutSince: %v", err)
			}
			if got != tt.want {
				t.Errorf("HasTimeOutSince = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGuestEvents_Pagination(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	ctx := context.Background()

	room := createTestRoom(t, st, "PAGING")
	g := createTestGuest(t, st, room.ID, "Eve")

	var ids []int64
	for i := 0; i < 5; i++ {
		typ := domain.TypeTimeIn
		if i%2 == 1 {
			typ = domain.TypeTimeOut
		}
		e := appendTestEvent(t, st, g, typ, testBase.Add(time.Duration(i)*time.Minute))
		ids = append(ids, e.ID)
	}

	page1, err := st.GuestEvents(ctx, g.ID, EventFilter{Limit: 2})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1.Items) != 2 || page1.NextCursor == nil {
		t.Fatalf("page 1: %d items, cursor %v", len(page1.Items), page1.NextCursor)
	}
	if page1.Items[0].ID != ids[4] || page1.Items[1].ID != ids[3] {
		t.Errorf("page 1 not newest first: %d, %d", page1.Items[0].ID, page1.Items[1].ID)
	}

	page2, err := st.GuestEvents(ctx, g.ID, EventFilter{Limit: 2, Cursor: page1.NextCursor})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	page3, err := st.GuestEvents(ctx, g.ID, EventFilter{Limit: 2, Cursor: page2.NextCursor})
	if err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if len(page3.Items) != 1 || page3.NextCursor != nil {
		t.Fatalf("page 3: %d items, cursor %v", len(page3.Items), page3.NextCursor)
	}
	if page3.Items[0].ID != ids[0] {
		t.Errorf("last item = %d, want %d", page3.Items[0].ID, ids[0])
	}
}

func TestGuestEvents_InvalidCursor(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()

	bad := "!!!"
	_, err := st.GuestEvents(context.Background(), 1, EventFilter{Cursor: &bad})
	if !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("err = %v, want ErrInvalidCursor", err)
	}
	if !errors.Is(err, domain.ErrValidationFailed) {
		t.Errorf("invalid cursor should be a validation failure")
	}
}

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	c := EncodeCursor(ts, 42)

	gotTs, gotID, err := decodeCursor(c)
	if err != nil {
		t.Fatalf("decodeCursor: %v", err)
	}
	if !gotTs.Equal(ts) || gotID != 42 {
		t.Errorf("decoded (%v, %d), want (%v, 42)", gotTs, gotID, ts)
	}
}
