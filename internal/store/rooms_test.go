package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/graaaaa/roomcheck/internal/domain"
)

func TestCreateRoom_DuplicateCode(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()

	createTestRoom(t, st, "DUPE01")

	r := domain.Room{Title: "again", Code: "DUPE01"}
	err := st.CreateRoom(context.Background(), &r)
	if !errors.Is(err, domain.ErrDuplicateRoomCode) {
		t.Fatalf("err = %v, want ErrDuplicateRoomCode", err)
	}
	if !errors.Is(err, domain.ErrConflict) {
		t.Error("duplicate code should be a conflict")
	}
}

func TestGetRoom_NotFound(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	ctx := context.Background()

	if _, err := st.GetRoom(ctx, 42); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("GetRoom err = %v, want ErrRoomNotFound", err)
	}
	if _, err := st.GetRoomByCode(ctx, "NOPE00"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("GetRoomByCode err = %v, want ErrRoomNotFound", err)
	}
}

func TestListRooms_NewestFirst(t *testing.T) {
	clock := testBase
	st, err := Open(t.TempDir()+"/rooms.sqlite", WithNow(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	first := createTestRoom(t, st, "AAAAAA")
	second := createTestRoom(t, st, "BBBBBB")

	rooms, err := st.ListRooms(context.Background())
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("len = %d, want 2", len(rooms))
	}
	if rooms[0].ID != second.ID || rooms[1].ID != first.ID {
		t.Errorf("order = [%d %d], want [%d %d]", rooms[0].ID, rooms[1].ID, second.ID, first.ID)
	}
	if !rooms[0].CreatedAt.Equal(second.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", rooms[0].CreatedAt, second.CreatedAt)
	}
}

func TestDeleteRoom_CascadesGuestsAndEvents(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	ctx := context.Background()

	room := createTestRoom(t, st, "CASCAD")
	g := createTestGuest(t, st, room.ID, "Fay")
	appendTestEvent(t, st, g, domain.TypeTimeIn, testBase)

	if err := st.DeleteRoom(ctx, room.ID); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}

	if _, err := st.GetGuest(ctx, g.ID); !errors.Is(err, domain.ErrGuestNotFound) {
		t.Errorf("guest survived room delete: %v", err)
	}
	count, err := st.CountEvents(ctx)
	if err != nil {
		t.Fatalf("CountEvents: %v", err)
	}
	if count != 0 {
		t.Errorf("events = %d, want 0 after cascade", count)
	}

	if err := st.DeleteRoom(ctx, room.ID); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("second DeleteRoom err = %v, want ErrRoomNotFound", err)
	}
}

func TestRoomSnapshot(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	ctx := context.Background()

	room := createTestRoom(t, st, "COUNTS")
	snap, err := st.RoomSnapshot(ctx, room.ID)
	if err != nil {
		t.Fatalf("RoomSnapshot: %v", err)
	}
	if snap.Room.ID != room.ID || snap.Guests != 0 || len(snap.Latest) != 0 {
		t.Errorf("empty room snapshot = %+v", snap)
	}

	g := createTestGuest(t, st, room.ID, "Gus")
	createTestGuest(t, st, room.ID, "Hal")
	appendTestEvent(t, st, g, domain.TypeTimeIn, testBase)
	appendTestEvent(t, st, g, domain.TypeTimeOut, testBase.Add(time.Minute))

	other := createTestRoom(t, st, "OTHER")
	appendTestEvent(t, st, createTestGuest(t, st, other.ID, "Ivy"), domain.TypeTimeIn, testBase)

	snap, err = st.RoomSnapshot(ctx, room.ID)
	if err != nil {
		t.Fatalf("RoomSnapshot: %v", err)
	}
	if snap.Guests != 2 {
		t.Errorf("guests = %d, want 2", snap.Guests)
	}
	if len(snap.Latest) != 1 {
		t.Fatalf("latest = %d events, want 1", len(snap.Latest))
	}
	if snap.Latest[0].GuestID != g.ID || snap.Latest[0].Type != domain.TypeTimeOut {
		t.Errorf("latest = %+v, want time_out for guest %d", snap.Latest[0], g.ID)
	}

	if _, err := st.RoomSnapshot(ctx, 31337); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("unknown room err = %v, want ErrRoomNotFound", err)
	}
}
