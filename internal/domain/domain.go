// Package domain provides the shared attendance model for the room check-in tracker.
// It is used by the derive, store, ledger, ingest, app, and api packages.
package domain

import (
	"strconv"
	"time"
)

// EventType is the kind of an attendance event.
type EventType string

// Event type constants.
const (
	TypeTimeIn  EventType = "time_in"
	TypeTimeOut EventType = "time_out"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return t == TypeTimeIn || t == TypeTimeOut
}

// Presence is a guest's current state, derived from the latest event.
type Presence string

// Presence values.
const (
	PresenceUnknown Presence = "unknown"
	PresencePresent Presence = "present"
	PresenceAbsent  Presence = "absent"
)

// Room is a named event scope with a unique short code.
type Room struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Guest is a registered attendee of a room.
//
// TimeIn and TimeOut mirror the most recent ledger event of each type.
// They are refreshed on every append and are never read back as state.
type Guest struct {
	ID        int64      `json:"id"`
	FullName  string     `json:"fullName"`
	Age       int        `json:"age"`
	Gender    string     `json:"gender"`
	RoomID    int64      `json:"roomId"`
	TimeIn    *time.Time `json:"timeIn"`
	TimeOut   *time.Time `json:"timeOut"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Summary returns the short form of the guest used in scan results.
func (g Guest) Summary() *GuestSummary {
	return &GuestSummary{
		ID:       g.ID,
		FullName: g.FullName,
		Age:      g.Age,
		Gender:   g.Gender,
		RoomID:   g.RoomID,
	}
}

// Matches reports whether the declared name, age and gender are identical
// to the stored record. Age is compared in its decimal string form.
func (g Guest) Matches(name, age, gender string) bool {
	return g.FullName == name &&
		strconv.Itoa(g.Age) == age &&
		g.Gender == gender
}

// GuestSummary identifies a guest without the mirror fields.
type GuestSummary struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullName"`
	Age      int    `json:"age"`
	Gender   string `json:"gender"`
	RoomID   int64  `json:"roomId"`
}

// Event is an immutable attendance record. Events for a guest are ordered
// by (Ts DESC, ID DESC); ID breaks ties between equal timestamps.
type Event struct {
	ID      int64     `json:"id"`
	GuestID int64     `json:"guestId"`
	RoomID  int64     `json:"roomId"`
	Type    EventType `json:"type"`
	Ts      time.Time `json:"timestamp"`
}

// After reports whether e sorts after o in ledger order.
func (e Event) After(o Event) bool {
	if !e.Ts.Equal(o.Ts) {
		return e.Ts.After(o.Ts)
	}
	return e.ID > o.ID
}

// RoomStats holds the current in/out counts for a room.
type RoomStats struct {
	TotalGuests  int `json:"totalGuests"`
	TimeInCount  int `json:"timeInCount"`
	TimeOutCount int `json:"timeOutCount"`
}

// Admin is a dashboard account.
type Admin struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Scan result status values.
const (
	ScanStatusSuccess = "success"
	ScanStatusError   = "error"
)

// ScanResult is the outcome of one hardware scan, buffered for pollers.
type ScanResult struct {
	ID      string        `json:"id"`
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Guest   *GuestSummary `json:"guest,omitempty"`
	Event   *Event        `json:"event,omitempty"`
	At      time.Time     `json:"at"`
}
