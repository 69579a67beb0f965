// Package derive provides presence derivation from attendance events.
// Current state is always recomputed from the ledger and never stored.
package derive

import "github.com/graaaaa/roomcheck/internal/domain"

// Latest returns the event that sorts last in ledger order (ts, then id).
// Input order does not matter. Returns false if events is empty.
func Latest(events []domain.Event) (domain.Event, bool) {
	if len(events) == 0 {
		return domain.Event{}, false
	}
	latest := events[0]
	for _, e := range events[1:] {
		if e.After(latest) {
			latest = e
		}
	}
	return latest, true
}

// LatestPerGuest resolves the latest event of every guest in events.
func LatestPerGuest(events []domain.Event) map[int64]domain.Event {
	out := make(map[int64]domain.Event)
	for _, e := range events {
		if cur, ok := out[e.GuestID]; !ok || e.After(cur) {
			out[e.GuestID] = e
		}
	}
	return out
}

// PresenceOf maps a guest's latest event to its presence.
// A nil latest event means the guest has never scanned.
func PresenceOf(latest *domain.Event) domain.Presence {
	if latest == nil {
		return domain.PresenceUnknown
	}
	switch latest.Type {
	case domain.TypeTimeIn:
		return domain.PresencePresent
	case domain.TypeTimeOut:
		return domain.PresenceAbsent
	default:
		return domain.PresenceUnknown
	}
}

// NextToggle returns the event type a toggle appends after latest:
// time-in when there is no event or the latest is a time-out, otherwise time-out.
func NextToggle(latest *domain.Event) domain.EventType {
	if latest == nil || latest.Type == domain.TypeTimeOut {
		return domain.TypeTimeIn
	}
	return domain.TypeTimeOut
}

// Tally counts latest events by type. Each element must be the latest
// event of a distinct guest.
func Tally(latest []domain.Event) (timeIn, timeOut int) {
	for _, e := range latest {
		switch e.Type {
		case domain.TypeTimeIn:
			timeIn++
		case domain.TypeTimeOut:
			timeOut++
		}
	}
	return timeIn, timeOut
}
