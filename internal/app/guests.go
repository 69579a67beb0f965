package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/graaaaa/roomcheck/internal/derive"
	"github.com/graaaaa/roomcheck/internal/domain"
	"github.com/graaaaa/roomcheck/internal/ledger"
	"github.com/graaaaa/roomcheck/internal/store"
)

// Scan outcome messages.
const (
	MsgTimeInRecorded  = "Time-in recorded successfully"
	MsgTimeOutRecorded = "Time-out recorded successfully"
)

// GuestStore is the persistence needed by GuestService.
type GuestStore interface {
	CreateGuest(ctx context.Context, g *domain.Guest) error
	GetGuest(ctx context.Context, id int64) (domain.Guest, error)
	ListGuests(ctx context.Context) ([]domain.Guest, error)
	ListGuestsByRoom(ctx context.Context, roomID int64) ([]domain.Guest, error)
	DeleteGuest(ctx context.Context, id int64) error
	GetRoomByCode(ctx context.Context, code string) (domain.Room, error)
	LatestEvents(ctx context.Context) ([]domain.Event, error)
	GuestEvents(ctx context.Context, guestID int64, f store.EventFilter) (store.EventPage, error)
}

// GuestLedger is the part of the ledger engine used for single guests.
type GuestLedger interface {
	RecordExplicitTimeIn(ctx context.Context, guestID int64) (domain.Event, error)
	RecordExplicitTimeOut(ctx context.Context, guestID int64) (domain.Event, error)
	CurrentState(ctx context.Context, guestID int64) (domain.Presence, error)
	Scan(ctx context.Context, c ledger.GuestClaim) (domain.Event, domain.Guest, error)
}

// Publisher receives attendance events after they are committed.
type Publisher interface {
	PublishAttendance(e domain.Event)
}

// GuestsUsecase defines guest registration and attendance actions.
type GuestsUsecase interface {
	Register(ctx context.Context, req RegisterGuestRequest) (domain.Guest, error)
	List(ctx context.Context) ([]GuestWithState, error)
	ListByRoomCode(ctx context.Context, code string) ([]domain.Guest, error)
	Delete(ctx context.Context, id int64) error
	TimeIn(ctx context.Context, id int64) (domain.Event, error)
	TimeOut(ctx context.Context, id int64) (domain.Event, error)
	State(ctx context.Context, id int64) (GuestState, error)
	Events(ctx context.Context, id int64, f store.EventFilter) (store.EventPage, error)
	Scan(ctx context.Context, req ScanRequest) (ScanResponse, error)
}

// RegisterGuestRequest is the self-registration payload.
type RegisterGuestRequest struct {
	FullName string `json:"fullName" validate:"required,max=200"`
	Age      int    `json:"age" validate:"gt=0,lte=150"`
	Gender   string `json:"gender" validate:"required,max=50"`
	RoomCode string `json:"roomCode" validate:"required,len=6,alphanum"`
}

// ScanRequest is a decoded QR claim posted by a client-side scanner.
// ID and Age accept both JSON numbers and numeric strings.
type ScanRequest struct {
	ID     json.Number `json:"id" validate:"required"`
	Name   string      `json:"name" validate:"required"`
	Age    json.Number `json:"age" validate:"required"`
	Gender string      `json:"gender" validate:"required"`
}

// ScanResponse reports the event a scan produced.
type ScanResponse struct {
	Message string              `json:"message"`
	Event   domain.Event        `json:"event"`
	Guest   domain.GuestSummary `json:"guest"`
}

// GuestWithState is a guest with its presence derived from the ledger.
type GuestWithState struct {
	domain.Guest
	State domain.Presence `json:"state"`
}

// GuestState is the current presence of one guest.
type GuestState struct {
	GuestID int64           `json:"guestId"`
	State   domain.Presence `json:"state"`
}

// GuestService implements GuestsUsecase.
type GuestService struct {
	store     GuestStore
	ledger    GuestLedger
	publisher Publisher
	validator *validator.Validate
	logger    *slog.Logger
}

// GuestOption configures a GuestService.
type GuestOption func(*GuestService)

// WithPublisher sets where committed attendance events are published.
func WithPublisher(p Publisher) GuestOption {
	return func(s *GuestService) { s.publisher = p }
}

// WithGuestLogger sets the logger for the GuestService.
func WithGuestLogger(logger *slog.Logger) GuestOption {
	return func(s *GuestService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewGuestService creates a GuestService.
func NewGuestService(store GuestStore, l GuestLedger, opts ...GuestOption) *GuestService {
	s := &GuestService{
		store:     store,
		ledger:    l,
		validator: newValidator(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a guest in the room identified by req.RoomCode.
func (s *GuestService) Register(ctx context.Context, req RegisterGuestRequest) (domain.Guest, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Gender = strings.TrimSpace(req.Gender)
	req.RoomCode = strings.ToUpper(strings.TrimSpace(req.RoomCode))
	if err := validateStruct(s.validator, req); err != nil {
		return domain.Guest{}, err
	}

	room, err := s.store.GetRoomByCode(ctx, req.RoomCode)
	if err != nil {
		return domain.Guest{}, err
	}

	g := domain.Guest{
		FullName: req.FullName,
		Age:      req.Age,
		Gender:   req.Gender,
		RoomID:   room.ID,
	}
	if err := s.store.CreateGuest(ctx, &g); err != nil {
		return domain.Guest{}, err
	}
	s.logger.Info("guest registered", "guest_id", g.ID, "room_id", room.ID)
	return g, nil
}

// List returns every guest with its current presence.
func (s *GuestService) List(ctx context.Context) ([]GuestWithState, error) {
	guests, err := s.store.ListGuests(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := s.store.LatestEvents(ctx)
	if err != nil {
		return nil, err
	}
	byGuest := derive.LatestPerGuest(latest)

	out := make([]GuestWithState, 0, len(guests))
	for _, g := range guests {
		state := domain.PresenceUnknown
		if e, ok := byGuest[g.ID]; ok {
			state = derive.PresenceOf(&e)
		}
		out = append(out, GuestWithState{Guest: g, State: state})
	}
	return out, nil
}

// ListByRoomCode returns the guests registered to the room with the given code.
func (s *GuestService) ListByRoomCode(ctx context.Context, code string) ([]domain.Guest, error) {
	room, err := s.store.GetRoomByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	return s.store.ListGuestsByRoom(ctx, room.ID)
}

// Delete removes a guest and its ledger history.
func (s *GuestService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteGuest(ctx, id); err != nil {
		return err
	}
	s.logger.Info("guest deleted", "guest_id", id)
	return nil
}

// TimeIn records an explicit time-in.
func (s *GuestService) TimeIn(ctx context.Context, id int64) (domain.Event, error) {
	e, err := s.ledger.RecordExplicitTimeIn(ctx, id)
	if err != nil {
		return domain.Event{}, err
	}
	s.publish(e)
	return e, nil
}

// TimeOut records an explicit time-out.
func (s *GuestService) TimeOut(ctx context.Context, id int64) (domain.Event, error) {
	e, err := s.ledger.RecordExplicitTimeOut(ctx, id)
	if err != nil {
		return domain.Event{}, err
	}
	s.publish(e)
	return e, nil
}

// State returns the guest's current presence.
func (s *GuestService) State(ctx context.Context, id int64) (GuestState, error) {
	p, err := s.ledger.CurrentState(ctx, id)
	if err != nil {
		return GuestState{}, err
	}
	return GuestState{GuestID: id, State: p}, nil
}

// Events returns a page of the guest's ledger history, newest first.
func (s *GuestService) Events(ctx context.Context, id int64, f store.EventFilter) (store.EventPage, error) {
	if _, err := s.store.GetGuest(ctx, id); err != nil {
		return store.EventPage{}, err
	}
	return s.store.GuestEvents(ctx, id, f)
}

// Scan verifies a QR claim and toggles the guest's presence. Name and
// gender are compared exactly as sent.
func (s *GuestService) Scan(ctx context.Context, req ScanRequest) (ScanResponse, error) {
	if err := validateStruct(s.validator, req); err != nil {
		return ScanResponse{}, err
	}
	id, err := req.ID.Int64()
	if err != nil || id <= 0 {
		return ScanResponse{}, domain.Validation("id must be a positive integer")
	}
	if _, err := req.Age.Int64(); err != nil {
		return ScanResponse{}, domain.Validation("age must be an integer")
	}

	claim := ledger.GuestClaim{ID: id, Name: req.Name, Age: req.Age.String(), Gender: req.Gender}
	e, g, err := s.ledger.Scan(ctx, claim)
	if err != nil {
		return ScanResponse{}, err
	}
	s.publish(e)

	msg := MsgTimeInRecorded
	if e.Type == domain.TypeTimeOut {
		msg = MsgTimeOutRecorded
	}
	return ScanResponse{Message: msg, Event: e, Guest: *g.Summary()}, nil
}

func (s *GuestService) publish(e domain.Event) {
	if s.publisher != nil {
		s.publisher.PublishAttendance(e)
	}
}
