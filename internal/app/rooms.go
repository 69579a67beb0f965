package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/graaaaa/roomcheck/internal/domain"
	"github.com/graaaaa/roomcheck/internal/ledger"
)

const (
	roomCodeLength   = 6
	roomCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	roomCodeAttempts = 5
)

// RoomStore is the persistence needed by RoomService.
type RoomStore interface {
	CreateRoom(ctx context.Context, r *domain.Room) error
	GetRoom(ctx context.Context, id int64) (domain.Room, error)
	GetRoomByCode(ctx context.Context, code string) (domain.Room, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
	DeleteRoom(ctx context.Context, id int64) error
}

// RoomLedger is the part of the ledger engine used for room-wide operations.
type RoomLedger interface {
	RoomStats(ctx context.Context, roomID int64) (domain.RoomStats, error)
	TimeOutAll(ctx context.Context, roomID int64) (ledger.BulkResult, error)
}

// RoomsUsecase defines room management and aggregation.
type RoomsUsecase interface {
	Create(ctx context.Context, req CreateRoomRequest) (domain.Room, error)
	List(ctx context.Context) ([]domain.Room, error)
	Get(ctx context.Context, id int64) (domain.Room, error)
	GetByCode(ctx context.Context, code string) (domain.Room, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context, id int64) (domain.RoomStats, error)
	TimeOutAll(ctx context.Context, id int64) (ledger.BulkResult, error)
}

// CreateRoomRequest is the payload for creating a room.
// An empty Code asks the server to generate one.
type CreateRoomRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=2000"`
	Code        string `json:"code" validate:"omitempty,len=6,alphanum"`
}

// RoomService implements RoomsUsecase.
type RoomService struct {
	store     RoomStore
	ledger    RoomLedger
	validator *validator.Validate
	logger    *slog.Logger
}

// NewRoomService creates a RoomService.
func NewRoomService(store RoomStore, l RoomLedger, logger *slog.Logger) *RoomService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomService{
		store:     store,
		ledger:    l,
		validator: newValidator(),
		logger:    logger,
	}
}

// Create validates and stores a new room. Codes are stored upper-case.
func (s *RoomService) Create(ctx context.Context, req CreateRoomRequest) (domain.Room, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Code = strings.TrimSpace(req.Code)
	if err := validateStruct(s.validator, req); err != nil {
		return domain.Room{}, err
	}

	room := domain.Room{Title: req.Title, Description: req.Description}

	if req.Code != "" {
		room.Code = strings.ToUpper(req.Code)
		if err := s.store.CreateRoom(ctx, &room); err != nil {
			return domain.Room{}, err
		}
		s.logger.Info("room created", "room_id", room.ID, "code", room.Code)
		return room, nil
	}

	// Generated codes can collide; retry a few times before giving up.
	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		code, err := generateRoomCode()
		if err != nil {
			return domain.Room{}, fmt.Errorf("generate room code: %w", err)
		}
		room.Code = code
		err = s.store.CreateRoom(ctx, &room)
		if errors.Is(err, domain.ErrDuplicateRoomCode) {
			continue
		}
		if err != nil {
			return domain.Room{}, err
		}
		s.logger.Info("room created", "room_id", room.ID, "code", room.Code)
		return room, nil
	}
	return domain.Room{}, domain.ErrDuplicateRoomCode
}

// List returns all rooms, newest first.
func (s *RoomService) List(ctx context.Context) ([]domain.Room, error) {
	return s.store.ListRooms(ctx)
}

// Get returns a room by ID.
func (s *RoomService) Get(ctx context.Context, id int64) (domain.Room, error) {
	return s.store.GetRoom(ctx, id)
}

// GetByCode returns a room by its code, case-insensitively.
func (s *RoomService) GetByCode(ctx context.Context, code string) (domain.Room, error) {
	return s.store.GetRoomByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

// Delete removes a room with its guests and events.
func (s *RoomService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteRoom(ctx, id); err != nil {
		return err
	}
	s.logger.Info("room deleted", "room_id", id)
	return nil
}

// Stats returns the room's current in/out counts.
func (s *RoomService) Stats(ctx context.Context, id int64) (domain.RoomStats, error) {
	return s.ledger.RoomStats(ctx, id)
}

// TimeOutAll checks out every guest of the room who is currently present.
func (s *RoomService) TimeOutAll(ctx context.Context, id int64) (ledger.BulkResult, error) {
	return s.ledger.TimeOutAll(ctx, id)
}

func generateRoomCode() (string, error) {
	var sb strings.Builder
	sb.Grow(roomCodeLength)
	max := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := 0; i < roomCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(roomCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}
