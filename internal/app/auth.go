package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/graaaaa/roomcheck/internal/auth"
	"github.com/graaaaa/roomcheck/internal/config"
	"github.com/graaaaa/roomcheck/internal/domain"
	"github.com/graaaaa/roomcheck/internal/lib/logger/sl"
	"github.com/graaaaa/roomcheck/internal/metrics"
)

// DefaultAdminUsername is the account created on first run.
const DefaultAdminUsername = "admin"

// AdminStore is the persistence needed by AuthService.
type AdminStore interface {
	CreateAdmin(ctx context.Context, a *domain.Admin) error
	AdminByUsername(ctx context.Context, username string) (domain.Admin, error)
	CountAdmins(ctx context.Context) (int, error)
}

// AuthUsecase defines admin login and token checks.
type AuthUsecase interface {
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	Validate(ctx context.Context, token string) (auth.Claims, error)
}

// LoginRequest holds admin credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
}

// LoginResponse carries an issued token.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// AuthService implements AuthUsecase.
type AuthService struct {
	store     AdminStore
	secret    []byte
	ttl       time.Duration
	now       func() time.Time
	metrics   *metrics.Metrics
	validator *validator.Validate
	logger    *slog.Logger
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithTokenTTL sets the validity of issued tokens.
func WithTokenTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithAuthClock sets the time source for token issuance and validation.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAuthMetrics sets the metrics sink for failed logins.
func WithAuthMetrics(m *metrics.Metrics) AuthOption {
	return func(s *AuthService) { s.metrics = m }
}

// WithAuthLogger sets the logger for the AuthService.
func WithAuthLogger(logger *slog.Logger) AuthOption {
	return func(s *AuthService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewAuthService creates an AuthService signing tokens with secret.
func NewAuthService(store AdminStore, secret []byte, opts ...AuthOption) *AuthService {
	s := &AuthService{
		store:     store,
		secret:    secret,
		ttl:       auth.DefaultTTL,
		now:       time.Now,
		validator: newValidator(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login checks credentials and issues a token. Unknown users and wrong
// passwords both return auth.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := validateStruct(s.validator, req); err != nil {
		return LoginResponse{}, err
	}

	admin, err := s.store.AdminByUsername(ctx, req.Username)
	if errors.Is(err, domain.ErrAdminNotFound) {
		s.failed(req.Username)
		return LoginResponse{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return LoginResponse{}, fmt.Errorf("lookup admin: %w", err)
	}
	if err := auth.CheckPassword(admin.PasswordHash, req.Password); err != nil {
		s.failed(req.Username)
		return LoginResponse{}, err
	}

	token, err := auth.GenerateToken(s.secret, admin.ID, admin.Username, s.ttl, s.now())
	if err != nil {
		return LoginResponse{}, fmt.Errorf("generate token: %w", err)
	}
	s.logger.Info("admin logged in", "username", admin.Username)
	return LoginResponse{Token: token, ExpiresIn: int64(s.ttl / time.Second)}, nil
}

// Validate checks a token and returns its claims.
func (s *AuthService) Validate(ctx context.Context, token string) (auth.Claims, error) {
	return auth.ValidateToken(token, s.secret, s.now())
}

// EnsureInitialAdmin creates the default admin with a generated password
// when no admin exists. It returns the password only when one was created.
func (s *AuthService) EnsureInitialAdmin(ctx context.Context) (password string, created bool, err error) {
	n, err := s.store.CountAdmins(ctx)
	if err != nil {
		return "", false, fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return "", false, nil
	}

	password, err = config.GeneratePassword(config.PasswordLength)
	if err != nil {
		return "", false, fmt.Errorf("generate password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", false, fmt.Errorf("hash password: %w", err)
	}
	a := domain.Admin{Username: DefaultAdminUsername, PasswordHash: hash}
	if err := s.store.CreateAdmin(ctx, &a); err != nil {
		return "", false, fmt.Errorf("create admin: %w", err)
	}
	s.logger.Info("initial admin created", "username", a.Username)
	return password, true, nil
}

func (s *AuthService) failed(username string) {
	s.metrics.FailedLogin()
	s.logger.Warn("login failed", "username", username, sl.Err(auth.ErrInvalidCredentials))
}
