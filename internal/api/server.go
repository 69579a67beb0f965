package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/graaaaa/roomcheck/internal/app"
	"github.com/graaaaa/roomcheck/internal/metrics"
)

// Server represents the HTTP API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	handler    http.Handler

	// Use case dependencies
	health  app.HealthUsecase
	rooms   app.RoomsUsecase
	guests  app.GuestsUsecase
	scans   app.ScanResultsUsecase
	auth    app.AuthUsecase
	cfg     app.ConfigUsecase
	hub     *Hub
	metrics *metrics.Metrics

	allowedOrigins []string
	limiter        *RateLimiter
	loginLimiter   *AuthFailureLimiter
	logger         *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRooms sets the rooms use case.
func WithRooms(u app.RoomsUsecase) ServerOption {
	return func(s *Server) { s.rooms = u }
}

// WithGuests sets the guests use case.
func WithGuests(u app.GuestsUsecase) ServerOption {
	return func(s *Server) { s.guests = u }
}

// WithScanResults sets the buffered scan result use case.
func WithScanResults(u app.ScanResultsUsecase) ServerOption {
	return func(s *Server) { s.scans = u }
}

// WithAuth sets the admin auth use case. Without it, admin routes are not registered.
func WithAuth(u app.AuthUsecase) ServerOption {
	return func(s *Server) { s.auth = u }
}

// WithConfig sets the configuration use case.
func WithConfig(u app.ConfigUsecase) ServerOption {
	return func(s *Server) { s.cfg = u }
}

// WithHub sets the SSE hub.
func WithHub(hub *Hub) ServerOption {
	return func(s *Server) { s.hub = hub }
}

// WithMetrics enables request metrics and the /metrics endpoint.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithAllowedOrigins sets the CORS allowlist.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithRateLimit overrides the limits applied to public write endpoints.
func WithRateLimit(cfg RateLimiterConfig) ServerOption {
	return func(s *Server) {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		s.limiter = NewRateLimiter(cfg)
	}
}

// WithLoginLockout overrides the failed-login lockout policy.
func WithLoginLockout(cfg AuthFailureLimiterConfig) ServerOption {
	return func(s *Server) { s.loginLimiter = NewAuthFailureLimiter(cfg) }
}

// WithLogger sets the logger for request logs.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new API server with the given dependencies.
// Call Close to release the rate limiter when the server is not started.
func NewServer(addr string, health app.HealthUsecase, opts ...ServerOption) *Server {
	mux := http.NewServeMux()
	s := &Server{
		mux:          mux,
		health:       health,
		limiter:      NewRateLimiter(DefaultRateLimiterConfig()),
		loginLimiter: NewAuthFailureLimiter(DefaultAuthFailureLimiterConfig()),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()

	s.handler = requestLogMiddleware(s.logger, s.metrics)(
		securityHeadersMiddleware(
			corsMiddleware(CORSConfig{AllowedOrigins: s.allowedOrigins})(mux),
		),
	)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      0, // SSE connections are long-lived
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	public := s.limiter.Middleware

	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	if s.scans != nil {
		s.mux.HandleFunc("GET /api/last-scan-result", s.handleLastScanResult)
	}

	if s.rooms != nil {
		// /api/rooms/code/{code} and /api/rooms/{id}/stats overlap, so one
		// pattern serves both.
		s.mux.HandleFunc("GET /api/rooms/{ref}/{sub}", s.handleRoomSubresource)
	}

	if s.guests != nil {
		s.mux.Handle("POST /api/guests", public(http.HandlerFunc(s.handleRegisterGuest)))
		s.mux.Handle("POST /api/guests/scan", public(http.HandlerFunc(s.handleScan)))
		s.mux.HandleFunc("GET /api/rooms/code/{code}/guests", s.handleRoomGuestsByCode)
	}

	if s.auth == nil {
		return
	}

	s.mux.Handle("POST /api/auth/login", public(s.loginLimiter.Middleware(http.HandlerFunc(s.handleLogin))))

	admin := authMiddleware(s.auth, false)
	s.mux.Handle("GET /api/auth/validate", admin(http.HandlerFunc(s.handleValidate)))

	if s.rooms != nil {
		s.mux.Handle("GET /api/rooms", admin(http.HandlerFunc(s.handleListRooms)))
		s.mux.Handle("POST /api/rooms", admin(http.HandlerFunc(s.handleCreateRoom)))
		s.mux.Handle("GET /api/rooms/{id}", admin(http.HandlerFunc(s.handleGetRoom)))
		s.mux.Handle("DELETE /api/rooms/{id}", admin(http.HandlerFunc(s.handleDeleteRoom)))
		s.mux.Handle("POST /api/rooms/{id}/timeout-all", admin(http.HandlerFunc(s.handleTimeOutAll)))
	}

	if s.guests != nil {
		s.mux.Handle("GET /api/guests", admin(http.HandlerFunc(s.handleListGuests)))
		s.mux.Handle("PUT /api/guests/{id}/timein", admin(http.HandlerFunc(s.handleTimeIn)))
		s.mux.Handle("PUT /api/guests/{id}/timeout", admin(http.HandlerFunc(s.handleTimeOut)))
		s.mux.Handle("GET /api/guests/{id}/state", admin(http.HandlerFunc(s.handleGuestState)))
		s.mux.Handle("GET /api/guests/{id}/events", admin(http.HandlerFunc(s.handleGuestEvents)))
		s.mux.Handle("DELETE /api/guests/{id}", admin(http.HandlerFunc(s.handleDeleteGuest)))
	}

	if s.cfg != nil {
		s.mux.Handle("GET /api/config", admin(http.HandlerFunc(s.handleGetConfig)))
		s.mux.Handle("PUT /api/config", admin(http.HandlerFunc(s.handlePutConfig)))
	}

	if s.hub != nil {
		s.mux.Handle("GET /api/stream", authMiddleware(s.auth, true)(http.HandlerFunc(s.handleStream)))
	}
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	result, err := s.health.Handle(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and stops the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.Close()
	return s.httpServer.Shutdown(ctx)
}

// Close stops background goroutines owned by the server.
func (s *Server) Close() {
	s.limiter.Stop()
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
