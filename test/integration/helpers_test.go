//go:build integration

// Package integration provides end-to-end tests for the RoomCheck API with
// every component wired the way the binary wires them.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/graaaaa/roomcheck/internal/api"
	"github.com/graaaaa/roomcheck/internal/app"
	"github.com/graaaaa/roomcheck/internal/domain"
	"github.com/graaaaa/roomcheck/internal/ingest"
	"github.com/graaaaa/roomcheck/internal/ledger"
	"github.com/graaaaa/roomcheck/internal/metrics"
	"github.com/graaaaa/roomcheck/internal/store"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!!")

// chanSource feeds scanner lines from a test.
type chanSource struct {
	lines chan string
}

func (s *chanSource) Start(ctx context.Context) (<-chan string, <-chan error, error) {
	out := make(chan string)
	errs := make(chan error)
	go func() {
		defer close(out)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			case l := <-s.lines:
				select {
				case out <- l:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, errs, nil
}

// TestApp holds all dependencies for integration tests.
type TestApp struct {
	Server   *httptest.Server
	Store    *store.Store
	Hub      *api.Hub
	Scanner  *chanSource
	Password string

	token string
}

// NewTestApp creates a test application with all dependencies wired up.
// Resources are released through t.Cleanup.
func NewTestApp(t *testing.T) *TestApp {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(filepath.Join(dir, "test.sqlite"), store.WithLogger(logger))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	m := metrics.New()
	engine := ledger.New(st, ledger.WithLogger(logger), ledger.WithMetrics(m))
	slot := ingest.NewResultSlot()

	hub := api.NewHub(api.WithHubLogger(logger))
	go hub.Run()

	authService := app.NewAuthService(st, testSecret, app.WithAuthMetrics(m), app.WithAuthLogger(logger))
	password, created, err := authService.EnsureInitialAdmin(context.Background())
	if err != nil || !created {
		t.Fatalf("EnsureInitialAdmin: created=%v err=%v", created, err)
	}

	scanner := &chanSource{lines: make(chan string)}
	ingester := ingest.New(scanner, engine, st, slot,
		ingest.WithLogger(logger),
		ingest.WithMetrics(m),
		ingest.WithResultHook(func(r domain.ScanResult) { hub.PublishScanResult(r) }),
	)
	ctx, cancel := context.WithCancel(context.Background())
	ingestDone := make(chan struct{})
	go func() {
		defer close(ingestDone)
		ingester.Run(ctx)
	}()

	server := api.NewServer("127.0.0.1:0", app.HealthService{Version: "it", DB: st},
		api.WithRooms(app.NewRoomService(st, engine, logger)),
		api.WithGuests(app.NewGuestService(st, engine, app.WithPublisher(hub), app.WithGuestLogger(logger))),
		api.WithScanResults(app.ScanResultService{Buffer: slot}),
		api.WithAuth(authService),
		api.WithConfig(app.NewConfigService(filepath.Join(dir, "config.json"))),
		api.WithHub(hub),
		api.WithMetrics(m),
		api.WithLogger(logger),
	)
	ts := httptest.NewServer(server.Handler())

	t.Cleanup(func() {
		cancel()
		<-ingestDone
		hub.Stop()
		ts.Close()
		server.Close()
		st.Close()
	})

	return &TestApp{Server: ts, Store: st, Hub: hub, Scanner: scanner, Password: password}
}

// URL returns the base URL of the test server.
func (a *TestApp) URL() string {
	return a.Server.URL
}

// Login authenticates as the initial admin and remembers the token.
func (a *TestApp) Login(t *testing.T) string {
	t.Helper()
	var resp app.LoginResponse
	status := a.Do(t, http.MethodPost, "/api/auth/login", app.LoginRequest{Username: app.DefaultAdminUsername, Password: a.Password}, &resp)
	if status != http.StatusOK {
		t.Fatalf("login: status %d", status)
	}
	a.token = resp.Token
	return resp.Token
}

// Do sends a JSON request, decoding the response into out when non-nil.
// The admin token is attached once Login has been called.
func (a *TestApp) Do(t *testing.T, method, path string, body, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.URL()+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// Feed sends one raw line through the fake scanner.
func (a *TestApp) Feed(t *testing.T, line string) {
	t.Helper()
	select {
	case a.Scanner.lines <- line:
	case <-time.After(2 * time.Second):
		t.Fatal("scanner line not consumed")
	}
}

// WaitScanResult polls the last-scan-result endpoint until a result appears.
func (a *TestApp) WaitScanResult(t *testing.T) domain.ScanResult {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var r *domain.ScanResult
		a.Do(t, http.MethodGet, "/api/last-scan-result", nil, &r)
		if r != nil {
			return *r
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no scan result")
	return domain.ScanResult{}
}
