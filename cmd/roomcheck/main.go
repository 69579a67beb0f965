// Package main provides the entry point for RoomCheck.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/graaaaa/roomcheck/internal/api"
	"github.com/graaaaa/roomcheck/internal/app"
	"github.com/graaaaa/roomcheck/internal/appinfo"
	"github.com/graaaaa/roomcheck/internal/config"
	"github.com/graaaaa/roomcheck/internal/domain"
	"github.com/graaaaa/roomcheck/internal/ingest"
	"github.com/graaaaa/roomcheck/internal/ledger"
	"github.com/graaaaa/roomcheck/internal/lib/logger/sl"
	"github.com/graaaaa/roomcheck/internal/metrics"
	"github.com/graaaaa/roomcheck/internal/singleinstance"
	"github.com/graaaaa/roomcheck/internal/store"
	"github.com/graaaaa/roomcheck/internal/version"
)

const shutdownTimeout = 5 * time.Second

var errAlreadyRunning = errors.New("another instance is already running")

func main() {
	if err := run(); err != nil {
		slog.Error("roomcheck exited", sl.Err(err))
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (corrupt config falls back to defaults with warning)
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Warn("config path unavailable, using defaults", sl.Err(err))
	}
	cfg = config.ApplyEnvOverrides(cfg)

	port := flag.Int("port", cfg.Port, "HTTP server port")
	flag.Parse()

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// 2. Single instance check; only one process may own the serial port
	dataDir, err := config.EnsureDataDir()
	if err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}
	release, ok, err := singleinstance.AcquireLock(filepath.Join(dataDir, appinfo.LockFileName))
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errAlreadyRunning
	}
	defer release()

	// 3. Signing secret (never overwrite a secrets file we failed to parse)
	secrets, secretsStatus, err := config.LoadSecrets()
	if err != nil {
		logger.Warn("secrets file unreadable", sl.Err(err))
	}
	updated, err := config.EnsureJWTSecret(&secrets)
	if err != nil {
		return err
	}
	if updated {
		if secretsStatus == config.SecretsFallback {
			logger.Warn("secrets file has errors; generated secret not saved, tokens will not survive a restart")
		} else if err := config.SaveSecrets(secrets); err != nil {
			return fmt.Errorf("save secrets: %w", err)
		}
	}

	// 4. Open SQLite store
	db, err := store.Open(filepath.Join(dataDir, appinfo.DatabaseFileName), store.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := db.Maintain(ctx); err != nil {
		logger.Warn("database maintenance failed", sl.Err(err))
	}

	// 5. Core services
	m := metrics.New()
	engine := ledger.New(db, ledger.WithLogger(logger), ledger.WithMetrics(m))
	slot := ingest.NewResultSlot()

	hub := api.NewHub(api.WithHubLogger(logger))
	go hub.Run()

	authService := app.NewAuthService(db, []byte(secrets.JWTSecret.Value()),
		app.WithTokenTTL(time.Duration(cfg.TokenTTLHours)*time.Hour),
		app.WithAuthMetrics(m),
		app.WithAuthLogger(logger),
	)
	if err := ensureAdmin(ctx, authService, dataDir, logger); err != nil {
		return err
	}

	// 6. Scanner ingestion
	ingestDone := make(chan struct{})
	if cfg.SerialEnabled {
		source := ingest.NewSerialSource(
			ingest.WithPortName(cfg.SerialPort),
			ingest.WithBaudRate(cfg.SerialBaud),
			ingest.WithSourceLogger(logger),
		)
		ingester := ingest.New(source, engine, db, slot,
			ingest.WithLogger(logger),
			ingest.WithMetrics(m),
			ingest.WithResultHook(func(r domain.ScanResult) {
				hub.PublishScanResult(r)
			}),
		)
		go func() {
			defer close(ingestDone)
			if err := ingester.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("ingester stopped", sl.Err(err))
			}
		}()
	} else {
		close(ingestDone)
		logger.Info("serial scanner disabled")
	}

	// 7. HTTP server
	host := "127.0.0.1"
	if cfg.LanEnabled {
		host = "0.0.0.0"
	}
	addr := fmt.Sprintf("%s:%d", host, *port)

	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	server := api.NewServer(addr, app.HealthService{Version: version.String(), DB: db},
		api.WithRooms(app.NewRoomService(db, engine, logger)),
		api.WithGuests(app.NewGuestService(db, engine,
			app.WithPublisher(hub),
			app.WithGuestLogger(logger),
		)),
		api.WithScanResults(app.ScanResultService{Buffer: slot}),
		api.WithAuth(authService),
		api.WithConfig(app.NewConfigService(configPath)),
		api.WithHub(hub),
		api.WithMetrics(m),
		api.WithAllowedOrigins(cfg.AllowedOrigins),
		api.WithLogger(logger),
	)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting "+appinfo.AppName, "version", version.String(), "addr", addr)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case sig := <-done:
		logger.Info("shutting down", "signal", sig.String())
	case serveErr = <-errCh:
		logger.Error("server failed", sl.Err(serveErr))
	}

	// Stop the scanner first, then close the hub so open SSE streams
	// return and Shutdown is not left waiting on them. The store closes
	// last via defer.
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	select {
	case <-ingestDone:
	case <-shutdownCtx.Done():
		logger.Warn("ingester did not stop in time")
	}

	hub.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", sl.Err(err))
	}
	logger.Info("server stopped")
	return serveErr
}

// ensureAdmin creates the first admin account and writes its password to
// the data directory rather than the log.
func ensureAdmin(ctx context.Context, svc *app.AuthService, dataDir string, logger *slog.Logger) error {
	password, created, err := svc.EnsureInitialAdmin(ctx)
	if err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	if !created {
		return nil
	}

	path, err := config.WritePasswordFile(dataDir, app.DefaultAdminUsername, password)
	if err != nil {
		logger.Warn("failed to write password file", sl.Err(err))
		fmt.Fprintf(os.Stderr, "Initial admin credentials\nUsername: %s\nPassword: %s\n", app.DefaultAdminUsername, password)
		return nil
	}
	logger.Warn("initial admin created; delete the password file after saving it",
		"username", app.DefaultAdminUsername,
		"path", path,
	)
	return nil
}
