package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/graaaaa/roomcheck/internal/domain"
	"github.com/graaaaa/roomcheck/internal/ledger"
	"github.com/graaaaa/roomcheck/internal/lib/logger/sl"
	"github.com/graaaaa/roomcheck/internal/metrics"
)

// Scan result messages.
const (
	MsgTimeInRecorded  = "Time-in recorded successfully"
	MsgGuestNotFound   = "Guest not found"
	MsgDetailMismatch  = "Guest details do not match"
	MsgAlreadyTimedIn  = "Time-in already recorded for this guest"
	MsgInvalidPayload  = "Invalid QR code format"
	MsgProcessingError = "Error processing scan"
)

// Ledger is the ledger operation a hardware scan drives.
type Ledger interface {
	ProcessScan(ctx context.Context, c ledger.GuestClaim) (domain.Event, domain.Guest, error)
}

// FailureStore records scanner lines that could not be used.
type FailureStore interface {
	InsertScanFailure(ctx context.Context, rawLine, errorMsg string) (bool, error)
}

// Ingester turns scanner lines into ledger time-ins and buffers the
// outcome of each scan in a ResultSlot.
type Ingester struct {
	source   LineSource
	ledger   Ledger
	failures FailureStore
	slot     *ResultSlot
	logger   *slog.Logger
	clock    Clock
	metrics  *metrics.Metrics
	onResult func(domain.ScanResult)
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets the logger for the Ingester.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingester) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithClock sets the clock for the Ingester (for testing).
func WithClock(clock Clock) Option {
	return func(i *Ingester) {
		if clock != nil {
			i.clock = clock
		}
	}
}

// WithMetrics enables Prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Ingester) { i.metrics = m }
}

// WithResultHook registers fn to be called with every scan result after
// it is stored in the slot. fn must not block.
func WithResultHook(fn func(domain.ScanResult)) Option {
	return func(i *Ingester) { i.onResult = fn }
}

// New creates a new Ingester.
func New(source LineSource, l Ledger, failures FailureStore, slot *ResultSlot, opts ...Option) *Ingester {
	i := &Ingester{
		source:   source,
		ledger:   l,
		failures: failures,
		slot:     slot,
		logger:   slog.Default(),
		clock:    DefaultClock,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run starts the ingestion loop. Blocks until ctx is cancelled or source closes.
// Returns ctx.Err() on context cancellation, nil on clean source shutdown.
func (i *Ingester) Run(ctx context.Context) error {
	lines, errs, err := i.source.Start(ctx)
	if err != nil {
		return err
	}
	if lines == nil || errs == nil {
		return errors.New("source returned nil channel")
	}

	i.logger.Info("scan ingestion started")
	defer i.logger.Info("scan ingestion stopped")

	// nil each channel when closed, exit when both are nil.
	linesCh := lines
	errsCh := errs

	for linesCh != nil || errsCh != nil {
		select {
		case line, ok := <-linesCh:
			if !ok {
				linesCh = nil
				continue
			}
			i.HandleLine(ctx, line)
		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			i.logger.Warn("scanner source error", sl.Err(err))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

// HandleLine dispatches one raw scanner line.
func (i *Ingester) HandleLine(ctx context.Context, raw string) {
	line := strings.TrimSpace(raw)
	switch {
	case line == "":
		return
	case isReadyMarker(line):
		i.logger.Info("scanner status", "marker", line)
	case strings.HasPrefix(line, TruncatedPrefix):
		i.recordFailure(ctx, strings.TrimPrefix(line, TruncatedPrefix), "scanner line too long")
	case strings.HasPrefix(line, ScanPrefix):
		i.publish(i.process(ctx, strings.TrimPrefix(line, ScanPrefix)))
	default:
		i.recordFailure(ctx, line, "unrecognized scanner line")
	}
}

// process runs one scan through parse, verify and commit. It never fails;
// every outcome becomes a result.
func (i *Ingester) process(ctx context.Context, payload string) domain.ScanResult {
	res := domain.ScanResult{
		ID: uuid.NewString(),
		At: i.clock.Now().UTC(),
	}

	claim, err := ParsePayload(payload)
	if err != nil {
		i.logger.Info("scan rejected", "reason", "invalid payload", sl.Err(err))
		res.Status = domain.ScanStatusError
		res.Message = MsgInvalidPayload
		return res
	}

	ev, guest, err := i.ledger.ProcessScan(ctx, claim)
	if err != nil {
		res.Status = domain.ScanStatusError
		res.Message = messageFor(err)
		if domain.Kind(err) == nil {
			i.logger.Error("scan failed", "guest_id", claim.ID, sl.Err(err))
		} else {
			i.logger.Info("scan rejected", "guest_id", claim.ID, "reason", res.Message)
		}
		return res
	}

	res.Status = domain.ScanStatusSuccess
	res.Message = MsgTimeInRecorded
	res.Guest = guest.Summary()
	res.Event = &ev
	i.logger.Info("scan recorded", "guest_id", guest.ID, "room_id", guest.RoomID)
	return res
}

func (i *Ingester) publish(res domain.ScanResult) {
	i.slot.Put(res)
	i.metrics.ScanResult(res.Status)
	if i.onResult != nil {
		i.onResult(res)
	}
}

func (i *Ingester) recordFailure(ctx context.Context, line, reason string) {
	inserted, err := i.failures.InsertScanFailure(ctx, line, reason)
	if err != nil {
		i.logger.Error("failed to insert scan failure", sl.Err(err))
		return
	}
	if inserted {
		i.logger.Debug("scan failure recorded", "line_length", len(line))
	}
}

// messageFor maps a ledger error to the message shown to the operator.
func messageFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrGuestNotFound):
		return MsgGuestNotFound
	case errors.Is(err, domain.ErrGuestDetailMismatch):
		return MsgDetailMismatch
	case errors.Is(err, domain.ErrAlreadyTimedIn):
		return MsgAlreadyTimedIn
	case errors.Is(err, domain.ErrInvalidScanPayload):
		return MsgInvalidPayload
	default:
		return MsgProcessingError
	}
}
