package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/graaaaa/roomcheck/internal/lib/logger/sl"
)

// Default serial settings and buffer sizes.
const (
	DefaultBaudRate        = 115200
	DefaultLineBufferSize  = 16
	DefaultErrorBufferSize = 16

	maxLineLength = 4096
)

// USB vendor ids of the boards the scanner firmware runs on.
var knownVendorIDs = []string{
	"2341", // Arduino
	"1a86", // WCH CH340
	"0403", // FTDI
}

// ErrNoSerialPort is reported when no serial port is available.
var ErrNoSerialPort = errors.New("no serial ports found")

// SerialSource implements LineSource over a serial port. It reconnects
// with backoff when the port cannot be opened or a read fails.
type SerialSource struct {
	portName        string // empty means auto-detect
	baudRate        int
	logger          *slog.Logger
	backoff         *BackoffCalculator
	lineBufferSize  int
	errorBufferSize int

	open  func(name string, mode *serial.Mode) (io.ReadCloser, error)
	ports func() ([]*enumerator.PortDetails, error)
	sleep func(ctx context.Context, d time.Duration) bool
}

// SourceOption configures SerialSource.
type SourceOption func(*SerialSource)

// WithPortName pins the serial port instead of auto-detecting it.
func WithPortName(name string) SourceOption {
	return func(s *SerialSource) { s.portName = name }
}

// WithBaudRate sets the baud rate. Non-positive values are ignored.
func WithBaudRate(baud int) SourceOption {
	return func(s *SerialSource) {
		if baud > 0 {
			s.baudRate = baud
		}
	}
}

// WithSourceLogger sets the logger for the source.
// If logger is nil, it is ignored and the default logger is retained.
func WithSourceLogger(logger *slog.Logger) SourceOption {
	return func(s *SerialSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBackoff sets the reconnect backoff.
func WithBackoff(b *BackoffCalculator) SourceOption {
	return func(s *SerialSource) {
		if b != nil {
			s.backoff = b
		}
	}
}

// NewSerialSource creates a new SerialSource.
func NewSerialSource(opts ...SourceOption) *SerialSource {
	s := &SerialSource{
		baudRate:        DefaultBaudRate,
		logger:          slog.Default(),
		backoff:         NewBackoffCalculator(DefaultBackoffConfig),
		lineBufferSize:  DefaultLineBufferSize,
		errorBufferSize: DefaultErrorBufferSize,
		open:            openSerial,
		ports:           enumerator.GetDetailedPortsList,
		sleep:           sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func openSerial(name string, mode *serial.Mode) (io.ReadCloser, error) {
	return serial.Open(name, mode)
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Start begins reading lines and returns line/error channels.
// Both channels close when ctx is cancelled.
func (s *SerialSource) Start(ctx context.Context) (<-chan string, <-chan error, error) {
	lineCh := make(chan string, s.lineBufferSize)
	errCh := make(chan error, s.errorBufferSize)

	go func() {
		defer close(lineCh)
		defer close(errCh)

		var droppedErrors int64
		defer func() {
			if droppedErrors > 0 {
				s.logger.Warn("errors dropped due to full buffer", "count", droppedErrors)
			}
		}()

		report := func(err error) {
			select {
			case errCh <- err:
			default:
				droppedErrors++
			}
		}

		attempt := 0
		for ctx.Err() == nil {
			connected, err := s.session(ctx, lineCh)
			if ctx.Err() != nil {
				return
			}
			if connected {
				attempt = 0
			}
			if err != nil {
				report(err)
			}

			delay := s.backoff.Calculate(attempt)
			s.logger.Info("serial port reconnecting", "delay", delay, "attempt", attempt+1)
			attempt++
			if !s.sleep(ctx, delay) {
				return
			}
		}
	}()

	return lineCh, errCh, nil
}

// session opens the port and forwards lines until the port fails or ctx
// ends. connected reports whether the port was opened.
func (s *SerialSource) session(ctx context.Context, lines chan<- string) (connected bool, err error) {
	name, err := s.resolvePort()
	if err != nil {
		return false, err
	}

	port, err := s.open(name, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return false, fmt.Errorf("open %s: %w", name, err)
	}
	s.logger.Info("serial port connected", "port", name, "baud", s.baudRate)

	// A blocked Read only returns once the port is closed.
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer func() {
		if stop() {
			port.Close()
		}
	}()

	r := bufio.NewReaderSize(port, maxLineLength)
	for {
		line, truncated, err := readLine(r)
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			if errors.Is(err, io.EOF) {
				return true, fmt.Errorf("read %s: %w", name, io.ErrUnexpectedEOF)
			}
			s.logger.Warn("serial read failed", "port", name, sl.Err(err))
			return true, fmt.Errorf("read %s: %w", name, err)
		}
		if truncated {
			s.logger.Warn("serial line too long, truncated", "port", name, "max", maxLineLength)
			line = TruncatedPrefix + line
		}
		select {
		case lines <- line:
		case <-ctx.Done():
			return true, nil
		}
	}
}

// readLine returns the next line without its LF or CRLF ending. A line that
// does not fit in r's buffer is cut to the buffer size and the rest of it
// is discarded. A final line without an ending is returned before io.EOF.
func readLine(r *bufio.Reader) (line string, truncated bool, err error) {
	b, err := r.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		line = string(b)
		for errors.Is(err, bufio.ErrBufferFull) {
			_, err = r.ReadSlice('\n')
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", false, err
		}
		return line, true, nil
	}
	if err != nil && (len(b) == 0 || !errors.Is(err, io.EOF)) {
		return "", false, err
	}
	line = strings.TrimSuffix(string(b), "\n")
	return strings.TrimSuffix(line, "\r"), false, nil
}

// resolvePort returns the configured port or auto-detects one.
func (s *SerialSource) resolvePort() (string, error) {
	if s.portName != "" {
		return s.portName, nil
	}
	details, err := s.ports()
	if err != nil {
		return "", fmt.Errorf("list serial ports: %w", err)
	}
	for _, d := range details {
		s.logger.Debug("serial port found",
			"port", d.Name,
			"usb", d.IsUSB,
			"vid", d.VID,
			"product", d.Product,
		)
	}
	name, ok := SelectPort(details)
	if !ok {
		return "", ErrNoSerialPort
	}
	return name, nil
}

// SelectPort picks the scanner port: the first USB port from a known
// board vendor, else the first port listed.
func SelectPort(details []*enumerator.PortDetails) (string, bool) {
	if len(details) == 0 {
		return "", false
	}
	for _, d := range details {
		if d.IsUSB && isKnownVendor(d) {
			return d.Name, true
		}
	}
	return details[0].Name, true
}

func isKnownVendor(d *enumerator.PortDetails) bool {
	for _, vid := range knownVendorIDs {
		if strings.EqualFold(d.VID, vid) {
			return true
		}
	}
	product := strings.ToLower(d.Product)
	return strings.Contains(product, "arduino") ||
		strings.Contains(product, "ch340") ||
		strings.Contains(product, "ftdi")
}
