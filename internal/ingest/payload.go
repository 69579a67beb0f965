package ingest

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/graaaaa/roomcheck/internal/domain"
	"github.com/graaaaa/roomcheck/internal/ledger"
)

// Scanner line forms.
const (
	ScanPrefix = "QR_SCAN:"

	// TruncatedPrefix marks a line a LineSource had to cut short. Such
	// lines are recorded as failures and never processed as scans.
	TruncatedPrefix = "TRUNCATED:"

	markerArduinoReady = "ARDUINO_READY"
	markerUSBReady     = "USB_READY"
	markerScannerReady = "SCANNER_READY"
)

// textPayload matches the QR text printed at registration:
//
//	ID: 12, Name: Ana Cruz, Age: 30, Gender: Female
//
// Name is matched lazily so it may itself contain commas.
var textPayload = regexp.MustCompile(`^ID:\s*(\d+)\s*,\s*Name:\s*(.+?)\s*,\s*Age:\s*(\d+)\s*,\s*Gender:\s*(.+?)\s*$`)

type jsonPayload struct {
	ID     json.Number `json:"id"`
	Name   string      `json:"name"`
	Age    json.Number `json:"age"`
	Gender string      `json:"gender"`
}

// ParsePayload decodes a QR payload into a guest claim. It accepts the
// registration text form and a JSON object with id, name, age and gender.
// Errors wrap domain.ErrInvalidScanPayload.
func ParsePayload(payload string) (ledger.GuestClaim, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return ledger.GuestClaim{}, fmt.Errorf("%w: empty payload", domain.ErrInvalidScanPayload)
	}
	if strings.HasPrefix(payload, "{") {
		return parseJSONPayload(payload)
	}

	m := textPayload.FindStringSubmatch(payload)
	if m == nil {
		return ledger.GuestClaim{}, fmt.Errorf("%w: unrecognized payload", domain.ErrInvalidScanPayload)
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return ledger.GuestClaim{}, fmt.Errorf("%w: invalid id", domain.ErrInvalidScanPayload)
	}
	return ledger.GuestClaim{ID: id, Name: m[2], Age: m[3], Gender: m[4]}, nil
}

func parseJSONPayload(payload string) (ledger.GuestClaim, error) {
	var p jsonPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return ledger.GuestClaim{}, fmt.Errorf("%w: %v", domain.ErrInvalidScanPayload, err)
	}
	id, err := p.ID.Int64()
	if err != nil || id <= 0 {
		return ledger.GuestClaim{}, fmt.Errorf("%w: invalid id", domain.ErrInvalidScanPayload)
	}
	if p.Name == "" || p.Age == "" || p.Gender == "" {
		return ledger.GuestClaim{}, fmt.Errorf("%w: missing field", domain.ErrInvalidScanPayload)
	}
	return ledger.GuestClaim{ID: id, Name: p.Name, Age: p.Age.String(), Gender: p.Gender}, nil
}

// isReadyMarker reports whether line is a firmware readiness marker.
func isReadyMarker(line string) bool {
	switch line {
	case markerArduinoReady, markerUSBReady, markerScannerReady:
		return true
	}
	return false
}
