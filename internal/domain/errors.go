package domain

import "errors"

// Error kinds. Every domain error unwraps to exactly one of these.
// Anything that does not is treated as an internal failure.
var (
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrValidationFailed   = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
)

// kindError is a domain error with a fixed message and a kind.
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func newKindError(kind error, msg string) error {
	return &kindError{msg: msg, kind: kind}
}

// Specific errors.
var (
	ErrGuestNotFound = newKindError(ErrNotFound, "guest not found")
	ErrRoomNotFound  = newKindError(ErrNotFound, "room not found")
	ErrAdminNotFound = newKindError(ErrNotFound, "admin not found")

	ErrAlreadyTimedIn      = newKindError(ErrPreconditionFailed, "time-in already recorded for this guest")
	ErrAlreadyTimedOut     = newKindError(ErrPreconditionFailed, "guest has already been logged out")
	ErrTimeOutBeforeTimeIn = newKindError(ErrPreconditionFailed, "cannot record time-out before time-in")

	ErrGuestDetailMismatch = newKindError(ErrValidationFailed, "guest details do not match")
	ErrInvalidScanPayload  = newKindError(ErrValidationFailed, "invalid QR code format")

	ErrDuplicateRoomCode = newKindError(ErrConflict, "room code already exists")
)

// Kind returns the taxonomy kind of err, or nil for internal errors.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrPreconditionFailed, ErrValidationFailed, ErrConflict} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Validation wraps a free-form validation message as ErrValidationFailed.
func Validation(msg string) error {
	return newKindError(ErrValidationFailed, msg)
}
