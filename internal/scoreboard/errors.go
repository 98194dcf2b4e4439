package scoreboard

import "errors"

// Error classes. Use errors.Is to classify an error returned by any layer.
var (
	ErrValidation    = errors.New("invalid request")
	ErrConflict      = errors.New("conflict")
	ErrNoActiveMatch = errors.New("no active match found")
	ErrStorage       = errors.New("storage failure")
)

// ErrAlreadyActive is returned when creating a match while another is active.
var ErrAlreadyActive = Conflict("there is already an active match, end the current match before starting a new one")

// Error carries a client-facing message and the class it belongs to.
type Error struct {
	class error
	msg   string
	cause error
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool { return target == e.class }

func Invalid(msg string) error {
	return &Error{class: ErrValidation, msg: msg}
}

func Conflict(msg string) error {
	return &Error{class: ErrConflict, msg: msg}
}

// Storage wraps a backing store failure.
func Storage(op string, err error) error {
	return &Error{class: ErrStorage, msg: op + ": " + err.Error(), cause: err}
}
