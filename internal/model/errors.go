package model

import "errors"

// ErrorKind classifies coordinator errors
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1 // Missing or malformed input
	KindNotFound                        // Unknown session or player
	KindAuth                            // Wrong password or not permitted
	KindConflict                        // Duplicate ID or wrong phase
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a classified, recoverable coordinator error
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the kind of err, or 0 if it is not a coordinator error
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Common errors used across the application
var (
	// Validation errors
	ErrMissingFields   = newError(KindValidation, "missing required fields")
	ErrMissingPassword = newError(KindValidation, "missing password")
	ErrMissingDuration = newError(KindValidation, "missing duration")
	ErrInvalidFields   = newError(KindValidation, "invalid fields")
	ErrInvalidMessage  = newError(KindValidation, "invalid message")
	ErrUnknownEvent    = newError(KindValidation, "unknown event type")

	// Not found errors
	ErrSessionNotFound = newError(KindNotFound, "session not found")
	ErrPlayerNotFound  = newError(KindNotFound, "player not found")
	ErrSummaryNotFound = newError(KindNotFound, "session summary not found")

	// Auth errors
	ErrIncorrectPassword = newError(KindAuth, "incorrect password")
	ErrNotAdmin          = newError(KindAuth, "only the session admin can do that")
	ErrNotJoined         = newError(KindAuth, "not joined to a session")

	// Conflict errors
	ErrSessionExists  = newError(KindConflict, "session already exists")
	ErrAlreadyStarted = newError(KindConflict, "session already started")
	ErrSessionEnded   = newError(KindConflict, "session has ended")
	ErrNotPending     = newError(KindConflict, "session is not pending")
	ErrAutoStart      = newError(KindConflict, "session starts automatically when its countdown ends")
	ErrAlreadyJoined  = newError(KindConflict, "already joined to a session")
	ErrPlayerIDTaken  = newError(KindConflict, "display name clashes with another player in this session")
)
