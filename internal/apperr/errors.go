package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping and logging.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindUnauthorized
	KindRateLimited
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error is the typed error returned by services and stores.
// Message is always safe to show to the caller, except for Persistence
// errors whose details stay in Err.
type Error struct {
	Kind    Kind
	Message string
	// MaxAllowed is set on cap violations so clients can show the limit.
	MaxAllowed int
	Err        error
}

// Sentinels for errors.Is.
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrRateLimited  = &Error{Kind: KindRateLimited}
	ErrPersistence  = &Error{Kind: KindPersistence}
)

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Validation builds a user-facing validation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// CapExceeded reports a headcount above the invitation's limit.
func CapExceeded(max int) *Error {
	return &Error{
		Kind:       KindValidation,
		Message:    fmt.Sprintf("at most %d attendees are allowed for this invitation", max),
		MaxAllowed: max,
	}
}

func NotFound(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Message: "too many requests, please try again shortly"}
}

// Persistence wraps a store failure. op names the failed operation.
func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: op, Err: err}
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// MaxAllowedOf returns the cap carried by a cap violation, if any.
func MaxAllowedOf(err error) (int, bool) {
	var e *Error
	if errors.As(err, &e) && e.MaxAllowed > 0 {
		return e.MaxAllowed, true
	}
	return 0, false
}
