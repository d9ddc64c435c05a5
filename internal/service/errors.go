package service

import (
	"context"
	"errors"
	"strings"
)

// ErrNoSession indicates there is no authenticated session.
// It is a redirect signal, not a failure to display.
var ErrNoSession = errors.New("no active session")

// Kind classifies a surfaced error.
type Kind int

const (
	// KindData covers validation failures and network/backend failures.
	KindData Kind = iota
	// KindAuth covers bad credentials, sign-up conflicts and expired sessions.
	KindAuth
)

func (k Kind) String() string {
	if k == KindAuth {
		return "auth"
	}
	return "data"
}

// Error is a failure reported by the backend or the form, carrying the
// single message that is shown to the user.
type Error struct {
	Kind    Kind
	Message string
	Status  int // HTTP status when known
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// AuthError returns an authentication error with the given message.
func AuthError(msg string) error {
	return &Error{Kind: KindAuth, Message: msg}
}

// DataError returns a data-operation error with the given message.
func DataError(msg string) error {
	return &Error{Kind: KindData, Message: msg}
}

// IsAuth reports whether err is an authentication error.
func IsAuth(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindAuth
}

// Message converts err into the plain-text line shown to the user.
// Returns "" for a nil error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "unknown error"
	}
	return msg
}
