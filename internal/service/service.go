// Package service defines the backend-agnostic interface for request operations.
package service

import (
	"context"
	"io"
)

// Repository defines the request collection operations.
// Visibility is scoped to the caller by the backend; commands never
// filter by owner themselves.
type Repository interface {
	// List returns all of the caller's requests, newest first.
	// Returns an empty slice when there are none.
	List(ctx context.Context) ([]Request, error)

	// Create inserts a new request with status NEW owned by owner.
	Create(ctx context.Context, owner string, d Draft) error

	// UpdateStatus changes only the status of the request with the given id.
	// An id that does not resolve to one of the caller's requests is a no-op.
	UpdateStatus(ctx context.Context, id string, s Status) error

	// Delete removes the request with the given id.
	// An id that does not resolve to one of the caller's requests is a no-op.
	Delete(ctx context.Context, id string) error
}

// Authenticator defines the session operations of the auth provider.
type Authenticator interface {
	// Session returns the current session, or ErrNoSession.
	Session(ctx context.Context) (Session, error)

	// SignIn authenticates with email and password.
	SignIn(ctx context.Context, creds Credentials) (Session, error)

	// SignUp registers a new account. Returns ErrNoSession when the
	// provider requires confirmation before issuing a session.
	SignUp(ctx context.Context, creds Credentials) (Session, error)

	// SignOut ends the current session and removes any stored credentials.
	// Returns ErrNoSession when nothing was stored.
	SignOut(ctx context.Context) error

	// Subscribe registers fn for session-change notifications until the
	// returned function is called.
	Subscribe(fn func(SessionEvent)) (unsubscribe func(), err error)
}

// Service is a complete backend: auth plus the request collection.
type Service interface {
	Authenticator
	Repository
}

// BrowserSignIn is implemented by backends whose sign-in happens in a
// browser rather than with a password. Prompts go to w.
type BrowserSignIn interface {
	SignInWithBrowser(ctx context.Context, w io.Writer) (Session, error)
}
