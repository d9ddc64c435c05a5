// Package session gates protected views on an active backend session.
//
// A view activates a Gate when it starts. Activation either fails with
// service.ErrNoSession, which callers treat as a redirect to the login view,
// or yields a Scope that holds the session and a live subscription to
// session changes. The Scope must be closed when the view ends.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"reqdash/internal/service"
)

// Gate checks for a session and scopes a change subscription to a view.
type Gate struct {
	auth   service.Authenticator
	logger *slog.Logger
}

// NewGate creates a gate over auth. A nil logger discards output.
func NewGate(auth service.Authenticator, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gate{auth: auth, logger: logger}
}

// Activate returns a Scope for the current session.
// Returns service.ErrNoSession (possibly wrapped) when nobody is signed in.
func (g *Gate) Activate(ctx context.Context) (*Scope, error) {
	sess, err := g.auth.Session(ctx)
	if err != nil {
		if errors.Is(err, service.ErrNoSession) {
			g.logger.Debug("no session, redirecting to login")
			return nil, service.ErrNoSession
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.UserID == "" {
		return nil, service.ErrNoSession
	}

	s := &Scope{
		session: sess,
		ended:   make(chan struct{}),
		logger:  g.logger,
	}
	unsubscribe, err := g.auth.Subscribe(s.onEvent)
	if err != nil {
		return nil, fmt.Errorf("subscribe to session changes: %w", err)
	}
	s.unsubscribe = unsubscribe
	g.logger.Debug("session active", "user", sess.UserID)
	return s, nil
}

// Scope is an activated session plus its change subscription.
type Scope struct {
	session     service.Session
	unsubscribe func()
	logger      *slog.Logger

	mu        sync.Mutex
	ended     chan struct{}
	endedOnce sync.Once
	closeOnce sync.Once
}

// Session returns the session captured at activation.
func (s *Scope) Session() service.Session {
	return s.session
}

// UserID returns the signed-in user's identifier.
func (s *Scope) UserID() string {
	return s.session.UserID
}

// Ended is closed when a session-change notification reports that the
// session is gone. Views redirect to login when it fires.
func (s *Scope) Ended() <-chan struct{} {
	return s.ended
}

// Close releases the change subscription. Safe to call more than once.
func (s *Scope) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		unsubscribe := s.unsubscribe
		s.unsubscribe = nil
		s.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
	})
}

func (s *Scope) onEvent(ev service.SessionEvent) {
	if !ev.Ended() {
		if ev.Session != nil && ev.Session.UserID != "" && ev.Session.UserID != s.session.UserID {
			s.logger.Debug("session switched to another user", "user", ev.Session.UserID)
			s.end()
		}
		return
	}
	s.logger.Debug("session ended", "event", string(ev.Kind))
	s.end()
}

func (s *Scope) end() {
	s.endedOnce.Do(func() { close(s.ended) })
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying the scope.
func NewContext(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the scope carried by ctx, if any.
func FromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Scope)
	return s, ok && s != nil
}
