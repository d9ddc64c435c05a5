package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/oauth2"

	"reqdash/internal/service"
)

// storedSession is the session.json layout.
type storedSession struct {
	Token *oauth2.Token `json:"token"`
	User  storedUser    `json:"user"`
}

type storedUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (s *storedSession) session() service.Session {
	return service.Session{UserID: s.User.ID, Email: s.User.Email, ExpiresAt: s.Token.Expiry}
}

// sessionStore persists the session in the config directory.
type sessionStore struct {
	dir  string
	path string
}

// load returns nil, nil when no session is stored.
func (s *sessionStore) load() (*storedSession, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var ss storedSession
	if err := json.Unmarshal(data, &ss); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	if ss.Token == nil || ss.Token.AccessToken == "" || ss.User.ID == "" {
		return nil, nil
	}
	return &ss, nil
}

// save writes the session with mode 0600.
func (s *sessionStore) save(ss *storedSession) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(ss, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

func (s *sessionStore) remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// tokenResponse is returned by the token endpoint and, when the project
// confirms sign-ups automatically, by the signup endpoint. Without
// auto-confirm the signup endpoint returns the bare user object.
type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int64      `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	RefreshToken string     `json:"refresh_token"`
	User         storedUser `json:"user"`

	// bare user object fields
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (c *Client) toStored(tr tokenResponse) *storedSession {
	tok := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: tr.RefreshToken,
	}
	switch {
	case tr.ExpiresAt > 0:
		tok.Expiry = time.Unix(tr.ExpiresAt, 0)
	case tr.ExpiresIn > 0:
		tok.Expiry = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return &storedSession{Token: tok, User: tr.User}
}

func (c *Client) expired(tok *oauth2.Token) bool {
	return !tok.Expiry.IsZero() && !c.now().Add(expiryMargin).Before(tok.Expiry)
}

func (c *Client) anonHeader() http.Header {
	return http.Header{"Authorization": {"Bearer " + c.anonKey}}
}

// grant calls the token endpoint.
func (c *Client) grant(ctx context.Context, grantType string, body any) (*storedSession, error) {
	var tr tokenResponse
	q := url.Values{"grant_type": {grantType}}
	if err := c.call(ctx, c.httpClient, http.MethodPost, "/auth/v1/token", q, body, &tr, c.anonHeader(), service.KindAuth); err != nil {
		return nil, err
	}
	if tr.AccessToken == "" || tr.User.ID == "" {
		return nil, service.AuthError("auth server returned no session")
	}
	return c.toStored(tr), nil
}

// current returns the stored session, refreshing it when it is about to
// expire. A rejected refresh clears the session and notifies subscribers.
func (c *Client) current(ctx context.Context) (*storedSession, error) {
	ss, err := c.store.load()
	if err != nil {
		return nil, err
	}
	if ss == nil {
		return nil, service.ErrNoSession
	}
	if !c.expired(ss.Token) {
		return ss, nil
	}
	if ss.Token.RefreshToken == "" {
		return nil, c.dropSession("expired session without refresh token")
	}

	c.logger.Debug("refreshing session", "user", ss.User.ID)
	fresh, err := c.grant(ctx, "refresh_token", map[string]string{"refresh_token": ss.Token.RefreshToken})
	if err != nil {
		if service.IsAuth(err) {
			return nil, c.dropSession(service.Message(err))
		}
		return nil, err
	}
	if err := c.store.save(fresh); err != nil {
		return nil, err
	}
	sess := fresh.session()
	c.notify(service.SessionEvent{Kind: service.EventTokenRefreshed, Session: &sess})
	return fresh, nil
}

func (c *Client) dropSession(reason string) error {
	c.logger.Debug("session dropped", "reason", reason)
	c.setLastUID("")
	if err := c.store.remove(); err != nil {
		return err
	}
	c.resetTokens()
	c.notify(service.SessionEvent{Kind: service.EventSignedOut})
	return service.ErrNoSession
}

// sessionTokenSource feeds the stored access token to oauth2.Transport.
type sessionTokenSource struct {
	c *Client
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), APITimeout)
	defer cancel()
	ss, err := s.c.current(ctx)
	if err != nil {
		return nil, err
	}
	tok := *ss.Token
	if tok.TokenType == "" {
		tok.TokenType = "bearer"
	}
	// Let ReuseTokenSource come back for a refresh before the backend
	// starts rejecting the token.
	if !tok.Expiry.IsZero() {
		tok.Expiry = tok.Expiry.Add(-expiryMargin)
	}
	return &tok, nil
}

// Session implements service.Authenticator.
func (c *Client) Session(ctx context.Context) (service.Session, error) {
	ss, err := c.current(ctx)
	if err != nil {
		return service.Session{}, err
	}
	return ss.session(), nil
}

// SignIn implements service.Authenticator.
func (c *Client) SignIn(ctx context.Context, creds service.Credentials) (service.Session, error) {
	ss, err := c.grant(ctx, "password", map[string]string{"email": creds.Email, "password": creds.Password})
	if err != nil {
		return service.Session{}, err
	}
	return c.establish(ss)
}

// SignUp implements service.Authenticator.
// Returns service.ErrNoSession when the project requires email confirmation.
func (c *Client) SignUp(ctx context.Context, creds service.Credentials) (service.Session, error) {
	var tr tokenResponse
	body := map[string]string{"email": creds.Email, "password": creds.Password}
	if err := c.call(ctx, c.httpClient, http.MethodPost, "/auth/v1/signup", nil, body, &tr, c.anonHeader(), service.KindAuth); err != nil {
		return service.Session{}, err
	}
	if tr.AccessToken == "" {
		c.logger.Debug("sign-up awaiting confirmation", "user", tr.ID)
		return service.Session{}, service.ErrNoSession
	}
	return c.establish(c.toStored(tr))
}

func (c *Client) establish(ss *storedSession) (service.Session, error) {
	c.setLastUID(ss.User.ID)
	if err := c.store.save(ss); err != nil {
		return service.Session{}, err
	}
	c.resetTokens()
	sess := ss.session()
	c.notify(service.SessionEvent{Kind: service.EventSignedIn, Session: &sess})
	return sess, nil
}

// SignOut implements service.Authenticator.
// The local session is removed unless the server could not be reached.
// An unreadable session file is removed without calling the server.
func (c *Client) SignOut(ctx context.Context) error {
	ss, err := c.store.load()
	if err != nil {
		if err := c.dropSession("unreadable session file"); !errors.Is(err, service.ErrNoSession) {
			return err
		}
		return nil
	}
	if ss == nil {
		return service.ErrNoSession
	}
	header := http.Header{"Authorization": {"Bearer " + ss.Token.AccessToken}}
	err = c.call(ctx, c.httpClient, http.MethodPost, "/auth/v1/logout", nil, nil, nil, header, service.KindAuth)
	if err != nil {
		var se *service.Error
		gone := errors.As(err, &se) && (se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden || se.Status == http.StatusNotFound)
		if !gone {
			return err
		}
	}
	c.setLastUID("")
	if err := c.store.remove(); err != nil {
		return err
	}
	c.resetTokens()
	c.notify(service.SessionEvent{Kind: service.EventSignedOut})
	return nil
}

func (c *Client) setLastUID(uid string) {
	c.mu.Lock()
	c.lastUID = uid
	c.mu.Unlock()
}

// Subscribe implements service.Authenticator.
// While anyone is subscribed, the session file is watched so that a
// sign-out from another process ends this session too.
func (c *Client) Subscribe(fn func(service.SessionEvent)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subs) == 0 {
		c.startWatchLocked()
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[id]; !ok {
			return
		}
		delete(c.subs, id)
		if len(c.subs) == 0 && c.watcher != nil {
			c.watcher.Close()
			c.watcher = nil
		}
	}, nil
}

func (c *Client) notify(ev service.SessionEvent) {
	c.mu.Lock()
	fns := make([]func(service.SessionEvent), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (c *Client) startWatchLocked() {
	if ss, _ := c.store.load(); ss != nil {
		c.lastUID = ss.User.ID
	}
	if err := os.MkdirAll(c.store.dir, 0700); err != nil {
		c.logger.Debug("session watch disabled", "error", err)
		return
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		c.logger.Debug("session watch disabled", "error", err)
		return
	}
	if err := w.Add(c.store.dir); err != nil {
		w.Close()
		c.logger.Debug("session watch disabled", "error", err)
		return
	}
	c.watcher = w
	go c.watch(w)
}

func (c *Client) watch(w *fsnotify.Watcher) {
	target := filepath.Clean(c.store.path)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			c.sessionFileChanged()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.logger.Debug("session watch error", "error", err)
		}
	}
}

// sessionFileChanged compares the stored user with the last one seen and
// notifies subscribers of a sign-out or a sign-in as another user.
func (c *Client) sessionFileChanged() {
	ss, err := c.store.load()
	if err != nil {
		// Partially written; the next event carries the final state.
		return
	}
	c.mu.Lock()
	prev := c.lastUID
	uid := ""
	if ss != nil {
		uid = ss.User.ID
	}
	c.lastUID = uid
	c.mu.Unlock()

	switch {
	case uid == prev:
		return
	case uid == "":
		c.resetTokens()
		c.notify(service.SessionEvent{Kind: service.EventSignedOut})
	default:
		c.resetTokens()
		sess := ss.session()
		c.notify(service.SessionEvent{Kind: service.EventSignedIn, Session: &sess})
	}
}
