// Package supabase implements service.Service against a Supabase project:
// GoTrue for authentication and PostgREST for the requests table.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/oauth2"

	"reqdash/internal/config"
	"reqdash/internal/service"
)

const (
	// APITimeout is the timeout for API calls.
	APITimeout = 10 * time.Second

	// RequestsTable is the PostgREST resource holding request rows.
	RequestsTable = "requests"

	// expiryMargin refreshes a session this long before it actually expires.
	expiryMargin = 60 * time.Second
)

// Client implements service.Service using the Supabase REST APIs.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	store      *sessionStore
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	tokens  oauth2.TokenSource
	subs    map[int]func(service.SessionEvent)
	nextSub int
	watcher *fsnotify.Watcher
	lastUID string // user id last seen in the session file
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every call (for testing).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithClock sets the time source used for token expiry (for testing).
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the project configured in cfg.
// Requires url and anon_key to be set.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, service.DataError(fmt.Sprintf("supabase url not configured (set url in %s or REQDASH_URL)", cfg.ConfigPath()))
	}
	if cfg.AnonKey == "" {
		return nil, service.DataError(fmt.Sprintf("supabase anon key not configured (set anon_key in %s or REQDASH_ANON_KEY)", cfg.ConfigPath()))
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		httpClient: http.DefaultClient,
		store:      &sessionStore{dir: cfg.Dir, path: cfg.SessionPath()},
		logger:     cfg.Logger(),
		now:        time.Now,
		subs:       make(map[int]func(service.SessionEvent)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("backend", config.BackendSupabase)
	c.resetTokens()
	return c, nil
}

// resetTokens drops any cached access token. Called whenever the signed-in
// user may have changed.
func (c *Client) resetTokens() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = oauth2.ReuseTokenSource(nil, &sessionTokenSource{c: c})
}

// authorized returns an HTTP client that sends the session's bearer token.
func (c *Client) authorized() *http.Client {
	c.mu.Lock()
	src := c.tokens
	c.mu.Unlock()
	return &http.Client{
		Transport: &oauth2.Transport{Source: src, Base: c.httpClient.Transport},
		Timeout:   c.httpClient.Timeout,
	}
}

// call performs one HTTP request and decodes a JSON response into out.
// kind classifies failures reported by the backend.
func (c *Client) call(ctx context.Context, hc *http.Client, method, path string, query url.Values, body any, out any, header http.Header, kind service.Kind) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := c.now()
	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Debug("call failed", "method", method, "path", path, "error", err)
		return wrapError(err)
	}
	defer resp.Body.Close()
	c.logger.Debug("call", "method", method, "path", path, "status", resp.StatusCode, "duration", c.now().Sub(start))

	if resp.StatusCode >= 300 {
		return decodeError(resp, kind)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &service.Error{Kind: service.KindData, Message: "invalid response from backend", Err: err}
	}
	return nil
}

// apiError covers the error shapes of PostgREST and GoTrue.
type apiError struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Message, e.Msg, e.ErrorDescription, e.ErrorCode} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// decodeError converts a non-2xx response into a *service.Error.
// 401 and 403 are always auth errors; 5xx are always data errors.
func decodeError(resp *http.Response, kind service.Kind) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var ae apiError
	_ = json.Unmarshal(data, &ae)
	msg := ae.text()
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = service.KindAuth
	case resp.StatusCode >= 500:
		kind = service.KindData
	}
	return &service.Error{Kind: kind, Message: msg, Status: resp.StatusCode}
}

// wrapError wraps transport errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, service.ErrNoSession) {
		return &service.Error{Kind: service.KindAuth, Message: "not logged in", Err: err}
	}
	var se *service.Error
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "context deadline exceeded") {
		return &service.Error{Kind: service.KindData, Message: "request timed out", Err: err}
	}
	return &service.Error{Kind: service.KindData, Message: err.Error(), Err: err}
}
