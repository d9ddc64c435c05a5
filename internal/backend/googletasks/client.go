// Package googletasks implements the service.Service interface using Google Tasks API.
//
// Requests live as tasks in a dedicated task list. The fields Google Tasks
// has no column for are kept in a header line of the task notes.
package googletasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"reqdash/internal/config"
	"reqdash/internal/service"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// ListTitle is the title of the task list holding requests.
	ListTitle = "reqdash"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 10 * time.Second

	statusCompleted   = "completed"
	statusNeedsAction = "needsAction"
)

var errPasswordUnsupported = service.AuthError("the googletasks backend signs in through the browser (run: reqdash login)")

// Client implements service.Service using Google Tasks API.
// The API client is built on first use from the stored token.
type Client struct {
	cfg        *config.Config
	logger     *slog.Logger
	now        func() time.Time
	newService func(ctx context.Context) (*tasks.Service, error)

	mu      sync.Mutex
	svc     *tasks.Service
	owner   string // real ID of the default list, stable per account
	listID  string
	subs    map[int]func(service.SessionEvent)
	nextSub int
}

// New creates a Google Tasks client. Nothing is read until the first call;
// a missing token.json means nobody is signed in.
func New(cfg *config.Config) (*Client, error) {
	c := newClient(cfg)
	c.newService = c.serviceFromToken
	return c, nil
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(cfg *config.Config, httpClient *http.Client, opts ...option.ClientOption) *Client {
	c := newClient(cfg)
	c.newService = func(ctx context.Context) (*tasks.Service, error) {
		return tasks.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)...)
	}
	return c
}

func newClient(cfg *config.Config) *Client {
	return &Client{
		cfg:    cfg,
		logger: cfg.Logger().With("backend", config.BackendGoogleTasks),
		now:    time.Now,
		subs:   make(map[int]func(service.SessionEvent)),
	}
}

func (c *Client) oauthConfig() (*oauth2.Config, error) {
	clientJSON, err := os.ReadFile(c.cfg.OAuthClientPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, service.AuthError(fmt.Sprintf("oauth_client.json not found in %s", c.cfg.Dir))
		}
		return nil, fmt.Errorf("failed to read oauth_client.json: %w", err)
	}
	oauthConfig, err := google.ConfigFromJSON(clientJSON, tasks.TasksScope)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth_client.json: %w", err)
	}
	return oauthConfig, nil
}

func (c *Client) serviceFromToken(ctx context.Context) (*tasks.Service, error) {
	tokenData, err := os.ReadFile(c.cfg.TokenPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, service.ErrNoSession
		}
		return nil, fmt.Errorf("failed to read token.json: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil || token.RefreshToken == "" {
		c.logger.Debug("unusable token.json", "error", err)
		return nil, service.ErrNoSession
	}

	oauthConfig, err := c.oauthConfig()
	if err != nil {
		return nil, err
	}

	// The token source outlives the call that builds it, so it must not
	// inherit that call's deadline.
	tokenSource := oauthConfig.TokenSource(context.Background(), &token)
	httpClient := oauth2.NewClient(context.Background(), tokenSource)

	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	return svc, nil
}

func (c *Client) service(ctx context.Context) (*tasks.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.svc != nil {
		return c.svc, nil
	}
	svc, err := c.newService(ctx)
	if err != nil {
		return nil, err
	}
	c.svc = svc
	return svc, nil
}

// reset forgets everything derived from the current account.
func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.svc = nil
	c.owner = ""
	c.listID = ""
}

func (c *Client) ownerID(ctx context.Context, svc *tasks.Service) (string, error) {
	c.mu.Lock()
	owner := c.owner
	c.mu.Unlock()
	if owner != "" {
		return owner, nil
	}

	list, err := svc.Tasklists.Get(DefaultListID).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.owner = list.Id
	c.mu.Unlock()
	return list.Id, nil
}

// requestList returns the ID of the list titled ListTitle, creating it if
// the account has none.
func (c *Client) requestList(ctx context.Context, svc *tasks.Service) (string, error) {
	c.mu.Lock()
	id := c.listID
	c.mu.Unlock()
	if id != "" {
		return id, nil
	}

	err := svc.Tasklists.List().MaxResults(100).Pages(ctx, func(resp *tasks.TaskLists) error {
		for _, list := range resp.Items {
			if id == "" && strings.TrimSpace(list.Title) == ListTitle {
				id = list.Id
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if id == "" {
		list, err := svc.Tasklists.Insert(&tasks.TaskList{Title: ListTitle}).Context(ctx).Do()
		if err != nil {
			return "", err
		}
		c.logger.Debug("created request list", "id", list.Id)
		id = list.Id
	}

	c.mu.Lock()
	c.listID = id
	c.mu.Unlock()
	return id, nil
}

// prepare resolves everything a repository call needs.
func (c *Client) prepare(ctx context.Context) (svc *tasks.Service, owner, listID string, err error) {
	if svc, err = c.service(ctx); err != nil {
		return nil, "", "", err
	}
	if owner, err = c.ownerID(ctx, svc); err != nil {
		return nil, "", "", err
	}
	if listID, err = c.requestList(ctx, svc); err != nil {
		return nil, "", "", err
	}
	return svc, owner, listID, nil
}

// Session implements service.Authenticator.
// A missing, unusable or revoked token means nobody is signed in.
func (c *Client) Session(ctx context.Context) (service.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	svc, err := c.service(ctx)
	if err != nil {
		return service.Session{}, err
	}
	owner, err := c.ownerID(ctx, svc)
	if err != nil {
		err = wrapError(err)
		if service.IsAuth(err) {
			c.logger.Debug("stored token rejected", "error", err)
			return service.Session{}, service.ErrNoSession
		}
		return service.Session{}, err
	}
	return service.Session{UserID: owner}, nil
}

// SignIn implements service.Authenticator. Google accounts sign in
// through SignInWithBrowser only.
func (c *Client) SignIn(ctx context.Context, creds service.Credentials) (service.Session, error) {
	return service.Session{}, errPasswordUnsupported
}

// SignUp implements service.Authenticator.
func (c *Client) SignUp(ctx context.Context, creds service.Credentials) (service.Session, error) {
	return service.Session{}, errPasswordUnsupported
}

// SignOut implements service.Authenticator.
// Only token.json is removed; oauth_client.json stays.
func (c *Client) SignOut(ctx context.Context) error {
	err := os.Remove(c.cfg.TokenPath())
	if errors.Is(err, os.ErrNotExist) {
		c.reset()
		return service.ErrNoSession
	}
	if err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	c.reset()
	c.notify(service.SessionEvent{Kind: service.EventSignedOut})
	return nil
}

// Subscribe implements service.Authenticator.
func (c *Client) Subscribe(fn func(service.SessionEvent)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
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

// List implements service.Repository.
// Completed and hidden tasks are included; DONE requests are completed tasks.
func (c *Client) List(ctx context.Context) ([]service.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	svc, owner, listID, err := c.prepare(ctx)
	if err != nil {
		return nil, wrapError(err)
	}

	result := []service.Request{}
	err = svc.Tasks.List(listID).
		MaxResults(PageSize).
		ShowCompleted(true).
		ShowDeleted(false).
		ShowHidden(true).
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, task := range resp.Items {
				result = append(result, toRequest(task, owner))
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Create implements service.Repository.
func (c *Client) Create(ctx context.Context, owner string, d service.Draft) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	svc, me, listID, err := c.prepare(ctx)
	if err != nil {
		return wrapError(err)
	}
	if owner != me {
		return service.DataError("cannot create requests for another account")
	}
	if err := d.Validate(); err != nil {
		return err
	}

	h := header{
		Status:   service.StatusNew,
		Priority: d.Priority,
		Created:  c.now(),
		Owner:    owner,
	}
	task := &tasks.Task{
		Title:  d.Title,
		Notes:  encodeNotes(h, d.DescriptionValue()),
		Status: statusNeedsAction,
	}
	if _, err := svc.Tasks.Insert(listID, task).Context(ctx).Do(); err != nil {
		return wrapError(err)
	}
	return nil
}

// UpdateStatus implements service.Repository.
// The header is rewritten along with Google's own completion state.
func (c *Client) UpdateStatus(ctx context.Context, id string, s service.Status) error {
	if !s.Valid() {
		return service.DataError("invalid status: " + string(s))
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	svc, owner, listID, err := c.prepare(ctx)
	if err != nil {
		return wrapError(err)
	}
	task, err := svc.Tasks.Get(listID, id).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return wrapError(err)
	}

	r := toRequest(task, owner)
	h := header{Status: s, Priority: r.Priority, Created: r.CreatedAt, Owner: r.Owner}
	patch := &tasks.Task{Notes: encodeNotes(h, r.Description)}
	if s == service.StatusDone {
		patch.Status = statusCompleted
	} else {
		patch.Status = statusNeedsAction
		patch.NullFields = []string{"Completed"}
	}

	if _, err := svc.Tasks.Patch(listID, id, patch).Context(ctx).Do(); err != nil {
		if isNotFound(err) {
			return nil
		}
		return wrapError(err)
	}
	return nil
}

// Delete implements service.Repository.
func (c *Client) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	svc, _, listID, err := c.prepare(ctx)
	if err != nil {
		return wrapError(err)
	}
	if err := svc.Tasks.Delete(listID, id).Context(ctx).Do(); err != nil {
		if isNotFound(err) {
			return nil
		}
		return wrapError(err)
	}
	return nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// wrapError wraps API errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var se *service.Error
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, service.ErrNoSession) {
		return &service.Error{Kind: service.KindAuth, Message: "not logged in", Err: err}
	}

	// Check for timeout
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "context deadline exceeded") {
		return &service.Error{Kind: service.KindData, Message: "request timed out", Err: err}
	}

	// Refresh token rejected
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return &service.Error{Kind: service.KindAuth, Message: "token expired or revoked (run: reqdash login)", Err: err}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &service.Error{Kind: service.KindAuth, Message: "token expired or revoked (run: reqdash login)", Status: gerr.Code, Err: err}
		case http.StatusNotFound:
			return &service.Error{Kind: service.KindData, Message: "not found", Status: gerr.Code, Err: err}
		}
		msg := gerr.Message
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}
		return &service.Error{Kind: service.KindData, Message: msg, Status: gerr.Code, Err: err}
	}

	return &service.Error{Kind: service.KindData, Message: err.Error(), Err: err}
}
