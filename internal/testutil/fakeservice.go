// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reqdash/internal/service"
)

// BaseTime is the creation time of the first request inserted into a FakeService.
// Each later insert is one minute newer.
var BaseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeUser struct {
	id       string
	password string
}

// FakeService is an in-memory implementation of service.Service for testing.
// Rows are visible only to their owner, as the real backend's policy enforces.
type FakeService struct {
	mu      sync.RWMutex
	users   map[string]fakeUser // email -> user
	current *service.Session
	rows    []service.Request
	inserts int

	subs   map[int]func(service.SessionEvent)
	nextID int

	// Calls counts backend calls by operation name.
	Calls map[string]int

	// ListHook, when set, runs at the start of each List call with the
	// 1-based call number. Tests use it to hold a reload in flight.
	ListHook func(call int)

	// Error injection for testing
	SessionErr   error
	SignInErr    error
	SignUpErr    error
	SignOutErr   error
	SubscribeErr error
	ListErr      error
	CreateErr    error
	UpdateErr    error
	DeleteErr    error

	// ConfirmSignUp makes SignUp withhold the session, as providers that
	// require email confirmation do.
	ConfirmSignUp bool
}

// NewFakeService creates an empty FakeService with nobody signed in.
func NewFakeService() *FakeService {
	return &FakeService{
		users: make(map[string]fakeUser),
		subs:  make(map[int]func(service.SessionEvent)),
		Calls: make(map[string]int),
	}
}

// AddUser registers an account and returns its user id.
func (f *FakeService) AddUser(email, password string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	f.users[strings.ToLower(email)] = fakeUser{id: id, password: password}
	return id
}

// SignInAs registers email if needed and makes it the current session.
// Returns the user id. No notification is sent.
func (f *FakeService) SignInAs(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[strings.ToLower(email)]
	if !ok {
		u = fakeUser{id: uuid.NewString(), password: "secret"}
		f.users[strings.ToLower(email)] = u
	}
	f.current = &service.Session{UserID: u.id, Email: email}
	return u.id
}

// AddRequest inserts a row directly for owner and returns its id.
func (f *FakeService) AddRequest(owner, title string, status service.Status, priority int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertLocked(owner, title, nil, status, priority)
}

func (f *FakeService) insertLocked(owner, title string, desc *string, status service.Status, priority int) string {
	id := uuid.NewString()
	f.rows = append(f.rows, service.Request{
		ID:          id,
		Owner:       owner,
		Title:       title,
		Description: desc,
		Status:      status,
		Priority:    priority,
		CreatedAt:   BaseTime.Add(time.Duration(f.inserts) * time.Minute),
	})
	f.inserts++
	return id
}

// Rows returns a copy of every stored row regardless of owner.
func (f *FakeService) Rows() []service.Request {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]service.Request, len(f.rows))
	copy(out, f.rows)
	return out
}

// Subscribers returns the number of live subscriptions.
func (f *FakeService) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Emit delivers ev to every subscriber.
func (f *FakeService) Emit(ev service.SessionEvent) {
	f.mu.RLock()
	fns := make([]func(service.SessionEvent), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// CallCount returns how many times op was called.
func (f *FakeService) CallCount(op string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.Calls[op]
}

func (f *FakeService) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls[op]++
	return f.Calls[op]
}

// Session implements service.Authenticator.
func (f *FakeService) Session(ctx context.Context) (service.Session, error) {
	f.count("Session")
	if f.SessionErr != nil {
		return service.Session{}, f.SessionErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current == nil {
		return service.Session{}, service.ErrNoSession
	}
	return *f.current, nil
}

// SignIn implements service.Authenticator.
func (f *FakeService) SignIn(ctx context.Context, creds service.Credentials) (service.Session, error) {
	f.count("SignIn")
	if f.SignInErr != nil {
		return service.Session{}, f.SignInErr
	}
	f.mu.Lock()
	u, ok := f.users[strings.ToLower(creds.Email)]
	if !ok || u.password != creds.Password {
		f.mu.Unlock()
		return service.Session{}, service.AuthError("Invalid login credentials")
	}
	sess := service.Session{UserID: u.id, Email: creds.Email}
	f.current = &sess
	f.mu.Unlock()
	f.Emit(service.SessionEvent{Kind: service.EventSignedIn, Session: &sess})
	return sess, nil
}

// SignUp implements service.Authenticator.
func (f *FakeService) SignUp(ctx context.Context, creds service.Credentials) (service.Session, error) {
	f.count("SignUp")
	if f.SignUpErr != nil {
		return service.Session{}, f.SignUpErr
	}
	f.mu.Lock()
	key := strings.ToLower(creds.Email)
	if _, exists := f.users[key]; exists {
		f.mu.Unlock()
		return service.Session{}, service.AuthError("User already registered")
	}
	u := fakeUser{id: uuid.NewString(), password: creds.Password}
	f.users[key] = u
	if f.ConfirmSignUp {
		f.mu.Unlock()
		return service.Session{}, service.ErrNoSession
	}
	sess := service.Session{UserID: u.id, Email: creds.Email}
	f.current = &sess
	f.mu.Unlock()
	f.Emit(service.SessionEvent{Kind: service.EventSignedIn, Session: &sess})
	return sess, nil
}

// SignOut implements service.Authenticator.
func (f *FakeService) SignOut(ctx context.Context) error {
	f.count("SignOut")
	if f.SignOutErr != nil {
		return f.SignOutErr
	}
	f.mu.Lock()
	had := f.current != nil
	f.current = nil
	f.mu.Unlock()
	if !had {
		return service.ErrNoSession
	}
	f.Emit(service.SessionEvent{Kind: service.EventSignedOut})
	return nil
}

// Subscribe implements service.Authenticator.
func (f *FakeService) Subscribe(fn func(service.SessionEvent)) (func(), error) {
	f.count("Subscribe")
	if f.SubscribeErr != nil {
		return nil, f.SubscribeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}, nil
}

func (f *FakeService) callerLocked() (string, error) {
	if f.current == nil {
		return "", service.AuthError("JWT expired")
	}
	return f.current.UserID, nil
}

// List implements service.Repository.
func (f *FakeService) List(ctx context.Context) ([]service.Request, error) {
	call := f.count("List")
	if f.ListHook != nil {
		f.ListHook(call)
	}
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	caller, err := f.callerLocked()
	if err != nil {
		return nil, err
	}
	out := []service.Request{}
	for _, r := range f.rows {
		if r.Owner == caller {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Create implements service.Repository.
func (f *FakeService) Create(ctx context.Context, owner string, d service.Draft) error {
	f.count("Create")
	if f.CreateErr != nil {
		return f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	caller, err := f.callerLocked()
	if err != nil {
		return err
	}
	if owner != caller {
		return service.DataError(`new row violates row-level security policy for table "requests"`)
	}
	if strings.TrimSpace(d.Title) == "" {
		return service.DataError(`new row for relation "requests" violates check constraint "requests_title_check"`)
	}
	if d.Priority < service.PriorityHigh || d.Priority > service.PriorityLow {
		return service.DataError(`new row for relation "requests" violates check constraint "requests_priority_check"`)
	}
	f.insertLocked(owner, d.Title, d.DescriptionValue(), service.StatusNew, d.Priority)
	return nil
}

// UpdateStatus implements service.Repository.
func (f *FakeService) UpdateStatus(ctx context.Context, id string, s service.Status) error {
	f.count("UpdateStatus")
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	caller, err := f.callerLocked()
	if err != nil {
		return err
	}
	if !s.Valid() {
		return service.DataError(`invalid input value for enum request_status: "` + string(s) + `"`)
	}
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].Owner == caller {
			f.rows[i].Status = s
		}
	}
	return nil
}

// Delete implements service.Repository.
func (f *FakeService) Delete(ctx context.Context, id string) error {
	f.count("Delete")
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	caller, err := f.callerLocked()
	if err != nil {
		return err
	}
	for i, r := range f.rows {
		if r.ID == id && r.Owner == caller {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return nil
}
