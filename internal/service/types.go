// Package service defines the backend-agnostic interface for request operations.
package service

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a request.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Statuses lists the lifecycle states in display order.
var Statuses = []Status{StatusNew, StatusInProgress, StatusDone}

// Valid reports whether s is one of the three lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Next returns the following state in display order, wrapping DONE to NEW.
func (s Status) Next() Status {
	for i, st := range Statuses {
		if st == s {
			return Statuses[(i+1)%len(Statuses)]
		}
	}
	return StatusNew
}

// Prev returns the preceding state in display order, wrapping NEW to DONE.
func (s Status) Prev() Status {
	for i, st := range Statuses {
		if st == s {
			return Statuses[(i+len(Statuses)-1)%len(Statuses)]
		}
	}
	return StatusNew
}

// ParseStatus parses a status name (case-insensitive; "-" and " " accepted for "_").
func ParseStatus(s string) (Status, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	st := Status(norm)
	if !st.Valid() {
		return "", fmt.Errorf("invalid status: %s", s)
	}
	return st, nil
}

// Priority bounds. 1 is high, 3 is low.
const (
	PriorityHigh    = 1
	PriorityDefault = 2
	PriorityLow     = 3
)

// Request is a single tracked request as stored by the backend.
type Request struct {
	ID          string
	Owner       string
	Title       string
	Description *string // nil when absent
	Status      Status
	Priority    int
	CreatedAt   time.Time
}

// Filter selects which requests the dashboard shows.
// The zero value shows all requests.
type Filter struct {
	Status Status // empty means ALL
}

// FilterAll shows every request.
var FilterAll = Filter{}

// All reports whether the filter passes every request.
func (f Filter) All() bool { return f.Status == "" }

// Match reports whether r passes the filter.
func (f Filter) Match(r Request) bool {
	return f.All() || r.Status == f.Status
}

// String returns "ALL" or the status name.
func (f Filter) String() string {
	if f.All() {
		return "ALL"
	}
	return string(f.Status)
}

// Next cycles ALL -> NEW -> IN_PROGRESS -> DONE -> ALL.
func (f Filter) Next() Filter {
	if f.All() {
		return Filter{Status: Statuses[0]}
	}
	if f.Status == Statuses[len(Statuses)-1] {
		return FilterAll
	}
	return Filter{Status: f.Status.Next()}
}

// ParseFilter parses "ALL" or a status name.
func ParseFilter(s string) (Filter, error) {
	if strings.EqualFold(strings.TrimSpace(s), "all") || strings.TrimSpace(s) == "" {
		return FilterAll, nil
	}
	st, err := ParseStatus(s)
	if err != nil {
		return Filter{}, fmt.Errorf("invalid filter: %s", s)
	}
	return Filter{Status: st}, nil
}

// Counters holds the number of requests in each status.
type Counters struct {
	New        int
	InProgress int
	Done       int
}

// Get returns the count for s.
func (c Counters) Get(s Status) int {
	switch s {
	case StatusNew:
		return c.New
	case StatusInProgress:
		return c.InProgress
	case StatusDone:
		return c.Done
	}
	return 0
}

// Total returns the sum of all counters.
func (c Counters) Total() int { return c.New + c.InProgress + c.Done }

// Draft is the create-form state.
type Draft struct {
	Title       string
	Description string
	Priority    int
}

// DefaultDraft returns an empty form with the default priority.
func DefaultDraft() Draft {
	return Draft{Priority: PriorityDefault}
}

// Validate checks the fields the form requires before submission.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return DataError("title is required")
	}
	if d.Priority < PriorityHigh || d.Priority > PriorityLow {
		return DataError(fmt.Sprintf("priority must be between %d and %d", PriorityHigh, PriorityLow))
	}
	return nil
}

// DescriptionValue returns the description to submit: nil when the field is empty.
func (d Draft) DescriptionValue() *string {
	if d.Description == "" {
		return nil
	}
	desc := d.Description
	return &desc
}

// Session is an authenticated user context.
type Session struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Credentials are the email/password pair used to sign in or sign up.
type Credentials struct {
	Email    string
	Password string
}

// SessionEventKind classifies a session-change notification.
type SessionEventKind string

const (
	EventSignedIn       SessionEventKind = "SIGNED_IN"
	EventSignedOut      SessionEventKind = "SIGNED_OUT"
	EventTokenRefreshed SessionEventKind = "TOKEN_REFRESHED"
)

// SessionEvent is delivered to subscribers when the session changes.
// Session is nil when there is no longer an active session.
type SessionEvent struct {
	Kind    SessionEventKind
	Session *Session
}

// Ended reports whether the event means the session is gone.
func (e SessionEvent) Ended() bool {
	return e.Kind == EventSignedOut || e.Session == nil
}
