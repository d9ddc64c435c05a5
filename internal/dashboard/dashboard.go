// Package dashboard holds the request list view-model and its mutation workflows.
//
// Every mutation follows the same sequence: clear the error slot, perform the
// remote call, and on success reload the whole list. Nothing is patched
// locally, so the list only changes when a reload completes.
//
// Reloads may overlap. The latest-issued reload wins: a reload's result is
// applied only if no reload issued after it has already been applied.
package dashboard

import (
	"context"
	"log/slog"
	"sync"

	"reqdash/internal/service"
	"reqdash/internal/session"
)

// View is a consistent snapshot of the dashboard state.
type View struct {
	Rows     []service.Request // filtered, newest first
	All      []service.Request // full list, newest first
	Counters service.Counters  // over All
	Filter   service.Filter
	Loading  bool
	Loaded   bool // at least one reload has been applied
	Err      string
	Draft    service.Draft
}

// Dashboard is the view-model for one signed-in user's request list.
// Methods are safe for concurrent use.
type Dashboard struct {
	repo   service.Repository
	owner  string
	logger *slog.Logger

	mu       sync.Mutex
	rows     []service.Request
	filter   service.Filter
	draft    service.Draft
	errMsg   string
	loaded   bool
	inflight int
	issued   uint64 // last reload generation handed out
	applied  uint64 // generation of the rows currently held
}

// New creates a dashboard bound to the session held by scope.
func New(repo service.Repository, scope *session.Scope, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dashboard{
		repo:   repo,
		owner:  scope.UserID(),
		logger: logger.With("user", scope.UserID()),
		draft:  service.DefaultDraft(),
	}
}

// Owner returns the user id new requests are created for.
func (d *Dashboard) Owner() string {
	return d.owner
}

// Snapshot returns the current state with derived values computed fresh.
func (d *Dashboard) Snapshot() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	all := make([]service.Request, len(d.rows))
	copy(all, d.rows)
	return View{
		Rows:     FilterRows(all, d.filter),
		All:      all,
		Counters: Count(all),
		Filter:   d.filter,
		Loading:  d.inflight > 0,
		Loaded:   d.loaded,
		Err:      d.errMsg,
		Draft:    d.draft,
	}
}

// SetFilter changes the status filter.
func (d *Dashboard) SetFilter(f service.Filter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filter = f
}

// Draft returns the create-form state.
func (d *Dashboard) Draft() service.Draft {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draft
}

// SetDraft replaces the create-form state.
func (d *Dashboard) SetDraft(draft service.Draft) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draft = draft
}

// Err returns the current error message, or "".
func (d *Dashboard) Err() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errMsg
}

func (d *Dashboard) clearErr() {
	d.mu.Lock()
	d.errMsg = ""
	d.mu.Unlock()
}

func (d *Dashboard) fail(op string, err error) error {
	msg := service.Message(err)
	d.logger.Debug("workflow failed", "op", op, "error", msg)
	d.mu.Lock()
	d.errMsg = msg
	d.mu.Unlock()
	return err
}

// Load re-fetches the full list. On failure the previously loaded rows stay
// in place and the error slot is set.
func (d *Dashboard) Load(ctx context.Context) error {
	d.mu.Lock()
	d.issued++
	gen := d.issued
	d.inflight++
	d.errMsg = ""
	d.mu.Unlock()

	rows, err := d.repo.List(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.inflight--
	if gen <= d.applied {
		d.logger.Debug("discarding stale reload", "generation", gen, "applied", d.applied)
		return err
	}
	if err != nil {
		d.errMsg = service.Message(err)
		d.logger.Debug("reload failed", "generation", gen, "error", d.errMsg)
		return err
	}
	if rows == nil {
		rows = []service.Request{}
	}
	d.rows = rows
	d.applied = gen
	d.loaded = true
	d.logger.Debug("reloaded", "generation", gen, "rows", len(rows))
	return nil
}

// Create submits the current draft. On success the draft is reset to its
// defaults and the list reloaded; on failure the draft is kept.
func (d *Dashboard) Create(ctx context.Context) error {
	d.clearErr()
	draft := d.Draft()
	if err := draft.Validate(); err != nil {
		return d.fail("create", err)
	}
	if err := d.repo.Create(ctx, d.owner, draft); err != nil {
		return d.fail("create", err)
	}
	d.mu.Lock()
	d.draft = service.DefaultDraft()
	d.mu.Unlock()
	return d.Load(ctx)
}

// SetStatus moves the request with the given id to s. Any state may move to
// any other.
func (d *Dashboard) SetStatus(ctx context.Context, id string, s service.Status) error {
	d.clearErr()
	if !s.Valid() {
		return d.fail("set-status", service.DataError("invalid status: "+string(s)))
	}
	if err := d.repo.UpdateStatus(ctx, id, s); err != nil {
		return d.fail("set-status", err)
	}
	return d.Load(ctx)
}

// Delete removes the request with the given id.
func (d *Dashboard) Delete(ctx context.Context, id string) error {
	d.clearErr()
	if err := d.repo.Delete(ctx, id); err != nil {
		return d.fail("delete", err)
	}
	return d.Load(ctx)
}
