// Package tui is the interactive dashboard. It shows a login view while no
// session is active and the request dashboard once one is.
//
// Every backend call runs as a tea.Cmd and reports back as a message, so
// input is never blocked. The end of a session arrives as a message too:
// a command waits on the scope's Ended channel and the model switches back
// to the login view when it fires.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"reqdash/internal/dashboard"
	"reqdash/internal/service"
	"reqdash/internal/session"
)

type viewKind int

const (
	viewStarting viewKind = iota
	viewLogin
	viewDashboard
)

// sessionMsg carries the result of activating the session gate.
type sessionMsg struct {
	scope *session.Scope
	err   error
}

// sessionEndedMsg is sent when the scope's session ends: signed out here,
// in another process, or replaced by another user.
type sessionEndedMsg struct {
	scope *session.Scope
}

// authMsg carries the result of a sign-in or sign-up attempt.
type authMsg struct {
	signUp bool
	err    error
}

// loadedMsg is sent when a reload completes. The rows themselves are read
// from the dashboard snapshot.
type loadedMsg struct {
	dash *dashboard.Dashboard
	err  error
}

// mutatedMsg is sent when a create, status change or delete completes,
// including the reload that follows a successful one.
type mutatedMsg struct {
	dash *dashboard.Dashboard
	op   string
	err  error
}

// signedOutMsg carries the result of the logout key.
type signedOutMsg struct {
	err error
}

// Model is the root bubbletea model.
type Model struct {
	ctx    context.Context
	svc    service.Service
	logger *slog.Logger
	now    func() time.Time

	view  viewKind
	scope *session.Scope
	dash  *dashboard.Dashboard

	login   loginModel
	board   boardModel
	help    help.Model
	pending int // backend calls in flight for dash
	width   int
}

// New creates the model. Backend calls made by the model use ctx.
func New(ctx context.Context, svc service.Service, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	_, browser := svc.(service.BrowserSignIn)
	return Model{
		ctx:    ctx,
		svc:    svc,
		logger: logger,
		now:    time.Now,
		login:  newLogin(browser),
		board:  newBoard(),
		help:   help.New(),
	}
}

// Close releases the session subscription, if any. Call it with the final
// model once the program has exited.
func (m Model) Close() {
	if m.scope != nil {
		m.scope.Close()
	}
}

func (m Model) Init() tea.Cmd {
	return m.activate()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case sessionMsg:
		return m.handleSession(msg)

	case sessionEndedMsg:
		if m.scope == nil || msg.scope != m.scope {
			return m, nil
		}
		m.logger.Debug("session ended, showing login")
		m.endSession()
		m.login.info = "Your session has ended. Sign in again."
		cmd := m.login.focus()
		return m, cmd

	case authMsg:
		return m.handleAuth(msg)

	case loadedMsg:
		if msg.dash != m.dash || m.dash == nil {
			return m, nil
		}
		m.pending--
		m.clampCursor()
		return m, nil

	case mutatedMsg:
		if msg.dash != m.dash || m.dash == nil {
			return m, nil
		}
		m.pending--
		if msg.op == opCreate && msg.err == nil {
			m.board.form.reset()
		}
		m.clampCursor()
		return m, nil

	case signedOutMsg:
		if msg.err != nil && !errors.Is(msg.err, service.ErrNoSession) {
			m.board.err = service.Message(msg.err)
			return m, nil
		}
		if m.view == viewDashboard {
			m.endSession()
			m.login.info = "Signed out."
			cmd := m.login.focus()
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.Close()
			return m, tea.Quit
		}
		switch m.view {
		case viewLogin:
			return m.updateLogin(msg)
		case viewDashboard:
			return m.updateBoard(msg)
		}
		if msg.String() == "q" {
			return m, tea.Quit
		}
		return m, nil
	}

	// Cursor blinks and other input-internal messages.
	switch m.view {
	case viewLogin:
		cmd := m.login.update(msg)
		return m, cmd
	case viewDashboard:
		if m.board.form.focused {
			cmd := m.board.form.update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m Model) View() string {
	switch m.view {
	case viewLogin:
		return m.loginView()
	case viewDashboard:
		return m.boardView()
	}
	return mutedStyle.Render("Checking session...") + "\n"
}

func (m Model) handleSession(msg sessionMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.view = viewLogin
		if !errors.Is(msg.err, service.ErrNoSession) {
			m.login.err = service.Message(msg.err)
		}
		cmd := m.login.focus()
		return m, cmd
	}

	if m.scope != nil && m.scope != msg.scope {
		m.scope.Close()
	}
	m.scope = msg.scope
	m.dash = dashboard.New(m.svc, msg.scope, m.logger)
	m.board = newBoard()
	m.pending = 0
	m.view = viewDashboard
	m.login.reset()
	cmd := tea.Batch(m.reload(), m.watch(msg.scope))
	return m, cmd
}

func (m Model) handleAuth(msg authMsg) (tea.Model, tea.Cmd) {
	m.login.submitting = false
	switch {
	case msg.signUp && errors.Is(msg.err, service.ErrNoSession):
		m.login.signUp = false
		m.login.password.SetValue("")
		m.login.info = "Check your email to confirm your account, then sign in."
		return m, nil
	case msg.err != nil:
		m.login.err = service.Message(msg.err)
		return m, nil
	}
	return m, m.activate()
}

// endSession drops the dashboard and returns to the login view.
func (m *Model) endSession() {
	if m.scope != nil {
		m.scope.Close()
	}
	m.scope = nil
	m.dash = nil
	m.pending = 0
	m.board = newBoard()
	m.view = viewLogin
	m.login.reset()
}

func (m Model) activate() tea.Cmd {
	ctx, svc, logger := m.ctx, m.svc, m.logger
	return func() tea.Msg {
		scope, err := session.NewGate(svc, logger).Activate(ctx)
		return sessionMsg{scope: scope, err: err}
	}
}

func (m Model) watch(scope *session.Scope) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case <-scope.Ended():
			return sessionEndedMsg{scope: scope}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Model) reload() tea.Cmd {
	d, ctx := m.dash, m.ctx
	m.pending++
	return func() tea.Msg {
		return loadedMsg{dash: d, err: d.Load(ctx)}
	}
}

func (m *Model) mutate(op string, fn func(context.Context, *dashboard.Dashboard) error) tea.Cmd {
	d, ctx := m.dash, m.ctx
	m.pending++
	m.board.err = ""
	return func() tea.Msg {
		return mutatedMsg{dash: d, op: op, err: fn(ctx, d)}
	}
}

func (m Model) signOut() tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		return signedOutMsg{err: svc.SignOut(ctx)}
	}
}

func (m Model) authenticate(creds service.Credentials, signUp bool) tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		var err error
		if signUp {
			_, err = svc.SignUp(ctx, creds)
		} else {
			_, err = svc.SignIn(ctx, creds)
		}
		return authMsg{signUp: signUp, err: err}
	}
}
