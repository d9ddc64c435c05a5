package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"reqdash/internal/service"
)

const (
	fieldEmail = iota
	fieldPassword
)

type loginModel struct {
	browser    bool
	signUp     bool
	email      textinput.Model
	password   textinput.Model
	field      int
	submitting bool
	err        string
	info       string
	keys       loginKeys
}

func newLogin(browser bool) loginModel {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.Prompt = ""
	email.CharLimit = 254

	password := textinput.New()
	password.Prompt = ""
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128

	return loginModel{
		browser:  browser,
		email:    email,
		password: password,
		keys:     newLoginKeys(),
	}
}

// focus moves the cursor to the current field.
func (l *loginModel) focus() tea.Cmd {
	if l.browser {
		return nil
	}
	if l.field == fieldPassword {
		l.email.Blur()
		return l.password.Focus()
	}
	l.password.Blur()
	return l.email.Focus()
}

// reset clears everything but the email, which is kept for the next sign-in.
func (l *loginModel) reset() {
	l.password.SetValue("")
	l.field = fieldEmail
	l.submitting = false
	l.err = ""
	l.info = ""
	l.email.Blur()
	l.password.Blur()
}

func (l *loginModel) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if l.field == fieldPassword {
		l.password, cmd = l.password.Update(msg)
	} else {
		l.email, cmd = l.email.Update(msg)
	}
	return cmd
}

func (l loginModel) credentials() service.Credentials {
	return service.Credentials{
		Email:    strings.TrimSpace(l.email.Value()),
		Password: l.password.Value(),
	}
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	l := &m.login
	if key.Matches(msg, l.keys.Quit) || (l.browser && msg.String() == "q") {
		return m, tea.Quit
	}
	if l.browser {
		return m, nil
	}

	switch {
	case key.Matches(msg, l.keys.Switch):
		l.field = 1 - l.field
		cmd := l.focus()
		return m, cmd

	case key.Matches(msg, l.keys.Toggle):
		l.signUp = !l.signUp
		l.err = ""
		l.info = ""
		return m, nil

	case key.Matches(msg, l.keys.Submit):
		if l.submitting {
			return m, nil
		}
		creds := l.credentials()
		if creds.Email == "" || creds.Password == "" {
			l.err = "Email and password are required."
			return m, nil
		}
		l.submitting = true
		l.err = ""
		l.info = ""
		return m, m.authenticate(creds, l.signUp)
	}

	l.err = ""
	cmd := l.update(msg)
	return m, cmd
}

func (m Model) loginView() string {
	l := m.login
	var b strings.Builder

	mode, other := "Sign in", "Need an account? Press ctrl+t to sign up."
	if l.signUp {
		mode, other = "Sign up", "Have an account? Press ctrl+t to sign in."
	}
	b.WriteString(titleStyle.Render("reqdash") + "  " + mode + "\n\n")

	if l.browser {
		b.WriteString("This backend signs in with your account in the browser.\n")
		b.WriteString("Run: reqdash login\n\n")
		b.WriteString(mutedStyle.Render("q quit") + "\n")
		return b.String()
	}

	b.WriteString(labelStyle.Render("Email") + l.email.View() + "\n")
	b.WriteString(labelStyle.Render("Password") + l.password.View() + "\n\n")

	switch {
	case l.submitting:
		b.WriteString(mutedStyle.Render("Working...") + "\n\n")
	case l.err != "":
		b.WriteString(errorStyle.Render(l.err) + "\n\n")
	case l.info != "":
		b.WriteString(infoStyle.Render(l.info) + "\n\n")
	}

	b.WriteString(mutedStyle.Render(other) + "\n")
	b.WriteString(m.help.View(l.keys) + "\n")
	return b.String()
}
