package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"reqdash/internal/dashboard"
	"reqdash/internal/output"
	"reqdash/internal/service"
)

const (
	opCreate = "create"
	opStatus = "status"
	opDelete = "delete"
)

const (
	fieldTitle = iota
	fieldDescription
	fieldPriority
	numFormFields
)

type boardModel struct {
	cursor int
	form   formModel
	err    string // failures outside the dashboard workflows, such as logout
	keys   boardKeys
}

func newBoard() boardModel {
	return boardModel{
		form: newForm(),
		keys: newBoardKeys(),
	}
}

// formModel is the create form. Its values mirror the dashboard draft.
type formModel struct {
	focused     bool
	field       int
	title       textinput.Model
	description textinput.Model
	priority    int
	keys        formKeys
}

func newForm() formModel {
	title := textinput.New()
	title.Placeholder = "What is needed?"
	title.Prompt = ""
	title.CharLimit = 200

	desc := textinput.New()
	desc.Placeholder = "optional"
	desc.Prompt = ""
	desc.CharLimit = 2000

	return formModel{
		title:       title,
		description: desc,
		priority:    service.PriorityDefault,
		keys:        newFormKeys(),
	}
}

// open focuses the form, filling it from draft.
func (f *formModel) open(draft service.Draft) tea.Cmd {
	f.focused = true
	f.field = fieldTitle
	f.title.SetValue(draft.Title)
	f.description.SetValue(draft.Description)
	f.priority = draft.Priority
	if f.priority == 0 {
		f.priority = service.PriorityDefault
	}
	return f.focusField()
}

func (f *formModel) reset() {
	*f = newForm()
}

func (f *formModel) cycle(delta int) tea.Cmd {
	f.field = (f.field + delta + numFormFields) % numFormFields
	return f.focusField()
}

func (f *formModel) focusField() tea.Cmd {
	f.title.Blur()
	f.description.Blur()
	switch f.field {
	case fieldTitle:
		return f.title.Focus()
	case fieldDescription:
		return f.description.Focus()
	}
	return nil
}

func (f *formModel) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch f.field {
	case fieldTitle:
		f.title, cmd = f.title.Update(msg)
	case fieldDescription:
		f.description, cmd = f.description.Update(msg)
	}
	return cmd
}

func (f formModel) draft() service.Draft {
	return service.Draft{
		Title:       f.title.Value(),
		Description: strings.TrimSpace(f.description.Value()),
		Priority:    f.priority,
	}
}

func (m Model) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.board.form.focused {
		return m.updateForm(msg)
	}

	k := m.board.keys
	view := m.dash.Snapshot()

	switch {
	case key.Matches(msg, k.Quit):
		m.Close()
		return m, tea.Quit
	case key.Matches(msg, k.Up):
		if m.board.cursor > 0 {
			m.board.cursor--
		}
		return m, nil
	case key.Matches(msg, k.Down):
		if m.board.cursor < len(view.Rows)-1 {
			m.board.cursor++
		}
		return m, nil
	case key.Matches(msg, k.Filter):
		m.dash.SetFilter(view.Filter.Next())
		m.board.cursor = 0
		return m, nil
	case key.Matches(msg, k.New):
		m.board.err = ""
		cmd := m.board.form.open(m.dash.Draft())
		return m, cmd
	case key.Matches(msg, k.Reload):
		cmd := m.reload()
		return m, cmd
	case key.Matches(msg, k.Logout):
		return m, m.signOut()
	}

	sel, ok := m.selected(view)
	if !ok {
		return m, nil
	}

	var target service.Status
	switch {
	case key.Matches(msg, k.NextStatus):
		target = sel.Status.Next()
	case key.Matches(msg, k.PrevStatus):
		target = sel.Status.Prev()
	case key.Matches(msg, k.SetNew):
		target = service.StatusNew
	case key.Matches(msg, k.SetInProgress):
		target = service.StatusInProgress
	case key.Matches(msg, k.SetDone):
		target = service.StatusDone
	case key.Matches(msg, k.Delete):
		id := sel.ID
		cmd := m.mutate(opDelete, func(ctx context.Context, d *dashboard.Dashboard) error {
			return d.Delete(ctx, id)
		})
		return m, cmd
	default:
		return m, nil
	}

	id := sel.ID
	cmd := m.mutate(opStatus, func(ctx context.Context, d *dashboard.Dashboard) error {
		return d.SetStatus(ctx, id, target)
	})
	return m, cmd
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.board.form
	k := f.keys

	switch {
	case key.Matches(msg, k.Cancel):
		f.reset()
		m.dash.SetDraft(service.DefaultDraft())
		return m, nil
	case key.Matches(msg, k.NextField):
		cmd := f.cycle(1)
		return m, cmd
	case key.Matches(msg, k.PrevField):
		cmd := f.cycle(-1)
		return m, cmd
	case key.Matches(msg, k.Submit):
		m.dash.SetDraft(f.draft())
		cmd := m.mutate(opCreate, func(ctx context.Context, d *dashboard.Dashboard) error {
			return d.Create(ctx)
		})
		return m, cmd
	}

	var cmd tea.Cmd
	if f.field == fieldPriority {
		switch {
		case key.Matches(msg, k.Lower):
			f.priority = max(service.PriorityHigh, f.priority-1)
		case key.Matches(msg, k.Raise):
			f.priority = min(service.PriorityLow, f.priority+1)
		default:
			if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '3' {
				f.priority = int(s[0] - '0')
			}
		}
	} else {
		cmd = f.update(msg)
	}
	m.dash.SetDraft(f.draft())
	return m, cmd
}

// selected returns the row under the cursor in the filtered view.
func (m Model) selected(view dashboard.View) (service.Request, bool) {
	if m.board.cursor < 0 || m.board.cursor >= len(view.Rows) {
		return service.Request{}, false
	}
	return view.Rows[m.board.cursor], true
}

func (m *Model) clampCursor() {
	if m.dash == nil {
		return
	}
	n := len(m.dash.Snapshot().Rows)
	if m.board.cursor >= n {
		m.board.cursor = n - 1
	}
	if m.board.cursor < 0 {
		m.board.cursor = 0
	}
}

func (m Model) boardView() string {
	v := m.dash.Snapshot()
	var b strings.Builder

	b.WriteString(titleStyle.Render("reqdash"))
	if m.scope != nil {
		who := m.scope.Session().Email
		if who == "" {
			who = m.scope.UserID()
		}
		b.WriteString("  " + mutedStyle.Render(who))
	}
	b.WriteString("\n")

	counters := make([]string, 0, len(service.Statuses))
	for _, s := range service.Statuses {
		counters = append(counters, statusStyle(s).Render(fmt.Sprintf("%s %d", s, v.Counters.Get(s))))
	}
	b.WriteString(strings.Join(counters, mutedStyle.Render(" · ")))
	b.WriteString("   " + mutedStyle.Render("filter: "+v.Filter.String()))
	if m.pending > 0 {
		b.WriteString("  " + mutedStyle.Render("loading..."))
	}
	b.WriteString("\n\n")

	if msg := m.errorLine(v); msg != "" {
		b.WriteString(errorStyle.Render("Error: "+msg) + "\n\n")
	}

	if m.board.form.focused {
		b.WriteString(m.formView())
	}

	switch {
	case !v.Loaded && v.Err == "":
		b.WriteString(mutedStyle.Render("Loading requests...") + "\n")
	case len(v.Rows) == 0 && v.Filter.All():
		b.WriteString(mutedStyle.Render("No requests yet. Press n to create one.") + "\n")
	case len(v.Rows) == 0:
		b.WriteString(mutedStyle.Render("No requests match the filter.") + "\n")
	}
	now := m.now()
	for i, r := range v.Rows {
		cursor := "  "
		if i == m.board.cursor && !m.board.form.focused {
			cursor = selectedStyle.Render("> ")
		}
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&b, "%s%s  P%d  %s  %s\n",
			cursor,
			statusStyle(r.Status).Render(fmt.Sprintf("%-11s", r.Status)),
			r.Priority,
			title,
			mutedStyle.Render(humanize.RelTime(r.CreatedAt, now, "ago", "from now")),
		)
		b.WriteString("    " + mutedStyle.Render(output.Description(r.Description)) + "\n")
	}

	b.WriteString("\n")
	if m.board.form.focused {
		b.WriteString(m.help.View(m.board.form.keys) + "\n")
	} else {
		b.WriteString(m.help.View(m.board.keys) + "\n")
	}
	return b.String()
}

func (m Model) errorLine(v dashboard.View) string {
	if m.board.err != "" {
		return m.board.err
	}
	return v.Err
}

func (m Model) formView() string {
	f := m.board.form
	var b strings.Builder
	b.WriteString(titleStyle.Render("New request") + "\n")

	label := func(field int, name string) string {
		if f.field == field {
			return selectedStyle.Render(labelStyle.Render(name))
		}
		return labelStyle.Render(name)
	}
	b.WriteString(label(fieldTitle, "Title") + f.title.View() + "\n")
	b.WriteString(label(fieldDescription, "Description") + f.description.View() + "\n")

	prio := make([]string, 0, 3)
	for p := service.PriorityHigh; p <= service.PriorityLow; p++ {
		s := fmt.Sprintf("P%d", p)
		if p == f.priority {
			s = selectedStyle.Render("[" + s + "]")
		} else {
			s = mutedStyle.Render(" " + s + " ")
		}
		prio = append(prio, s)
	}
	b.WriteString(label(fieldPriority, "Priority") + strings.Join(prio, " ") + "\n\n")
	return b.String()
}
