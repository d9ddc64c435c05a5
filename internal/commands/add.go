package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"reqdash/internal/config"
	"reqdash/internal/exitcode"
	"reqdash/internal/service"
)

func init() {
	Register(NewAddCmd())
}

// AddCmd implements the add command (alias create).
type AddCmd struct {
	description string
	priority    int
}

// NewAddCmd returns an add command with the default priority.
func NewAddCmd() *AddCmd {
	return &AddCmd{priority: service.PriorityDefault}
}

// SetDescription sets the description (for testing).
func (c *AddCmd) SetDescription(desc string) {
	c.description = desc
}

// SetPriority sets the priority (for testing).
func (c *AddCmd) SetPriority(p int) {
	c.priority = p
}

func (c *AddCmd) Name() string       { return "add" }
func (c *AddCmd) Aliases() []string  { return []string{"create"} }
func (c *AddCmd) Synopsis() string   { return "Create a request" }
func (c *AddCmd) NeedsBackend() bool { return true }
func (c *AddCmd) NeedsAuth() bool    { return true }
func (c *AddCmd) Usage() string {
	return "reqdash add [--description <text>] [--priority <1-3>] <title...>"
}

func (c *AddCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.description, "description", "d", "", "")
	fs.IntVarP(&c.priority, "priority", "p", service.PriorityDefault, "")
}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	title := strings.Join(args, " ")
	if strings.TrimSpace(title) == "" {
		fmt.Fprintln(errOut, "error: title required")
		return exitcode.UserError
	}

	draft := service.Draft{Title: title, Description: c.description, Priority: c.priority}
	if err := draft.Validate(); err != nil {
		return fail(errOut, err)
	}

	d, release, err := openDashboard(ctx, cfg, svc)
	if err != nil {
		return fail(errOut, err)
	}
	defer release()

	d.SetDraft(draft)
	if err := d.Create(ctx); err != nil {
		return fail(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
