package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"reqdash/internal/config"
	"reqdash/internal/exitcode"
	"reqdash/internal/output"
	"reqdash/internal/service"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `reqdash` (no args, not a terminal) and `reqdash list`.
type ListCmd struct {
	status string
}

// SetStatus sets the status filter (for testing).
func (c *ListCmd) SetStatus(status string) {
	c.status = status
}

func (c *ListCmd) Name() string       { return "list" }
func (c *ListCmd) Aliases() []string  { return []string{"ls"} }
func (c *ListCmd) Synopsis() string   { return "List requests" }
func (c *ListCmd) Usage() string      { return "reqdash list [--status <STATUS>]" }
func (c *ListCmd) NeedsBackend() bool { return true }
func (c *ListCmd) NeedsAuth() bool    { return true }

func (c *ListCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.status, "status", "s", "", "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	filter, err := service.ParseFilter(c.status)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	d, release, err := openDashboard(ctx, cfg, svc)
	if err != nil {
		return fail(errOut, err)
	}
	defer release()
	d.SetFilter(filter)
	view := d.Snapshot()

	output.FormatCounters(out, view.Counters)

	// Numbers are positions in the full list so that they stay valid as
	// references whatever filter was used.
	shown := 0
	for i, r := range view.All {
		if !filter.Match(r) {
			continue
		}
		output.FormatRequest(out, i+1, r)
		shown++
	}

	if shown == 0 && !cfg.Quiet {
		fmt.Fprintln(out, "no requests found")
	}
	return exitcode.Success
}
