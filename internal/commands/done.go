package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"reqdash/internal/config"
	"reqdash/internal/exitcode"
	"reqdash/internal/service"
)

func init() {
	Register(&DoneCmd{})
	Register(&StartCmd{})
}

// DoneCmd implements the done command.
type DoneCmd struct{}

func (c *DoneCmd) Name() string       { return "done" }
func (c *DoneCmd) Aliases() []string  { return nil }
func (c *DoneCmd) Synopsis() string   { return "Mark a request DONE" }
func (c *DoneCmd) Usage() string      { return "reqdash done <ref>" }
func (c *DoneCmd) NeedsBackend() bool { return true }
func (c *DoneCmd) NeedsAuth() bool    { return true }

func (c *DoneCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	return runShortcut(ctx, cfg, svc, args, service.StatusDone, out, errOut)
}

// StartCmd implements the start command.
type StartCmd struct{}

func (c *StartCmd) Name() string       { return "start" }
func (c *StartCmd) Aliases() []string  { return nil }
func (c *StartCmd) Synopsis() string   { return "Mark a request IN_PROGRESS" }
func (c *StartCmd) Usage() string      { return "reqdash start <ref>" }
func (c *StartCmd) NeedsBackend() bool { return true }
func (c *StartCmd) NeedsAuth() bool    { return true }

func (c *StartCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *StartCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	return runShortcut(ctx, cfg, svc, args, service.StatusInProgress, out, errOut)
}

func runShortcut(ctx context.Context, cfg *config.Config, svc service.Service, args []string, status service.Status, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "error: request reference required")
		return exitcode.UserError
	}
	if len(args) > 1 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[1])
		return exitcode.UserError
	}
	return runSetStatus(ctx, cfg, svc, args[0], status, out, errOut)
}
