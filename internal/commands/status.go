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
	Register(&StatusCmd{})
}

// StatusCmd implements the status command.
type StatusCmd struct{}

func (c *StatusCmd) Name() string       { return "status" }
func (c *StatusCmd) Aliases() []string  { return nil }
func (c *StatusCmd) Synopsis() string   { return "Move a request to another status" }
func (c *StatusCmd) Usage() string      { return "reqdash status <ref> <NEW|IN_PROGRESS|DONE>" }
func (c *StatusCmd) NeedsBackend() bool { return true }
func (c *StatusCmd) NeedsAuth() bool    { return true }

func (c *StatusCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *StatusCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	switch len(args) {
	case 0:
		fmt.Fprintln(errOut, "error: request reference required")
		return exitcode.UserError
	case 1:
		fmt.Fprintln(errOut, "error: status required")
		return exitcode.UserError
	case 2:
	default:
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[2])
		return exitcode.UserError
	}

	status, err := service.ParseStatus(args[1])
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	return runSetStatus(ctx, cfg, svc, args[0], status, out, errOut)
}

// runSetStatus is the shared implementation for status, done and start.
func runSetStatus(ctx context.Context, cfg *config.Config, svc service.Service, arg string, status service.Status, out, errOut io.Writer) int {
	if _, err := ParseRequestRef(arg); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	d, release, err := openDashboard(ctx, cfg, svc)
	if err != nil {
		return fail(errOut, err)
	}
	defer release()

	req, err := lookupRequest(d, arg)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if err := d.SetStatus(ctx, req.ID, status); err != nil {
		return fail(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
