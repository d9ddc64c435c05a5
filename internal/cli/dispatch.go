// Package cli parses the command line and dispatches to a registered command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"reqdash/internal/commands"
	"reqdash/internal/config"
	"reqdash/internal/exitcode"
	"reqdash/internal/service"
	"reqdash/internal/session"
)

// ServiceFactory creates a Service from config.
// Used to inject the backend during dispatch.
type ServiceFactory func(ctx context.Context, cfg *config.Config) (service.Service, error)

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  ServiceFactory

	// Interactive selects the dashboard instead of the plain list when
	// reqdash is run without a command.
	Interactive bool
}

// NewDispatcher creates a new dispatcher with the given registry and service factory.
func NewDispatcher(registry *commands.Registry, factory ServiceFactory) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		factory:  factory,
	}
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		name := "list"
		if d.Interactive {
			name = "ui"
		}
		return d.dispatch(ctx, name, nil, out, errOut)
	}

	cmdName := args[0]

	// Flags require a command
	if strings.HasPrefix(cmdName, "-") {
		if cmdName == "-h" || cmdName == "--help" {
			return d.dispatch(ctx, "help", nil, out, errOut)
		}
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	return d.dispatch(ctx, cmdName, args[1:], out, errOut)
}

func (d *Dispatcher) dispatch(ctx context.Context, cmdName string, args []string, out, errOut io.Writer) int {
	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}
	return d.dispatchCommand(ctx, cmd, args, out, errOut)
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, args []string, out, errOut io.Writer) int {
	fs := pflag.NewFlagSet(cmd.Name(), pflag.ContinueOnError)
	fs.SetOutput(io.Discard) // We handle errors ourselves

	// Common flags
	var configDir string
	var quiet bool
	var debug bool

	fs.StringVar(&configDir, "config", "", "")
	fs.BoolVar(&quiet, "quiet", false, "")
	fs.BoolVar(&debug, "debug", false, "")

	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(out, "Usage: %s\n", cmd.Usage())
			return exitcode.Success
		}
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	positionalArgs := fs.Args()

	cfg, err := config.New(configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	cfg.Quiet = quiet
	cfg.Debug = debug
	if full, ok := cmd.(commands.FullScreen); ok && full.FullScreen() {
		closeLog, err := cfg.RedirectDebugLog()
		if err != nil {
			fmt.Fprintf(errOut, "error: %s\n", err)
			return exitcode.BackendError
		}
		defer closeLog()
	}
	logger := cfg.Logger()

	var svc service.Service
	if cmd.NeedsBackend() || cmd.NeedsAuth() {
		if d.factory == nil {
			fmt.Fprintln(errOut, "error: no backend configured")
			return exitcode.BackendError
		}
		svc, err = d.factory(ctx, cfg)
		if err != nil {
			logger.Debug("backend setup failed", "backend", cfg.Backend, "error", err)
			fmt.Fprintf(errOut, "error: %s\n", service.Message(err))
			return exitcode.For(err)
		}
	}

	if cmd.NeedsAuth() {
		scope, err := session.NewGate(svc, logger).Activate(ctx)
		if errors.Is(err, service.ErrNoSession) {
			fmt.Fprintln(errOut, "error: not logged in (run: reqdash login)")
			return exitcode.AuthError
		}
		if err != nil {
			fmt.Fprintf(errOut, "error: %s\n", service.Message(err))
			return exitcode.For(err)
		}
		defer scope.Close()
		ctx = session.NewContext(ctx, scope)
	}

	logger.Debug("running command", "command", cmd.Name(), "backend", cfg.Backend)
	return cmd.Run(ctx, cfg, svc, positionalArgs, out, errOut)
}
