// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"reqdash/internal/config"
	"reqdash/internal/exitcode"
	"reqdash/internal/service"
	"reqdash/internal/session"
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsBackend returns true if the command talks to the backend.
	// Commands like help and version return false.
	NeedsBackend() bool

	// NeedsAuth returns true if the command requires an active session.
	// The dispatcher then activates the session gate and stores the scope
	// in the context passed to Run.
	NeedsAuth() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *pflag.FlagSet)

	// Run executes the command.
	// cfg is always provided (config dir, paths).
	// svc is nil if NeedsBackend() returns false.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int
}

// FullScreen is implemented by commands that take over the terminal.
// The dispatcher sends their debug logs to config.DebugLogFile, since
// stderr is hidden while they run.
type FullScreen interface {
	FullScreen() bool
}

// fail prints err as a single line and returns its exit code.
func fail(errOut io.Writer, err error) int {
	if errors.Is(err, service.ErrNoSession) {
		return notLoggedIn(errOut)
	}
	fmt.Fprintf(errOut, "error: %s\n", service.Message(err))
	return exitcode.For(err)
}

// notLoggedIn prints the standard message for a missing session.
func notLoggedIn(errOut io.Writer) int {
	fmt.Fprintln(errOut, "error: not logged in (run: reqdash login)")
	return exitcode.AuthError
}

// activeScope returns the scope stored by the dispatcher, or activates the
// gate when Run is called directly. release must always be called.
func activeScope(ctx context.Context, cfg *config.Config, svc service.Service) (scope *session.Scope, release func(), err error) {
	if s, ok := session.FromContext(ctx); ok {
		return s, func() {}, nil
	}
	s, err := session.NewGate(svc, cfg.Logger()).Activate(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}
