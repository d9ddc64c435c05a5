package commands

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"reqdash/internal/config"
	"reqdash/internal/exitcode"
	"reqdash/internal/service"
	"reqdash/internal/tui"
)

func init() {
	Register(&UICmd{})
}

// UICmd implements the ui command.
type UICmd struct{}

func (c *UICmd) Name() string       { return "ui" }
func (c *UICmd) Aliases() []string  { return []string{"dashboard"} }
func (c *UICmd) Synopsis() string   { return "Open the interactive dashboard" }
func (c *UICmd) Usage() string      { return "reqdash ui" }
func (c *UICmd) NeedsBackend() bool { return true }
func (c *UICmd) NeedsAuth() bool    { return false } // signed-out users get the login view
func (c *UICmd) FullScreen() bool   { return true }

func (c *UICmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *UICmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	// Normally done by the dispatcher before the backend is built.
	closeLog, err := cfg.RedirectDebugLog()
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	defer closeLog()

	model := tui.New(ctx, svc, cfg.Logger())
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx), tea.WithOutput(out))
	final, err := program.Run()
	if fm, ok := final.(tui.Model); ok {
		fm.Close()
	}
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}
