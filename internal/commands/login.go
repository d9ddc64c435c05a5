package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"reqdash/internal/config"
	"reqdash/internal/exitcode"
	"reqdash/internal/service"
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	signup       bool
	passwordFile string
	input        io.Reader
}

// SetSignUp switches to account creation (for testing).
func (c *LoginCmd) SetSignUp(signup bool) {
	c.signup = signup
}

// SetInput sets where the password is read from instead of the terminal (for testing).
func (c *LoginCmd) SetInput(r io.Reader) {
	c.input = r
}

func (c *LoginCmd) Name() string       { return "login" }
func (c *LoginCmd) Aliases() []string  { return nil }
func (c *LoginCmd) Synopsis() string   { return "Sign in (or sign up with --signup)" }
func (c *LoginCmd) NeedsBackend() bool { return true }
func (c *LoginCmd) NeedsAuth() bool    { return false }
func (c *LoginCmd) Usage() string {
	return "reqdash login [--signup] [--password-file <file>] <email>"
}

func (c *LoginCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&c.signup, "signup", false, "")
	fs.StringVar(&c.passwordFile, "password-file", "", "")
}

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	// Check if already logged in
	if !c.signup {
		sess, err := svc.Session(ctx)
		switch {
		case err == nil:
			if !cfg.Quiet {
				fmt.Fprintf(out, "already logged in as %s\n", displayName(sess))
			}
			return exitcode.Success
		case !errors.Is(err, service.ErrNoSession):
			return fail(errOut, err)
		}
	}

	if browser, ok := svc.(service.BrowserSignIn); ok {
		if c.signup {
			fmt.Fprintln(errOut, "error: --signup is not supported by this backend")
			return exitcode.UserError
		}
		sess, err := browser.SignInWithBrowser(ctx, errOut)
		if err != nil {
			return fail(errOut, err)
		}
		if !cfg.Quiet {
			fmt.Fprintf(out, "logged in as %s\n", displayName(sess))
		}
		return exitcode.Success
	}

	if len(args) == 0 {
		fmt.Fprintln(errOut, "error: email required")
		return exitcode.UserError
	}
	if len(args) > 1 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[1])
		return exitcode.UserError
	}
	email := strings.TrimSpace(args[0])

	password, err := c.readPassword(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	creds := service.Credentials{Email: email, Password: password}

	var sess service.Session
	if c.signup {
		sess, err = svc.SignUp(ctx, creds)
		if errors.Is(err, service.ErrNoSession) {
			if !cfg.Quiet {
				fmt.Fprintf(out, "check your email to confirm your account, then run: reqdash login %s\n", email)
			}
			return exitcode.Success
		}
	} else {
		sess, err = svc.SignIn(ctx, creds)
	}
	if err != nil {
		return fail(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "logged in as %s\n", displayName(sess))
	}
	return exitcode.Success
}

// readPassword reads the password from --password-file, the terminal, or
// the first line of standard input, in that order.
func (c *LoginCmd) readPassword(errOut io.Writer) (string, error) {
	if c.passwordFile != "" {
		data, err := os.ReadFile(c.passwordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		line, _, _ := strings.Cut(string(data), "\n")
		return nonEmptyPassword(strings.TrimRight(line, "\r"))
	}

	in := c.input
	if in == nil {
		fd := int(os.Stdin.Fd())
		if term.IsTerminal(fd) {
			fmt.Fprint(errOut, "Password: ")
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(errOut)
			if err != nil {
				return "", fmt.Errorf("failed to read password: %w", err)
			}
			return nonEmptyPassword(string(b))
		}
		in = os.Stdin
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return nonEmptyPassword(strings.TrimRight(line, "\r\n"))
}

func nonEmptyPassword(p string) (string, error) {
	if p == "" {
		return "", errors.New("password required")
	}
	return p, nil
}

// displayName is the email when the backend knows it, else the user id.
func displayName(s service.Session) string {
	if s.Email != "" {
		return s.Email
	}
	return s.UserID
}
