package commands_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"reqdash/internal/commands"
	"reqdash/internal/config"
	"reqdash/internal/exitcode"
	"reqdash/internal/service"
	"reqdash/internal/testutil"
)

// browserService is a FakeService whose sign-in happens in a browser.
type browserService struct {
	*testutil.FakeService
	email  string
	called int
}

func (b *browserService) SignInWithBrowser(ctx context.Context, w io.Writer) (service.Session, error) {
	b.called++
	io.WriteString(w, "Open this URL in your browser:\n")
	uid := b.SignInAs(b.email)
	return service.Session{UserID: uid, Email: b.email}, nil
}

func newFlagSet(cmd commands.Command) *pflag.FlagSet {
	fs := pflag.NewFlagSet(cmd.Name(), pflag.ContinueOnError)
	cmd.RegisterFlags(fs)
	return fs
}

func TestLoginCommand_Success(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser("ada@example.com", "hunter2")

	cmd := &commands.LoginCmd{}
	cmd.SetInput(strings.NewReader("hunter2\n"))
	stdout, stderr, code := runCommand(t, cmd, svc, []string{"ada@example.com"}, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "logged in as ada@example.com\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if svc.CallCount("SignIn") != 1 {
		t.Errorf("expected one SignIn call, got %d", svc.CallCount("SignIn"))
	}
}

func TestLoginCommand_PasswordFile(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser("ada@example.com", "hunter2")

	path := filepath.Join(t.TempDir(), "password")
	if err := os.WriteFile(path, []byte("hunter2\r\nignored\n"), 0600); err != nil {
		t.Fatalf("failed to write password file: %v", err)
	}

	cmd := &commands.LoginCmd{}
	var outBuf, errBuf bytes.Buffer
	fs := newFlagSet(cmd)
	if err := fs.Parse([]string{"--password-file", path}); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	cfg := &config.Config{Dir: t.TempDir()}
	code := cmd.Run(context.Background(), cfg, svc, []string{"ada@example.com"}, &outBuf, &errBuf)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, errBuf.String())
	}
	if outBuf.String() != "logged in as ada@example.com\n" {
		t.Errorf("unexpected stdout %q", outBuf.String())
	}
}

func TestLoginCommand_BadCredentials(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser("ada@example.com", "hunter2")

	cmd := &commands.LoginCmd{}
	cmd.SetInput(strings.NewReader("wrong\n"))
	stdout, stderr, code := runCommand(t, cmd, svc, []string{"ada@example.com"}, false)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "error: Invalid login credentials\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestLoginCommand_AlreadyLoggedIn(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.SignInAs("ada@example.com")

	cmd := &commands.LoginCmd{}
	stdout, _, code := runCommand(t, cmd, svc, []string{"ada@example.com"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "already logged in as ada@example.com\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if svc.CallCount("SignIn") != 0 {
		t.Error("SignIn should not be called when a session exists")
	}
}

func TestLoginCommand_NoEmail(t *testing.T) {
	svc := testutil.NewFakeService()

	cmd := &commands.LoginCmd{}
	_, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: email required\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestLoginCommand_EmptyPassword(t *testing.T) {
	svc := testutil.NewFakeService()

	cmd := &commands.LoginCmd{}
	cmd.SetInput(strings.NewReader(""))
	_, stderr, code := runCommand(t, cmd, svc, []string{"ada@example.com"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: password required\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if svc.CallCount("SignIn") != 0 {
		t.Error("SignIn should not be called without a password")
	}
}

func TestLoginCommand_SignUp(t *testing.T) {
	svc := testutil.NewFakeService()

	cmd := &commands.LoginCmd{}
	cmd.SetSignUp(true)
	cmd.SetInput(strings.NewReader("hunter2\n"))
	stdout, stderr, code := runCommand(t, cmd, svc, []string{"new@example.com"}, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "logged in as new@example.com\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if _, err := svc.Session(context.Background()); err != nil {
		t.Errorf("expected a session after sign-up, got %v", err)
	}
}

func TestLoginCommand_SignUpNeedsConfirmation(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.ConfirmSignUp = true

	cmd := &commands.LoginCmd{}
	cmd.SetSignUp(true)
	cmd.SetInput(strings.NewReader("hunter2\n"))
	stdout, stderr, code := runCommand(t, cmd, svc, []string{"new@example.com"}, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	expected := "check your email to confirm your account, then run: reqdash login new@example.com\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestLoginCommand_SignUpAlreadyRegistered(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser("ada@example.com", "hunter2")

	cmd := &commands.LoginCmd{}
	cmd.SetSignUp(true)
	cmd.SetInput(strings.NewReader("hunter2\n"))
	_, stderr, code := runCommand(t, cmd, svc, []string{"ada@example.com"}, false)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: User already registered\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestLoginCommand_Browser(t *testing.T) {
	svc := &browserService{FakeService: testutil.NewFakeService(), email: "ada@gmail.com"}

	cmd := &commands.LoginCmd{}
	var outBuf, errBuf bytes.Buffer
	cfg := &config.Config{Dir: t.TempDir()}
	code := cmd.Run(context.Background(), cfg, svc, nil, &outBuf, &errBuf)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, errBuf.String())
	}
	if svc.called != 1 {
		t.Errorf("expected browser sign-in, got %d calls", svc.called)
	}
	if outBuf.String() != "logged in as ada@gmail.com\n" {
		t.Errorf("unexpected stdout %q", outBuf.String())
	}
	if !strings.Contains(errBuf.String(), "Open this URL") {
		t.Errorf("expected browser prompt on stderr, got %q", errBuf.String())
	}
	if svc.CallCount("SignIn") != 0 {
		t.Error("password sign-in should not be used")
	}
}

func TestLoginCommand_BrowserSignUpUnsupported(t *testing.T) {
	svc := &browserService{FakeService: testutil.NewFakeService(), email: "ada@gmail.com"}

	cmd := &commands.LoginCmd{}
	cmd.SetSignUp(true)
	var outBuf, errBuf bytes.Buffer
	cfg := &config.Config{Dir: t.TempDir()}
	code := cmd.Run(context.Background(), cfg, svc, nil, &outBuf, &errBuf)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if errBuf.String() != "error: --signup is not supported by this backend\n" {
		t.Errorf("unexpected stderr %q", errBuf.String())
	}
	if svc.called != 0 {
		t.Error("browser sign-in should not start")
	}
}

func TestLogoutCommand_Success(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.SignInAs("ada@example.com")

	cmd := &commands.LogoutCmd{}
	stdout, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok\\n', got %q", stdout)
	}
	if _, err := svc.Session(context.Background()); err != service.ErrNoSession {
		t.Errorf("expected no session after logout, got %v", err)
	}
}

func TestLogoutCommand_NotLoggedIn(t *testing.T) {
	svc := testutil.NewFakeService()

	cmd := &commands.LogoutCmd{}
	stdout, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "not logged in\n" {
		t.Errorf("expected 'not logged in\\n', got %q", stdout)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
}

func TestLogoutCommand_NotLoggedInQuiet(t *testing.T) {
	svc := testutil.NewFakeService()

	cmd := &commands.LogoutCmd{}
	stdout, _, code := runCommand(t, cmd, svc, nil, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout in quiet mode, got %q", stdout)
	}
}

func TestLogoutCommand_SessionCheckFailing(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.SignInAs("ada@example.com")
	svc.SessionErr = &service.Error{Kind: service.KindData, Message: "request timed out", Err: io.ErrUnexpectedEOF}

	cmd := &commands.LogoutCmd{}
	stdout, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok\\n', got %q", stdout)
	}
	if svc.CallCount("SignOut") != 1 {
		t.Errorf("expected one SignOut call, got %d", svc.CallCount("SignOut"))
	}
	svc.SessionErr = nil
	if _, err := svc.Session(context.Background()); err != service.ErrNoSession {
		t.Errorf("expected stored session removed, got %v", err)
	}
}

func TestLogoutCommand_Failure(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.SignInAs("ada@example.com")
	svc.SignOutErr = &service.Error{Kind: service.KindData, Message: "connection refused", Err: io.ErrUnexpectedEOF}

	cmd := &commands.LogoutCmd{}
	_, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if stderr != "error: connection refused\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}
