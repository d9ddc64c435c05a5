package commands_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"reqdash/internal/commands"
	"reqdash/internal/config"
	"reqdash/internal/exitcode"
	"reqdash/internal/output"
	"reqdash/internal/service"
	"reqdash/internal/testutil"
)

// runCommand is a helper to run a command with FakeService.
func runCommand(t *testing.T, cmd commands.Command, svc *testutil.FakeService, args []string, quiet bool) (stdout, stderr string, code int) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer

	cfg := &config.Config{
		Dir:   t.TempDir(),
		Quiet: quiet,
	}

	ctx := context.Background()
	var s service.Service
	if svc != nil {
		s = svc
	}
	code = cmd.Run(ctx, cfg, s, args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

// seed signs in and adds three requests. In list order (newest first)
// they are: 1 "Order toner" DONE, 2 "Replace badge reader" IN_PROGRESS,
// 3 "Fix projector" NEW.
func seed(t *testing.T) (svc *testutil.FakeService, ids []string) {
	t.Helper()
	svc = testutil.NewFakeService()
	uid := svc.SignInAs("ada@example.com")
	oldest := svc.AddRequest(uid, "Fix projector", service.StatusNew, 1)
	middle := svc.AddRequest(uid, "Replace badge reader", service.StatusInProgress, 2)
	newest := svc.AddRequest(uid, "Order toner", service.StatusDone, 3)
	return svc, []string{newest, middle, oldest}
}

func statusOf(t *testing.T, svc *testutil.FakeService, id string) service.Status {
	t.Helper()
	for _, r := range svc.Rows() {
		if r.ID == id {
			return r.Status
		}
	}
	t.Fatalf("request %s not found", id)
	return ""
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	cmd := &commands.VersionCmd{}

	stdout, stderr, code := runCommand(t, cmd, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "reqdash 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	cmd := &commands.HelpCmd{}

	stdout, stderr, code := runCommand(t, cmd, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	for _, name := range []string{"Usage:", "reqdash list", "reqdash add", "reqdash status", "reqdash login", "--quiet"} {
		if !strings.Contains(stdout, name) {
			t.Errorf("help output should contain %q", name)
		}
	}
}

// Tests for list command
func TestListCommand_AllRequests(t *testing.T) {
	svc, ids := seed(t)

	cmd := &commands.ListCmd{}
	stdout, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}

	lines := strings.Split(strings.TrimSuffix(stdout, "\n"), "\n")
	if len(lines) != 7 {
		t.Fatalf("expected counters plus 3 two-line rows, got %d lines:\n%s", len(lines), stdout)
	}
	if lines[0] != "NEW 1  IN_PROGRESS 1  DONE 1" {
		t.Errorf("unexpected counters line %q", lines[0])
	}
	titles := []string{"Order toner", "Replace badge reader", "Fix projector"}
	for i, id := range ids {
		line := lines[1+2*i]
		prefix := strings.Repeat(" ", 3) + string(rune('1'+i)) + "  " + output.ShortID(id)
		if !strings.HasPrefix(line, prefix) {
			t.Errorf("row %d: expected prefix %q, got %q", i+1, prefix, line)
		}
		if !strings.HasSuffix(line, titles[i]) {
			t.Errorf("row %d: expected title %q, got %q", i+1, titles[i], line)
		}
	}
}

func TestListCommand_StatusFilterKeepsNumbers(t *testing.T) {
	svc, ids := seed(t)

	cmd := &commands.ListCmd{}
	cmd.SetStatus("in_progress")
	stdout, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	// Counters stay over the full list
	if !strings.HasPrefix(stdout, "NEW 1  IN_PROGRESS 1  DONE 1\n") {
		t.Errorf("expected unfiltered counters, got %q", stdout)
	}
	if !strings.Contains(stdout, "   2  "+output.ShortID(ids[1])) {
		t.Errorf("expected in-progress request numbered 2, got %q", stdout)
	}
	if strings.Contains(stdout, "Order toner") || strings.Contains(stdout, "Fix projector") {
		t.Errorf("expected only the in-progress request, got %q", stdout)
	}
}

func TestListCommand_FilterWithNoMatches(t *testing.T) {
	svc := testutil.NewFakeService()
	uid := svc.SignInAs("ada@example.com")
	svc.AddRequest(uid, "Fix projector", service.StatusNew, 1)

	cmd := &commands.ListCmd{}
	cmd.SetStatus("DONE")
	stdout, _, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	expected := "NEW 1  IN_PROGRESS 0  DONE 0\nno requests found\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestListCommand_Empty(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.SignInAs("ada@example.com")

	cmd := &commands.ListCmd{}
	stdout, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	expected := "NEW 0  IN_PROGRESS 0  DONE 0\nno requests found\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestListCommand_EmptyQuiet(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.SignInAs("ada@example.com")

	cmd := &commands.ListCmd{}
	stdout, _, code := runCommand(t, cmd, svc, nil, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "NEW 0  IN_PROGRESS 0  DONE 0\n" {
		t.Errorf("expected counters only with --quiet, got %q", stdout)
	}
}

func TestListCommand_OnlyOwnRequests(t *testing.T) {
	svc := testutil.NewFakeService()
	other := svc.AddUser("grace@example.com", "secret")
	svc.AddRequest(other, "Someone else's request", service.StatusNew, 1)
	uid := svc.SignInAs("ada@example.com")
	svc.AddRequest(uid, "Mine", service.StatusNew, 1)

	cmd := &commands.ListCmd{}
	stdout, _, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if strings.Contains(stdout, "Someone else's request") {
		t.Errorf("another user's request must not be listed, got %q", stdout)
	}
	if !strings.HasPrefix(stdout, "NEW 1  IN_PROGRESS 0  DONE 0\n") {
		t.Errorf("expected counters over own requests, got %q", stdout)
	}
}

func TestListCommand_InvalidStatus(t *testing.T) {
	svc, _ := seed(t)

	cmd := &commands.ListCmd{}
	cmd.SetStatus("BLOCKED")
	_, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: invalid filter: BLOCKED\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if svc.CallCount("List") != 0 {
		t.Error("List should not be called for an invalid filter")
	}
}

func TestListCommand_NotLoggedIn(t *testing.T) {
	svc := testutil.NewFakeService()

	cmd := &commands.ListCmd{}
	stdout, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "error: not logged in (run: reqdash login)\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if svc.CallCount("List") != 0 {
		t.Error("List must not be called without a session")
	}
}

func TestListCommand_BackendFailure(t *testing.T) {
	svc, _ := seed(t)
	svc.ListErr = &service.Error{Kind: service.KindData, Message: "connection refused", Err: errors.New("dial tcp 127.0.0.1:54321: connect: connection refused")}

	cmd := &commands.ListCmd{}
	stdout, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "error: connection refused\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestListCommand_ReleasesSubscription(t *testing.T) {
	svc, _ := seed(t)

	cmd := &commands.ListCmd{}
	_, _, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if svc.Subscribers() != 0 {
		t.Errorf("expected no live subscriptions, got %d", svc.Subscribers())
	}
}

func TestListCommand_UnexpectedArgument(t *testing.T) {
	svc, _ := seed(t)

	cmd := &commands.ListCmd{}
	_, stderr, code := runCommand(t, cmd, svc, []string{"work"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: unexpected argument: work\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// Tests for add command
func TestAddCommand_Success(t *testing.T) {
	svc := testutil.NewFakeService()
	uid := svc.SignInAs("ada@example.com")

	cmd := commands.NewAddCmd()
	stdout, stderr, code := runCommand(t, cmd, svc, []string{"Fix", "the", "projector"}, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok\\n', got %q", stdout)
	}

	rows := svc.Rows()
	if len(rows) != 1 {
		t.Fatalf("expected 1 request, got %d", len(rows))
	}
	r := rows[0]
	if r.Title != "Fix the projector" || r.Owner != uid || r.Status != service.StatusNew || r.Priority != service.PriorityDefault {
		t.Errorf("unexpected request %+v", r)
	}
	if r.Description != nil {
		t.Errorf("expected no description, got %q", *r.Description)
	}
	// Create is followed by a reload
	if svc.CallCount("List") != 2 {
		t.Errorf("expected initial load plus reload, got %d List calls", svc.CallCount("List"))
	}
}

func TestAddCommand_DescriptionAndPriority(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.SignInAs("ada@example.com")

	cmd := commands.NewAddCmd()
	cmd.SetDescription("Room 4B, bulb is out")
	cmd.SetPriority(service.PriorityHigh)
	_, stderr, code := runCommand(t, cmd, svc, []string{"Fix projector"}, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	r := svc.Rows()[0]
	if r.Priority != service.PriorityHigh {
		t.Errorf("expected priority %d, got %d", service.PriorityHigh, r.Priority)
	}
	if r.Description == nil || *r.Description != "Room 4B, bulb is out" {
		t.Errorf("unexpected description %v", r.Description)
	}
}

func TestAddCommand_Quiet(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.SignInAs("ada@example.com")

	cmd := commands.NewAddCmd()
	stdout, _, code := runCommand(t, cmd, svc, []string{"Order toner"}, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" {
		t.Errorf("expected no output with --quiet, got %q", stdout)
	}
}

func TestAddCommand_NoTitle(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.SignInAs("ada@example.com")

	cmd := commands.NewAddCmd()
	stdout, stderr, code := runCommand(t, cmd, svc, []string{"  "}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "error: title required\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if svc.CallCount("Create") != 0 {
		t.Error("Create should not be called without a title")
	}
}

func TestAddCommand_PriorityOutOfRange(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.SignInAs("ada@example.com")

	cmd := commands.NewAddCmd()
	cmd.SetPriority(5)
	_, stderr, code := runCommand(t, cmd, svc, []string{"Order toner"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: priority must be between 1 and 3\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if svc.CallCount("Create") != 0 {
		t.Error("Create should not be called for an invalid priority")
	}
}

func TestAddCommand_PriorityZero(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.SignInAs("ada@example.com")

	cmd := commands.NewAddCmd()
	cmd.SetPriority(0)
	stdout, stderr, code := runCommand(t, cmd, svc, []string{"Fix invoice"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "error: priority must be between 1 and 3\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if svc.CallCount("Create") != 0 {
		t.Error("Create should not be called for priority 0")
	}
	if len(svc.Rows()) != 0 {
		t.Errorf("expected no stored rows, got %+v", svc.Rows())
	}
}

func TestAddCommand_RejectedByBackend(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.SignInAs("ada@example.com")
	svc.CreateErr = &service.Error{Kind: service.KindData, Message: `new row violates row-level security policy for table "requests"`, Status: 403}

	cmd := commands.NewAddCmd()
	_, stderr, code := runCommand(t, cmd, svc, []string{"Order toner"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: new row violates row-level security policy for table \"requests\"\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
	// No reload after a failed mutation
	if svc.CallCount("List") != 1 {
		t.Errorf("expected only the initial load, got %d List calls", svc.CallCount("List"))
	}
}

// Tests for done, start and status commands
func TestDoneCommand_ByNumber(t *testing.T) {
	svc, ids := seed(t)

	cmd := &commands.DoneCmd{}
	stdout, stderr, code := runCommand(t, cmd, svc, []string{"3"}, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok\\n', got %q", stdout)
	}
	if got := statusOf(t, svc, ids[2]); got != service.StatusDone {
		t.Errorf("expected DONE, got %s", got)
	}
	if got := statusOf(t, svc, ids[1]); got != service.StatusInProgress {
		t.Errorf("other requests must not change, got %s", got)
	}
}

func TestDoneCommand_ByIDPrefix(t *testing.T) {
	svc, ids := seed(t)

	cmd := &commands.DoneCmd{}
	_, stderr, code := runCommand(t, cmd, svc, []string{ids[1]}, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if got := statusOf(t, svc, ids[1]); got != service.StatusDone {
		t.Errorf("expected DONE, got %s", got)
	}
}

func TestDoneCommand_NoRef(t *testing.T) {
	svc, _ := seed(t)

	cmd := &commands.DoneCmd{}
	_, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: request reference required\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestDoneCommand_InvalidRef(t *testing.T) {
	svc, _ := seed(t)

	cmd := &commands.DoneCmd{}
	_, stderr, code := runCommand(t, cmd, svc, []string{"a/b"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: invalid request reference: a/b\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if svc.CallCount("List") != 0 {
		t.Error("List should not be called for an invalid reference")
	}
}

func TestDoneCommand_OutOfRange(t *testing.T) {
	svc, _ := seed(t)

	cmd := &commands.DoneCmd{}
	_, stderr, code := runCommand(t, cmd, svc, []string{"9"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: request number out of range: 9\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if svc.CallCount("UpdateStatus") != 0 {
		t.Error("UpdateStatus should not be called")
	}
}

func TestStartCommand(t *testing.T) {
	svc, ids := seed(t)

	cmd := &commands.StartCmd{}
	_, stderr, code := runCommand(t, cmd, svc, []string{"1"}, true)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if got := statusOf(t, svc, ids[0]); got != service.StatusInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", got)
	}
}

func TestStatusCommand_AnyTransition(t *testing.T) {
	svc, ids := seed(t)

	// DONE back to NEW is allowed; there is no terminal state.
	cmd := &commands.StatusCmd{}
	_, stderr, code := runCommand(t, cmd, svc, []string{"1", "new"}, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if got := statusOf(t, svc, ids[0]); got != service.StatusNew {
		t.Errorf("expected NEW, got %s", got)
	}
}

func TestStatusCommand_MissingStatus(t *testing.T) {
	svc, _ := seed(t)

	cmd := &commands.StatusCmd{}
	_, stderr, code := runCommand(t, cmd, svc, []string{"1"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: status required\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestStatusCommand_InvalidStatus(t *testing.T) {
	svc, _ := seed(t)

	cmd := &commands.StatusCmd{}
	_, stderr, code := runCommand(t, cmd, svc, []string{"1", "BLOCKED"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: invalid status: BLOCKED\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if svc.CallCount("UpdateStatus") != 0 {
		t.Error("UpdateStatus should not be called")
	}
}

func TestStatusCommand_BackendFailure(t *testing.T) {
	svc, ids := seed(t)
	svc.UpdateErr = &service.Error{Kind: service.KindData, Message: "request timed out", Err: context.DeadlineExceeded}

	cmd := &commands.StatusCmd{}
	_, stderr, code := runCommand(t, cmd, svc, []string{"2", "DONE"}, false)

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if stderr != "error: request timed out\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if got := statusOf(t, svc, ids[1]); got != service.StatusInProgress {
		t.Errorf("status must be unchanged, got %s", got)
	}
}

// Tests for rm command
func TestRmCommand_Success(t *testing.T) {
	svc, ids := seed(t)

	cmd := &commands.RmCmd{}
	stdout, stderr, code := runCommand(t, cmd, svc, []string{"2"}, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok\\n', got %q", stdout)
	}
	rows := svc.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 requests left, got %d", len(rows))
	}
	for _, r := range rows {
		if r.ID == ids[1] {
			t.Errorf("request %s should have been deleted", ids[1])
		}
	}
}

func TestRmCommand_NoRef(t *testing.T) {
	svc, _ := seed(t)

	cmd := &commands.RmCmd{}
	stdout, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "error: request reference required\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestRmCommand_UnknownID(t *testing.T) {
	svc, _ := seed(t)

	cmd := &commands.RmCmd{}
	_, stderr, code := runCommand(t, cmd, svc, []string{"zzzz"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: request not found: zzzz\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if svc.CallCount("Delete") != 0 {
		t.Error("Delete should not be called")
	}
}
