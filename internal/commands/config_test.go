package commands_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"reqdash/internal/commands"
	"reqdash/internal/config"
	"reqdash/internal/exitcode"
)

func runConfig(t *testing.T, cfg *config.Config, cmd *commands.ConfigCmd) (stdout, stderr string, code int) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	code = cmd.Run(context.Background(), cfg, nil, nil, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func TestConfigCommand_Show(t *testing.T) {
	cfg := &config.Config{
		Dir:     t.TempDir(),
		Backend: config.BackendSupabase,
		URL:     "https://abc.supabase.co",
		AnonKey: "eyJhbGciOiJIUzI1NiJ9.secret-part",
	}

	stdout, stderr, code := runConfig(t, cfg, &commands.ConfigCmd{})

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	for _, want := range []string{
		"backend:  supabase\n",
		"url:      https://abc.supabase.co\n",
		"anon_key: ...t-part\n",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output, got:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "secret") {
		t.Errorf("anon key not masked: %s", stdout)
	}
}

func TestConfigCommand_ShowUnset(t *testing.T) {
	cfg := &config.Config{Dir: t.TempDir(), Backend: config.BackendSupabase}

	stdout, _, _ := runConfig(t, cfg, &commands.ConfigCmd{})

	if !strings.Contains(stdout, "url:      (not set)\n") || !strings.Contains(stdout, "anon_key: (not set)\n") {
		t.Errorf("unexpected output:\n%s", stdout)
	}
}

func TestConfigCommand_Save(t *testing.T) {
	t.Setenv("REQDASH_BACKEND", "")
	t.Setenv("REQDASH_URL", "")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("REQDASH_ANON_KEY", "")
	t.Setenv("SUPABASE_ANON_KEY", "")

	dir := t.TempDir()
	cfg, err := config.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	cmd := &commands.ConfigCmd{}
	cmd.SetValues("", "https://abc.supabase.co/", "anon")

	stdout, stderr, code := runConfig(t, cfg, cmd)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if !strings.HasPrefix(stdout, "saved ") {
		t.Errorf("expected saved message, got %q", stdout)
	}

	loaded, err := config.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.URL != "https://abc.supabase.co" || loaded.AnonKey != "anon" || loaded.Backend != config.BackendSupabase {
		t.Errorf("unexpected saved config: %+v", loaded)
	}
}

func TestConfigCommand_UnknownBackend(t *testing.T) {
	cfg := &config.Config{Dir: t.TempDir(), Backend: config.BackendSupabase}
	cmd := &commands.ConfigCmd{}
	cmd.SetValues("firebase", "", "")

	_, stderr, code := runConfig(t, cfg, cmd)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: unknown backend: firebase\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestConfigCommand_UnexpectedArg(t *testing.T) {
	cfg := &config.Config{Dir: t.TempDir()}
	var outBuf, errBuf bytes.Buffer

	code := (&commands.ConfigCmd{}).Run(context.Background(), cfg, nil, []string{"url"}, &outBuf, &errBuf)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
}
