package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"reqdash/internal/config"
	"reqdash/internal/exitcode"
	"reqdash/internal/service"
)

const configUsage = "reqdash config [--backend <supabase|googletasks>] [--url <url>] [--anon-key <key>]"

func init() {
	Register(&ConfigCmd{})
}

// ConfigCmd implements the config command. Without flags it prints the
// effective settings; with flags it updates config.yaml.
type ConfigCmd struct {
	backend string
	url     string
	anonKey string
}

// SetValues sets the flag values (for testing).
func (c *ConfigCmd) SetValues(backend, url, anonKey string) {
	c.backend, c.url, c.anonKey = backend, url, anonKey
}

func (c *ConfigCmd) Name() string       { return "config" }
func (c *ConfigCmd) Aliases() []string  { return nil }
func (c *ConfigCmd) Synopsis() string   { return "Show or change backend settings" }
func (c *ConfigCmd) Usage() string      { return configUsage }
func (c *ConfigCmd) NeedsBackend() bool { return false }
func (c *ConfigCmd) NeedsAuth() bool    { return false }

func (c *ConfigCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "", "")
	fs.StringVar(&c.url, "url", "", "")
	fs.StringVar(&c.anonKey, "anon-key", "", "")
}

func (c *ConfigCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	if c.backend == "" && c.url == "" && c.anonKey == "" {
		fmt.Fprintf(out, "config:   %s\n", cfg.ConfigPath())
		fmt.Fprintf(out, "backend:  %s\n", cfg.Backend)
		fmt.Fprintf(out, "url:      %s\n", orUnset(cfg.URL))
		fmt.Fprintf(out, "anon_key: %s\n", maskKey(cfg.AnonKey))
		return exitcode.Success
	}

	if c.backend != "" {
		b := strings.ToLower(c.backend)
		if b != config.BackendSupabase && b != config.BackendGoogleTasks {
			fmt.Fprintf(errOut, "error: unknown backend: %s\n", c.backend)
			return exitcode.UserError
		}
		cfg.Backend = b
	}
	if c.url != "" {
		cfg.URL = strings.TrimRight(strings.TrimSpace(c.url), "/")
	}
	if c.anonKey != "" {
		cfg.AnonKey = strings.TrimSpace(c.anonKey)
	}

	if err := cfg.Save(); err != nil {
		fmt.Fprintf(errOut, "error: failed to write %s: %v\n", cfg.ConfigPath(), err)
		return exitcode.BackendError
	}
	if !cfg.Quiet {
		fmt.Fprintf(out, "saved %s\n", cfg.ConfigPath())
	}
	return exitcode.Success
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// maskKey shows only the tail of a key.
func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "********"
	}
	return "..." + key[len(key)-6:]
}
