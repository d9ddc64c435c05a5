// Package config handles the XDG configuration directory, the config file and file paths.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// AppName is the application directory name.
	AppName = "reqdash"

	// ConfigFile is the optional settings filename.
	ConfigFile = "config.yaml"

	// SessionFile is the stored supabase session filename.
	SessionFile = "session.json"

	// OAuthClientFile is the Google OAuth client credentials filename.
	OAuthClientFile = "oauth_client.json"

	// TokenFile is the stored Google OAuth token filename.
	TokenFile = "token.json"

	// DebugLogFile receives debug logs while the dashboard owns the terminal.
	DebugLogFile = "debug.log"
)

// Backend names.
const (
	BackendSupabase    = "supabase"
	BackendGoogleTasks = "googletasks"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string `yaml:"-"`

	// Backend selects the managed backend: "supabase" (default) or "googletasks".
	Backend string `yaml:"backend"`

	// URL is the supabase project URL.
	URL string `yaml:"url"`

	// AnonKey is the supabase anon (public) API key.
	AnonKey string `yaml:"anon_key"`

	// Debug enables debug logging.
	Debug bool `yaml:"-"`

	// Quiet suppresses informational output.
	Quiet bool `yaml:"-"`

	// LogOutput receives debug logs. Defaults to stderr.
	LogOutput io.Writer `yaml:"-"`
}

// New creates a new Config with the default or specified config directory,
// reading config.yaml when present and applying environment overrides.
// If configDir is empty, uses XDG_CONFIG_HOME/reqdash or $HOME/.config/reqdash.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{Dir: dir}

	data, err := os.ReadFile(cfg.ConfigPath())
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", ConfigFile, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFile, err)
	}

	cfg.applyEnv()

	if cfg.Backend == "" {
		cfg.Backend = BackendSupabase
	}
	switch cfg.Backend {
	case BackendSupabase, BackendGoogleTasks:
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := firstEnv("REQDASH_BACKEND"); v != "" {
		c.Backend = strings.ToLower(v)
	}
	if v := firstEnv("REQDASH_URL", "SUPABASE_URL"); v != "" {
		c.URL = v
	}
	if v := firstEnv("REQDASH_ANON_KEY", "SUPABASE_ANON_KEY"); v != "" {
		c.AnonKey = v
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(os.Getenv(n)); v != "" {
			return v
		}
	}
	return ""
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// ConfigPath returns the path to config.yaml.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.Dir, ConfigFile)
}

// SessionPath returns the path to the stored supabase session.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Dir, SessionFile)
}

// OAuthClientPath returns the path to the Google OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// TokenPath returns the path to the stored Google OAuth token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasOAuthClient checks if the OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// Logger returns the structured logger for this invocation.
// Without --debug every record is discarded.
func (c *Config) Logger() *slog.Logger {
	if !c.Debug {
		return slog.New(slog.DiscardHandler)
	}
	w := c.LogOutput
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// DebugLogPath returns the path to debug.log.
func (c *Config) DebugLogPath() string {
	return filepath.Join(c.Dir, DebugLogFile)
}

// RedirectDebugLog points LogOutput at debug.log, appending. It does nothing
// without Debug or when LogOutput is already set. The returned func closes
// the file and is never nil.
func (c *Config) RedirectDebugLog() (func(), error) {
	if !c.Debug || c.LogOutput != nil {
		return func() {}, nil
	}
	if err := c.EnsureDir(); err != nil {
		return func() {}, err
	}
	f, err := os.OpenFile(c.DebugLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return func() {}, err
	}
	c.LogOutput = f
	return func() { f.Close() }, nil
}

// Save writes the backend settings to config.yaml with mode 0600.
func (c *Config) Save() error {
	if err := c.EnsureDir(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.ConfigPath(), data, 0600)
}
