// Package config loads settings for the html2pdf daemon and CLI from a YAML
// file, a .env file and the environment, in that order of precedence
// (later wins).
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/alnah/go-html2pdf/internal/fileutil"
	"github.com/alnah/go-html2pdf/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrConfigInvalid   = errors.New("invalid config")
)

// appDir is the directory searched under os.UserConfigDir().
const appDir = "go-html2pdf"

// Config holds all settings.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	Render    RenderConfig    `yaml:"render"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Log       LogConfig       `yaml:"log"`

	// Defaults are print options applied under every request payload,
	// in the request payload format (format, margins, scale, ...).
	Defaults map[string]any `yaml:"defaults"`
}

// ServerConfig defines the HTTP adapter.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	AuthToken    string        `yaml:"authToken"` // required by the daemon
	MaxBodySize  string        `yaml:"maxBodySize"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// BrowserConfig defines how Chromium is launched.
type BrowserConfig struct {
	Bin         string   `yaml:"bin"`
	Args        []string `yaml:"args"`
	NoSandbox   bool     `yaml:"noSandbox"`
	Shared      bool     `yaml:"shared"` // one process, incognito context per request
	Concurrency int      `yaml:"concurrency"`
}

// RenderConfig defines per-request budgets and retries.
type RenderConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	Attempts      int           `yaml:"attempts"`
	RetryInterval time.Duration `yaml:"retryInterval"`
}

// FetchConfig defines upstream fetching of URL sources.
type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxBodySize int64         `yaml:"maxBodySize"`
	UserAgent   string        `yaml:"userAgent"`
}

// WorkspaceConfig defines scratch directories and their cleanup.
type WorkspaceConfig struct {
	Root             string        `yaml:"root"` // empty = os.TempDir()
	JanitorInterval  time.Duration `yaml:"janitorInterval"`
	SweepBackoff     time.Duration `yaml:"sweepBackoff"`
	SweepMaxAttempts int           `yaml:"sweepMaxAttempts"`
	SweepDeadline    time.Duration `yaml:"sweepDeadline"`
}

// LogConfig defines logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			MaxBodySize:  "10M",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Browser: BrowserConfig{NoSandbox: true},
		Render: RenderConfig{
			Timeout:       30 * time.Second,
			Attempts:      3,
			RetryInterval: time.Second,
		},
		Fetch: FetchConfig{
			Timeout:     30 * time.Second,
			MaxBodySize: 32 << 20,
		},
		Workspace: WorkspaceConfig{
			JanitorInterval:  10 * time.Minute,
			SweepBackoff:     2 * time.Second,
			SweepMaxAttempts: 5,
			SweepDeadline:    30 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// PayloadDefaults returns a copy of Defaults. When it sets no timeout,
// render.timeout is added in whole seconds, rounded up.
func (c *Config) PayloadDefaults() map[string]any {
	out := make(map[string]any, len(c.Defaults)+1)
	for k, v := range c.Defaults {
		out[k] = v
	}
	if _, ok := out["timeout"]; !ok && c.Render.Timeout > 0 {
		out["timeout"] = math.Ceil(c.Render.Timeout.Seconds())
	}
	return out
}

// Validate checks ranges and enumerations.
// Called automatically by Load, but available for consumers
// who construct Config manually.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrConfigInvalid)
	}
	for name, d := range map[string]time.Duration{
		"render.timeout":            c.Render.Timeout,
		"fetch.timeout":             c.Fetch.Timeout,
		"workspace.janitorInterval": c.Workspace.JanitorInterval,
		"workspace.sweepDeadline":   c.Workspace.SweepDeadline,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrConfigInvalid, name, d)
		}
	}
	if c.Render.Attempts < 1 {
		return fmt.Errorf("%w: render.attempts must be at least 1, got %d", ErrConfigInvalid, c.Render.Attempts)
	}
	if c.Render.RetryInterval < 0 || c.Workspace.SweepBackoff < 0 {
		return fmt.Errorf("%w: intervals must not be negative", ErrConfigInvalid)
	}
	if c.Workspace.SweepMaxAttempts < 1 {
		return fmt.Errorf("%w: workspace.sweepMaxAttempts must be at least 1, got %d", ErrConfigInvalid, c.Workspace.SweepMaxAttempts)
	}
	if c.Browser.Concurrency < 0 {
		return fmt.Errorf("%w: browser.concurrency must not be negative", ErrConfigInvalid)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q (must be text or json)", ErrConfigInvalid, c.Log.Format)
	}
	return nil
}

// Load builds the configuration: defaults, then the YAML file (if
// nameOrPath is not empty), then env files, then the environment.
func Load(nameOrPath string, envFiles ...string) (*Config, error) {
	cfg := DefaultConfig()

	if nameOrPath != "" {
		fileCfg, err := LoadFile(nameOrPath)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML file by path or config name on top of the defaults.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's searched in the current directory and the user config
// directory. Returns an error if the file is not found (no silent fallback).
func LoadFile(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !isFilePath(nameOrPath) {
		var err error
		if configPath, err = resolveConfigPath(nameOrPath); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	return cfg, nil
}

// LoadEnvFiles loads KEY=VALUE files into the process environment without
// overriding variables already set. With no argument it loads ./.env when
// present. Explicitly named files must exist.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		if !fileutil.FileExists(".env") {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("loading env files: %w", err)
	}
	return nil
}

// Environment variable names.
const (
	EnvAddr            = "HTML2PDF_ADDR"
	EnvAuthToken       = "HTML2PDF_AUTH_TOKEN"
	EnvAuthTokenLegacy = "AUTH_TOKEN"
	EnvBrowserBin      = "HTML2PDF_BROWSER_BIN"
	EnvRodBrowserBin   = "ROD_BROWSER_BIN"
	EnvNoSandbox       = "HTML2PDF_NO_SANDBOX"
	EnvSharedBrowser   = "HTML2PDF_SHARED_BROWSER"
	EnvConcurrency     = "HTML2PDF_CONCURRENCY"
	EnvTimeout         = "HTML2PDF_TIMEOUT"
	EnvAttempts        = "HTML2PDF_ATTEMPTS"
	EnvWorkspaceRoot   = "HTML2PDF_WORKSPACE_ROOT"
	EnvLogLevel        = "HTML2PDF_LOG_LEVEL"
	EnvLogFormat       = "HTML2PDF_LOG_FORMAT"
)

// ApplyEnv overrides fields from environment variables looked up with
// lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	str(&c.Server.Addr, EnvAddr)
	str(&c.Server.AuthToken, EnvAuthToken, EnvAuthTokenLegacy)
	str(&c.Browser.Bin, EnvBrowserBin, EnvRodBrowserBin)
	str(&c.Workspace.Root, EnvWorkspaceRoot)
	str(&c.Log.Level, EnvLogLevel)
	str(&c.Log.Format, EnvLogFormat)

	for key, dst := range map[string]*bool{
		EnvNoSandbox:     &c.Browser.NoSandbox,
		EnvSharedBrowser: &c.Browser.Shared,
	} {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q is not a boolean", ErrConfigInvalid, key, v)
			}
			*dst = b
		}
	}

	for key, dst := range map[string]*int{
		EnvConcurrency: &c.Browser.Concurrency,
		EnvAttempts:    &c.Render.Attempts,
	} {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q is not an integer", ErrConfigInvalid, key, v)
			}
			*dst = n
		}
	}

	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrConfigInvalid, EnvTimeout, v, err)
		}
		c.Render.Timeout = d
	}
	return nil
}

// parseSeconds accepts a Go duration ("45s") or a bare number of seconds.
func parseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// isFilePath returns true if the string looks like a file path.
func isFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/go-html2pdf/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, appDir, name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}

// SearchedPaths lists where a config name would be looked up, for hints.
func SearchedPaths(name string) []string {
	paths := []string{name + ".yaml", name + ".yml"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, appDir, name+".yaml"))
	}
	return paths
}
