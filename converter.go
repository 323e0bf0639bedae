package html2pdf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alnah/go-html2pdf/internal/logging"
	"github.com/alnah/go-html2pdf/workspace"
)

// Converter turns HTML documents and URLs into PDF bytes through headless
// Chromium. Create with NewConverter, use Convert, and Close when done.
// A Converter is safe for concurrent use.
type Converter struct {
	cfg      converterConfig
	launcher browserLauncher
	registry *workspace.Registry
	slots    *renderSlots
	logger   logrus.FieldLogger

	closeOnce sync.Once
	closeErr  error
}

// converterConfig holds internal configuration for Converter.
type converterConfig struct {
	timeout       time.Duration
	launch        LaunchConfig
	shared        bool
	workspaceRoot string
	concurrency   int
}

// Option configures a Converter.
type Option func(*Converter)

// WithTimeout sets the render budget used when a request carries none,
// which is the case for options resolved from a payload without "timeout".
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("html2pdf: WithTimeout duration must be positive")
	}
	return func(c *Converter) {
		c.cfg.timeout = d
	}
}

// WithBrowserBin sets the Chrome/Chromium executable.
func WithBrowserBin(path string) Option {
	return func(c *Converter) {
		c.cfg.launch.Bin = path
	}
}

// WithLaunchArgs appends Chromium switches ("--name" or "--name=value").
func WithLaunchArgs(args ...string) Option {
	return func(c *Converter) {
		c.cfg.launch.Args = append(c.cfg.launch.Args, args...)
	}
}

// WithNoSandbox toggles Chromium's sandbox. It is disabled by default, as
// containers rarely grant the privileges it needs.
func WithNoSandbox(noSandbox bool) Option {
	return func(c *Converter) {
		c.cfg.launch.NoSandbox = noSandbox
	}
}

// WithSharedBrowser keeps one browser process for all requests and isolates
// each in its own incognito context, instead of launching a process per
// request.
func WithSharedBrowser() Option {
	return func(c *Converter) {
		c.cfg.shared = true
	}
}

// WithWorkspaceRoot sets where per-request workspaces are created.
// Empty means os.TempDir().
func WithWorkspaceRoot(dir string) Option {
	return func(c *Converter) {
		c.cfg.workspaceRoot = dir
	}
}

// WithRegistry shares a workspace registry, typically one swept by a janitor.
func WithRegistry(r *workspace.Registry) Option {
	return func(c *Converter) {
		c.registry = r
	}
}

// WithConcurrency bounds simultaneous renders. Zero derives it from
// GOMAXPROCS, see ResolveConcurrency.
func WithConcurrency(n int) Option {
	return func(c *Converter) {
		c.cfg.concurrency = n
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Converter) {
		if l != nil {
			c.logger = l
		}
	}
}

// withLauncher replaces the browser launcher (tests).
func withLauncher(l browserLauncher) Option {
	return func(c *Converter) {
		c.launcher = l
	}
}

// Result is a successful conversion.
type Result struct {
	PDF       []byte
	RequestID string
	Duration  time.Duration
}

// NewConverter creates a Converter. No browser is started until the first
// Convert call.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		cfg: converterConfig{
			timeout: DefaultTimeout,
			launch:  LaunchConfig{NoSandbox: true, Leakless: true},
		},
		logger: logging.Discard(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.registry == nil {
		c.registry = workspace.NewRegistry(workspace.WithLogger(c.logger))
	}
	if c.launcher == nil {
		if c.cfg.shared {
			c.launcher = newSharedRodLauncher(c.cfg.launch, c.logger)
		} else {
			c.launcher = newRodLauncher(c.cfg.launch, c.logger)
		}
	}
	c.slots = newRenderSlots(ResolveConcurrency(c.cfg.concurrency))

	return c
}

// Convert renders req and returns the PDF. It never retries; see Generate.
// Recovers from internal panics to prevent crashes from propagating to callers.
func (c *Converter) Convert(ctx context.Context, req Request) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	if err := req.Source.Validate(); err != nil {
		return nil, err
	}
	opts := req.Options
	if opts.Timeout == 0 {
		opts.Timeout = c.cfg.timeout
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	started := time.Now()

	if err := c.slots.acquire(ctx); err != nil {
		return nil, fmt.Errorf("waiting for a render slot: %w", err)
	}
	defer c.slots.release()

	r := &renderer{
		launcher:      c.launcher,
		registry:      c.registry,
		workspaceRoot: c.cfg.workspaceRoot,
		logger: c.logger.WithFields(logrus.Fields{
			"source":  req.Source.Kind,
			"options": opts.String(),
		}),
	}
	pdf, err := r.render(ctx, renderJob{id: id, source: req.Source, options: opts})
	if err != nil {
		return nil, err
	}

	return &Result{PDF: pdf, RequestID: id, Duration: time.Since(started)}, nil
}

// Registry returns the workspace registry.
func (c *Converter) Registry() *workspace.Registry {
	return c.registry
}

// Close releases the shared browser, if any. Workspaces left by failed
// renders are not touched; sweep the registry for that.
func (c *Converter) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.launcher.Close()
	})
	return c.closeErr
}
