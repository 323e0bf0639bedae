package html2pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"

	"github.com/alnah/go-html2pdf/internal/process"
)

// closeTimeout bounds teardown calls, which run after the request budget
// may already be spent.
const closeTimeout = 5 * time.Second

// pdfSignature starts every PDF document.
var pdfSignature = []byte("%PDF-")

// DefaultLaunchArgs are the Chromium switches used for server-side headless
// rendering. They are launch-time configuration, never per-request state.
var DefaultLaunchArgs = []string{
	"--no-zygote",
	"--disable-gpu",
	"--disable-software-rasterizer",
	"--disable-dev-shm-usage",
	"--disable-gl-drawing-for-tests",
	"--disable-canvas-aa",
	"--disable-2d-canvas-clip-aa",
	"--disable-breakpad",
	"--disable-infobars",
	"--disable-background-timer-throttling",
	"--disable-renderer-backgrounding",
	"--allow-http-background-page",
	"--mute-audio",
	"--no-first-run",
	"--no-pings",
	"--incognito",
}

// Compile-time interface checks.
var (
	_ browserLauncher = (*rodLauncher)(nil)
	_ browserLauncher = (*sharedRodLauncher)(nil)
	_ browserSession  = (*rodSession)(nil)
	_ browserPage     = (*rodPage)(nil)
)

// browserLauncher starts a browser session for one request.
type browserLauncher interface {
	Launch(ctx context.Context, relaxed bool) (browserSession, error)
	Close() error
}

// browserSession is one browser process (or isolated context) bound to one
// request. Close must be idempotent.
type browserSession interface {
	OpenPage(ctx context.Context) (browserPage, error)
	Close() error
}

// pageSetup holds configuration applied before navigation.
type pageSetup struct {
	DisableScripts bool
	EmulateMedia   string
	BypassCSP      bool
}

// browserPage drives a single tab through the render protocol.
type browserPage interface {
	Configure(ctx context.Context, setup pageSetup) error
	// Navigate enables page events, subscribes to load and lifecycle
	// notifications, then starts navigation. Events arriving before the
	// Wait calls are buffered.
	Navigate(ctx context.Context, url, lifecycleEvent string) error
	WaitLoad(ctx context.Context) error
	WaitLifecycle(ctx context.Context) error
	Print(ctx context.Context, req *proto.PagePrintToPDF) ([]byte, error)
	Close() error
}

// LaunchConfig describes how browser processes are started.
type LaunchConfig struct {
	Bin       string   // empty: ROD_BROWSER_BIN, then system lookup, then download
	Args      []string // extra switches, "--name" or "--name=value"
	NoSandbox bool
	Leakless  bool // guard against orphaned processes if this one dies
}

// newLauncher returns a configured rod launcher.
func (c LaunchConfig) newLauncher(ctx context.Context, relaxed bool) *launcher.Launcher {
	l := launcher.New().
		Context(ctx).
		Headless(true).
		Leakless(c.Leakless).
		NoSandbox(c.NoSandbox)

	if bin := c.resolveBin(); bin != "" {
		l = l.Bin(bin)
	}

	for _, arg := range append(append([]string{}, DefaultLaunchArgs...), c.Args...) {
		name, value := splitFlag(arg)
		if name == "" {
			continue
		}
		if value == "" {
			l = l.Set(flags.Flag(name))
		} else {
			l = l.Set(flags.Flag(name), value)
		}
	}

	if relaxed {
		l = l.Set("disable-web-security")
	}
	return l
}

// resolveBin picks the browser binary: explicit config, ROD_BROWSER_BIN, then
// an installed Chrome/Chromium. Empty lets rod download one.
func (c LaunchConfig) resolveBin() string {
	if c.Bin != "" {
		return c.Bin
	}
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		return bin
	}
	if bin, found := launcher.LookPath(); found {
		return bin
	}
	return ""
}

// splitFlag turns "--name=value" into ("name", "value").
func splitFlag(arg string) (string, string) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	name, value, _ := strings.Cut(arg, "=")
	return name, value
}

// ---------------------------------------------------------------------------
// One process per request
// ---------------------------------------------------------------------------

// rodLauncher starts a dedicated browser process for every session.
type rodLauncher struct {
	cfg    LaunchConfig
	logger logrus.FieldLogger
}

func newRodLauncher(cfg LaunchConfig, logger logrus.FieldLogger) *rodLauncher {
	return &rodLauncher{cfg: cfg, logger: logger}
}

// Launch starts Chromium and connects to it within ctx.
func (r *rodLauncher) Launch(ctx context.Context, relaxed bool) (browserSession, error) {
	l := r.cfg.newLauncher(ctx, relaxed)

	u, err := l.Launch()
	if err != nil {
		discardLauncher(l)
		return nil, fmt.Errorf("%w: %v", ErrLaunchFailure, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		discardLauncher(l)
		return nil, fmt.Errorf("%w: %v", ErrLaunchFailure, err)
	}

	r.logger.WithField("pid", l.PID()).Debug("browser launched")
	return &rodSession{browser: browser, launcher: l, owned: true, logger: r.logger}, nil
}

// Close is a no-op: sessions own their processes.
func (r *rodLauncher) Close() error { return nil }

// ---------------------------------------------------------------------------
// Shared process, one incognito context per request
// ---------------------------------------------------------------------------

// sharedRodLauncher keeps one long-lived browser and hands each session an
// isolated incognito context. A dead browser is relaunched on next use.
type sharedRodLauncher struct {
	cfg    LaunchConfig
	logger logrus.FieldLogger

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	closed   bool

	healthy func(*rod.Browser, int) bool // nil: check the process and CDP
}

func newSharedRodLauncher(cfg LaunchConfig, logger logrus.FieldLogger) *sharedRodLauncher {
	return &sharedRodLauncher{cfg: cfg, logger: logger}
}

// Launch returns a session on a fresh incognito context. Cross-origin
// relaxation cannot be applied per context, so relaxed sessions bypass CSP
// at the page level instead.
func (s *sharedRodLauncher) Launch(ctx context.Context, relaxed bool) (browserSession, error) {
	browser, pid, err := s.ensureBrowser(ctx)
	if err != nil {
		return nil, err
	}

	incognito, err := browser.Incognito()
	if err != nil {
		// Other requests may be rendering on this browser; keep it unless
		// it is gone.
		if s.dropIfDead(browser, pid) {
			s.logger.WithField("pid", pid).Warn("shared browser lost, relaunching on next use")
		}
		return nil, fmt.Errorf("%w: creating incognito context: %v", ErrSessionUnavailable, err)
	}

	return &rodSession{
		browser:   incognito,
		pid:       pid,
		bypassCSP: relaxed,
		logger:    s.logger,
	}, nil
}

func (s *sharedRodLauncher) ensureBrowser(ctx context.Context) (*rod.Browser, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, 0, fmt.Errorf("%w: launcher closed", ErrSessionUnavailable)
	}
	if s.browser != nil && process.Alive(s.launcher.PID()) {
		return s.browser, s.launcher.PID(), nil
	}
	s.shutdownLocked()

	// The shared process must outlive the request that happened to start it.
	l := s.cfg.newLauncher(context.WithoutCancel(ctx), false)
	u, err := launchWithin(ctx, l)
	if err != nil {
		return nil, 0, err
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		discardLauncher(l)
		return nil, 0, fmt.Errorf("%w: %v", ErrLaunchFailure, err)
	}

	s.browser = browser
	s.launcher = l
	s.logger.WithField("pid", l.PID()).Info("shared browser launched")
	return browser, l.PID(), nil
}

// launchWithin runs l.Launch but gives up when ctx ends.
func launchWithin(ctx context.Context, l *launcher.Launcher) (string, error) {
	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)
	go func() {
		u, err := l.Launch()
		done <- result{u, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			<-done
			discardLauncher(l)
		}()
		return "", fmt.Errorf("%w: %v", ErrLaunchFailure, ctx.Err())
	case r := <-done:
		if r.err != nil {
			discardLauncher(l)
			return "", fmt.Errorf("%w: %v", ErrLaunchFailure, r.err)
		}
		return r.url, nil
	}
}

// discardLauncher kills a browser whose launch failed and removes its
// user-data dir. rod's Cleanup waits for the process to exit, which never
// happens when it did not start, so the wait is bounded.
func discardLauncher(l *launcher.Launcher) {
	dir := l.Get(flags.UserDataDir)
	if l.PID() == 0 {
		_ = os.RemoveAll(dir)
		return
	}

	process.KillProcessGroup(l.PID())
	l.Kill()

	cleaned := make(chan struct{})
	go func() {
		l.Cleanup()
		close(cleaned)
	}()
	select {
	case <-cleaned:
	case <-time.After(closeTimeout):
		_ = os.RemoveAll(dir)
	}
}

// dropIfDead shuts b down when its process exited or it no longer answers
// over CDP, so the next Launch starts a new one. It reports whether b was
// dropped. A browser that was already replaced is left to its successor.
func (s *sharedRodLauncher) dropIfDead(b *rod.Browser, pid int) bool {
	if s.alive(b, pid) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == b {
		s.shutdownLocked()
	}
	return true
}

func (s *sharedRodLauncher) alive(b *rod.Browser, pid int) bool {
	if s.healthy != nil {
		return s.healthy(b, pid)
	}
	if !process.Alive(pid) {
		return false
	}
	_, err := b.Timeout(closeTimeout).Version()
	return err == nil
}

func (s *sharedRodLauncher) shutdownLocked() {
	if s.browser != nil {
		_ = s.browser.Timeout(closeTimeout).Close()
		s.browser = nil
	}
	if s.launcher != nil {
		process.KillProcessGroup(s.launcher.PID())
		s.launcher.Kill()
		s.launcher.Cleanup()
		s.launcher = nil
	}
}

// Close terminates the shared browser. Later launches fail.
func (s *sharedRodLauncher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.shutdownLocked()
	return nil
}

// ---------------------------------------------------------------------------
// Session and page
// ---------------------------------------------------------------------------

// rodSession is a connected browser. When owned, closing it terminates the
// process; otherwise only the incognito context is disposed.
type rodSession struct {
	browser   *rod.Browser
	launcher  *launcher.Launcher // nil unless owned
	owned     bool
	pid       int
	bypassCSP bool
	logger    logrus.FieldLogger

	once     sync.Once
	closeErr error
}

func (s *rodSession) processID() int {
	if s.launcher != nil {
		return s.launcher.PID()
	}
	return s.pid
}

// OpenPage opens a blank tab. A browser that died since launch yields
// ErrSessionUnavailable.
func (s *rodSession) OpenPage(ctx context.Context) (browserPage, error) {
	if pid := s.processID(); pid > 0 && !process.Alive(pid) {
		return nil, fmt.Errorf("%w: browser process %d exited", ErrSessionUnavailable, pid)
	}

	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	// Detach from the request context so teardown still works after a timeout.
	return &rodPage{page: page.Context(context.Background()), bypassCSP: s.bypassCSP}, nil
}

// Close disposes the context or terminates the owned process. Safe to call
// more than once.
func (s *rodSession) Close() error {
	s.once.Do(func() {
		s.closeErr = s.browser.Timeout(closeTimeout).Close()
		if !s.owned {
			return
		}
		pid := s.launcher.PID()
		process.KillProcessGroup(pid)
		s.launcher.Kill()
		s.launcher.Cleanup()
		s.logger.WithField("pid", pid).Debug("browser closed")
	})
	return s.closeErr
}

// rodPage implements browserPage over a rod tab.
type rodPage struct {
	page      *rod.Page
	bypassCSP bool

	waitLoad      func()
	waitLifecycle func()

	once     sync.Once
	closeErr error
}

// Configure applies script, media and CSP settings before navigation.
func (p *rodPage) Configure(ctx context.Context, setup pageSetup) error {
	page := p.page.Context(ctx)

	if setup.DisableScripts {
		if err := (proto.EmulationSetScriptExecutionDisabled{Value: true}).Call(page); err != nil {
			return fmt.Errorf("disabling scripts: %w", err)
		}
	}
	if setup.EmulateMedia != "" {
		if err := (proto.EmulationSetEmulatedMedia{Media: setup.EmulateMedia}).Call(page); err != nil {
			return fmt.Errorf("emulating media %q: %w", setup.EmulateMedia, err)
		}
	}
	if setup.BypassCSP || p.bypassCSP {
		if err := (proto.PageSetBypassCSP{Enabled: true}).Call(page); err != nil {
			return fmt.Errorf("bypassing CSP: %w", err)
		}
	}
	return nil
}

// Navigate subscribes before navigating so no event can be missed.
// Lifecycle events are matched against the navigation's loader id, which
// filters out milestones of the initial about:blank document.
func (p *rodPage) Navigate(ctx context.Context, url, lifecycleEvent string) error {
	page := p.page.Context(ctx)

	if err := (proto.PageEnable{}).Call(page); err != nil {
		return fmt.Errorf("enabling page events: %w", err)
	}

	var loaderID proto.NetworkLoaderID
	var loaderMu sync.Mutex

	p.waitLoad = page.WaitEvent(&proto.PageLoadEventFired{})

	if lifecycleEvent != "" {
		if err := (proto.PageSetLifecycleEventsEnabled{Enabled: true}).Call(page); err != nil {
			return fmt.Errorf("enabling lifecycle events: %w", err)
		}
		p.waitLifecycle = page.EachEvent(func(e *proto.PageLifecycleEvent) bool {
			loaderMu.Lock()
			defer loaderMu.Unlock()
			return e.Name == proto.PageLifecycleEventName(lifecycleEvent) && (loaderID == "" || e.LoaderID == loaderID)
		})
	}

	res, err := proto.PageNavigate{URL: url}.Call(page)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if res.ErrorText != "" {
		return fmt.Errorf("%w: %s", ErrPageLoad, res.ErrorText)
	}

	loaderMu.Lock()
	loaderID = res.LoaderID
	loaderMu.Unlock()
	return nil
}

// WaitLoad blocks until Page.loadEventFired or ctx ends.
func (p *rodPage) WaitLoad(ctx context.Context) error {
	if p.waitLoad == nil {
		return errors.New("WaitLoad called before Navigate")
	}
	p.waitLoad()
	return ctx.Err()
}

// WaitLifecycle blocks until the configured lifecycle event or ctx ends.
// Intermediate milestones are discarded.
func (p *rodPage) WaitLifecycle(ctx context.Context) error {
	if p.waitLifecycle == nil {
		return nil
	}
	p.waitLifecycle()
	return ctx.Err()
}

// Print issues Page.printToPDF and returns the decoded document.
func (p *rodPage) Print(ctx context.Context, req *proto.PagePrintToPDF) ([]byte, error) {
	reader, err := p.page.Context(ctx).PDF(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}

	pdf, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrPDFGeneration, err)
	}
	if !bytes.HasPrefix(pdf, pdfSignature) {
		return nil, fmt.Errorf("%w: output is not a PDF document (%d bytes)", ErrPDFGeneration, len(pdf))
	}
	return pdf, nil
}

// Close closes the tab. Safe to call more than once.
func (p *rodPage) Close() error {
	p.once.Do(func() {
		p.closeErr = p.page.Timeout(closeTimeout).Close()
	})
	return p.closeErr
}
