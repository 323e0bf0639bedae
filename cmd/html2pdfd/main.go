// Command html2pdfd serves HTML and URL to PDF conversion over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	html2pdf "github.com/alnah/go-html2pdf"
	"github.com/alnah/go-html2pdf/internal/config"
	"github.com/alnah/go-html2pdf/internal/fetch"
	"github.com/alnah/go-html2pdf/internal/logging"
	"github.com/alnah/go-html2pdf/internal/server"
	"github.com/alnah/go-html2pdf/workspace"
)

// Version is set at build time via ldflags.
var Version = "dev"

// shutdownTimeout bounds in-flight requests after a termination signal.
const shutdownTimeout = 30 * time.Second

// ErrNoAuthToken is returned when no token is configured.
var ErrNoAuthToken = errors.New("no auth token configured")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "html2pdfd: %v\n", err)
		os.Exit(1)
	}
}

// run starts the daemon and blocks until ctx is cancelled.
func run(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("html2pdfd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configName := fs.StringP("config", "c", "", "config file name or path")
	envFiles := fs.StringArray("env-file", nil, "KEY=VALUE file loaded before the environment (default ./.env)")
	version := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *version {
		fmt.Fprintf(stderr, "html2pdfd %s\n", Version)
		return nil
	}

	cfg, err := config.Load(*configName, *envFiles...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Server.AuthToken == "" {
		return fmt.Errorf("%w: set %s or %s", ErrNoAuthToken, config.EnvAuthToken, config.EnvAuthTokenLegacy)
	}

	logger, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	_, _ = maxprocs.Set(maxprocs.Logger(logger.Debugf))

	d := newDaemon(cfg, logger)
	return d.serve(ctx)
}

// daemon owns the long-lived pieces: converter, workspace registry, HTTP server.
type daemon struct {
	cfg       *config.Config
	logger    *logrus.Logger
	registry  *workspace.Registry
	converter *html2pdf.Converter
	server    *server.Server
}

func newDaemon(cfg *config.Config, logger *logrus.Logger) *daemon {
	registry := workspace.NewRegistry(
		workspace.WithSweepBackoff(cfg.Workspace.SweepBackoff),
		workspace.WithSweepMaxAttempts(cfg.Workspace.SweepMaxAttempts),
		workspace.WithSweepDeadline(cfg.Workspace.SweepDeadline),
		workspace.WithLogger(logger),
	)

	opts := []html2pdf.Option{
		html2pdf.WithTimeout(cfg.Render.Timeout),
		html2pdf.WithNoSandbox(cfg.Browser.NoSandbox),
		html2pdf.WithWorkspaceRoot(cfg.Workspace.Root),
		html2pdf.WithRegistry(registry),
		html2pdf.WithConcurrency(cfg.Browser.Concurrency),
		html2pdf.WithLogger(logger),
	}
	if cfg.Browser.Bin != "" {
		opts = append(opts, html2pdf.WithBrowserBin(cfg.Browser.Bin))
	}
	if len(cfg.Browser.Args) > 0 {
		opts = append(opts, html2pdf.WithLaunchArgs(cfg.Browser.Args...))
	}
	if cfg.Browser.Shared {
		opts = append(opts, html2pdf.WithSharedBrowser())
	}
	conv := html2pdf.NewConverter(opts...)

	fetchOpts := []fetch.Option{
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithMaxBodySize(cfg.Fetch.MaxBodySize),
	}
	if cfg.Fetch.UserAgent != "" {
		fetchOpts = append(fetchOpts, fetch.WithUserAgent(cfg.Fetch.UserAgent))
	}

	srv := server.New(conv, fetch.New(fetchOpts...), server.Config{
		AuthToken:   cfg.Server.AuthToken,
		MaxBodySize: cfg.Server.MaxBodySize,
		Defaults:    cfg.PayloadDefaults(),
		Retry: html2pdf.RetryPolicy{
			MaxAttempts: cfg.Render.Attempts,
			Interval:    cfg.Render.RetryInterval,
			Logger:      logger,
		},
	}, logger)

	return &daemon{cfg: cfg, logger: logger, registry: registry, converter: conv, server: srv}
}

// serve runs the janitor and the HTTP server until ctx ends, then drains
// requests, closes the browser and sweeps the remaining workspaces.
func (d *daemon) serve(ctx context.Context) error {
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		d.registry.RunJanitor(janitorCtx, d.cfg.Workspace.JanitorInterval)
	}()

	errCh := make(chan error, 1)
	go func() {
		d.logger.WithFields(logrus.Fields{
			"addr":    d.cfg.Server.Addr,
			"version": Version,
			"shared":  d.cfg.Browser.Shared,
		}).Info("html2pdfd listening")
		errCh <- d.server.Start(d.cfg.Server.Addr)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		d.logger.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.logger.WithError(err).Error("stopping HTTP server")
	}
	stopJanitor()
	<-janitorDone

	if err := d.converter.Close(); err != nil {
		d.logger.WithError(err).Warn("closing browser")
	}
	report := d.registry.SweepAll(shutdownCtx)
	d.logger.WithFields(logrus.Fields{
		"removed":   len(report.Removed),
		"remaining": len(report.Remaining),
	}).Info("workspaces swept")

	return serveErr
}
