package main

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	html2pdf "github.com/alnah/go-html2pdf"
	"github.com/alnah/go-html2pdf/internal/config"
	"github.com/alnah/go-html2pdf/workspace"
)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Stdout io.Writer
	Stderr io.Writer

	LoadConfig  func(nameOrPath string) (*config.Config, error)
	NewRenderer func(cfg *config.Config, logger logrus.FieldLogger) (html2pdf.Renderer, func() error)
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		LoadConfig:  func(name string) (*config.Config, error) { return config.Load(name) },
		NewRenderer: newConverter,
	}
}

// newConverter builds a Converter from settings. The returned func closes
// the browser and sweeps whatever workspace a failed render left behind.
func newConverter(cfg *config.Config, logger logrus.FieldLogger) (html2pdf.Renderer, func() error) {
	registry := workspace.NewRegistry(
		workspace.WithSweepBackoff(cfg.Workspace.SweepBackoff),
		workspace.WithSweepMaxAttempts(cfg.Workspace.SweepMaxAttempts),
		workspace.WithSweepDeadline(cfg.Workspace.SweepDeadline),
		workspace.WithLogger(logger),
	)

	opts := []html2pdf.Option{
		html2pdf.WithTimeout(cfg.Render.Timeout),
		html2pdf.WithNoSandbox(cfg.Browser.NoSandbox),
		html2pdf.WithRegistry(registry),
		html2pdf.WithWorkspaceRoot(cfg.Workspace.Root),
		html2pdf.WithLogger(logger),
	}
	if cfg.Browser.Bin != "" {
		opts = append(opts, html2pdf.WithBrowserBin(cfg.Browser.Bin))
	}
	if len(cfg.Browser.Args) > 0 {
		opts = append(opts, html2pdf.WithLaunchArgs(cfg.Browser.Args...))
	}

	conv := html2pdf.NewConverter(opts...)
	return conv, func() error {
		err := conv.Close()
		registry.SweepAll(context.Background())
		return err
	}
}
