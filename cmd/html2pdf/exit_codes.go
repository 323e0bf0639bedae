package main

import (
	"errors"
	"os"

	html2pdf "github.com/alnah/go-html2pdf"
	"github.com/alnah/go-html2pdf/internal/config"
	"github.com/alnah/go-html2pdf/internal/fetch"
	"github.com/alnah/go-html2pdf/internal/hints"
	"github.com/alnah/go-html2pdf/internal/yamlutil"

	"github.com/go-rod/rod/lib/launcher"
)

// Exit codes for the html2pdf CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess  = 0 // PDF written
	ExitGeneral  = 1 // General/unexpected error
	ExitUsage    = 2 // Invalid flags, config, or print options
	ExitIO       = 3 // File not found, permission denied, workspace
	ExitBrowser  = 4 // Browser launch, page load, print
	ExitUpstream = 5 // --url could not be fetched
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, html2pdf.ErrUpstreamFetch) {
		return ExitUpstream
	}

	// Checked before the I/O group: a launch failure may wrap os.ErrNotExist.
	if errors.Is(err, html2pdf.ErrLaunchFailure) ||
		errors.Is(err, html2pdf.ErrSessionUnavailable) ||
		errors.Is(err, html2pdf.ErrRenderTimeout) ||
		errors.Is(err, html2pdf.ErrPageLoad) ||
		errors.Is(err, html2pdf.ErrPDFGeneration) {
		return ExitBrowser
	}

	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadInput) ||
		errors.Is(err, ErrReadOptions) ||
		errors.Is(err, ErrWritePDF) ||
		errors.Is(err, html2pdf.ErrWorkspaceNotWritable) {
		return ExitIO
	}

	if errors.Is(err, ErrUsage) ||
		errors.Is(err, ErrNoInput) ||
		errors.Is(err, ErrSourceFlags) ||
		errors.Is(err, ErrInvalidFetch) ||
		errors.Is(err, html2pdf.ErrInvalidInput) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrConfigInvalid) ||
		errors.Is(err, yamlutil.ErrNotMapping) {
		return ExitUsage
	}

	return ExitGeneral
}

// hintFor returns an actionable hint for err, or "".
func hintFor(err error) string {
	var status *fetch.StatusError
	switch {
	case errors.As(err, &status):
		return hints.ForUpstream(status.StatusCode)
	case errors.Is(err, html2pdf.ErrUpstreamFetch):
		return hints.ForUpstream(0)
	case errors.Is(err, html2pdf.ErrLaunchFailure):
		_, found := launcher.LookPath()
		return hints.ForBrowserLaunch(found)
	case errors.Is(err, html2pdf.ErrRenderTimeout):
		return hints.ForTimeout()
	case errors.Is(err, html2pdf.ErrWorkspaceNotWritable):
		return hints.ForWorkspace()
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(config.SearchedPaths("html2pdf"))
	case errors.Is(err, ErrWritePDF):
		return hints.ForOutputDirectory()
	default:
		return ""
	}
}
