package html2pdf

import (
	"errors"
	"fmt"

	"github.com/alnah/go-html2pdf/internal/fetch"
)

// Sentinel errors for library operations.
var (
	// Input validation. Every validation error wraps ErrInvalidInput.
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidOption      = errors.New("invalid option")
	ErrUnknownUnit        = errors.New("unknown measurement unit")
	ErrUnknownPaperFormat = errors.New("unknown paper format")
	ErrScaleOutOfRange    = errors.New("scale out of range")
	ErrInvalidOrientation = errors.New("invalid orientation")

	// ErrUpstreamFetch reports a failed or non-2xx fetch of a source URL.
	ErrUpstreamFetch = fetch.ErrUpstreamFetch

	// Browser session and rendering.
	ErrLaunchFailure        = errors.New("failed to launch browser")
	ErrSessionUnavailable   = errors.New("browser session unavailable")
	ErrRenderTimeout        = errors.New("render timed out")
	ErrWorkspaceNotWritable = errors.New("workspace not writable")
	ErrPageLoad             = errors.New("failed to load page")
	ErrPDFGeneration        = errors.New("PDF generation failed")

	// ErrRenderFailed is returned by Generate once every attempt has failed.
	ErrRenderFailed = errors.New("failed to generate PDF")
)

// OptionError reports a payload field holding a value of the wrong type
// or outside its allowed range.
type OptionError struct {
	Field    string
	Expected string
	Actual   any
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("%v: %s: expected %s, got %v (%T)", ErrInvalidOption, e.Field, e.Expected, e.Actual, e.Actual)
}

// Is makes OptionError match both ErrInvalidOption and ErrInvalidInput.
func (e *OptionError) Is(target error) bool {
	return target == ErrInvalidOption || target == ErrInvalidInput
}

// invalid wraps a specific validation sentinel so it also matches ErrInvalidInput.
func invalid(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrInvalidInput, sentinel, fmt.Sprintf(format, args...))
}

// IsTransient reports whether a failed generation is worth retrying.
// Validation and upstream errors never are.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUpstreamFetch) {
		return false
	}
	return errors.Is(err, ErrLaunchFailure) ||
		errors.Is(err, ErrSessionUnavailable) ||
		errors.Is(err, ErrRenderTimeout)
}
