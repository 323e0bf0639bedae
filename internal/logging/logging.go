// Package logging builds the logrus loggers used by the library and binaries.
package logging

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrInvalidFormat is returned for log formats other than text and json.
var ErrInvalidFormat = errors.New("invalid log format")

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Discard returns a logger that drops everything. Library code defaults to it
// so embedding applications see no output unless they opt in.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

// New returns a logger writing to w with the given level and format.
// Empty level means "info"; empty format means "text".
func New(w io.Writer, level, format string) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(w)

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	l.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", FormatText:
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	case FormatJSON:
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("%w: %q (must be text or json)", ErrInvalidFormat, format)
	}

	return l, nil
}
