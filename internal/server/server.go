// Package server exposes the converter over HTTP.
//
// POST / takes a JSON payload (url or html, fetch headers, print options)
// authenticated by the X-AUTH-TOKEN header and answers with application/pdf.
// GET /health answers "ok".
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	html2pdf "github.com/alnah/go-html2pdf"
	"github.com/alnah/go-html2pdf/internal/logging"
)

// HeaderAuthToken carries the shared secret.
const HeaderAuthToken = "X-AUTH-TOKEN"

// DefaultMaxBodySize limits request payloads (echo BodyLimit syntax).
const DefaultMaxBodySize = "10M"

// Fetcher retrieves the body of a URL source before rendering.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// Config holds the HTTP adapter settings.
type Config struct {
	// AuthToken must match X-AUTH-TOKEN. Empty rejects every request.
	AuthToken   string
	MaxBodySize string
	// Defaults are merged under each payload; payload keys win.
	Defaults map[string]any
	Retry    html2pdf.RetryPolicy
}

// Server is the HTTP adapter.
type Server struct {
	echo     *echo.Echo
	renderer html2pdf.Renderer
	fetcher  Fetcher
	cfg      Config
	logger   logrus.FieldLogger
}

// New wires routes and middleware. A nil logger discards output.
func New(r html2pdf.Renderer, f Fetcher, cfg Config, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.MaxBodySize == "" {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = html2pdf.DefaultRetryPolicy()
	}
	if cfg.Retry.Logger == nil {
		cfg.Retry.Logger = logger
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, renderer: r, fetcher: f, cfg: cfg, logger: logger}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency,
				"request_id": v.RequestID,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request failed")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))
	e.Use(middleware.BodyLimit(cfg.MaxBodySize))

	e.GET("/health", s.handleHealth)
	e.POST("/", s.handleGenerate)

	return s
}

// Handler returns the HTTP handler, for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *Server) handleGenerate(c echo.Context) error {
	if !s.authorized(c.Request().Header.Get(HeaderAuthToken)) {
		return echo.NewHTTPError(http.StatusForbidden, "invalid or missing "+HeaderAuthToken)
	}

	var payload map[string]any
	if err := c.Echo().JSONSerializer.Deserialize(c, &payload); err != nil && !errors.Is(err, io.EOF) {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, "malformed JSON body").SetInternal(err)
	}

	req, err := html2pdf.ParseRequest(html2pdf.MergePayload(s.cfg.Defaults, payload))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}

	ctx := c.Request().Context()
	log := s.logger.WithField("request_id", c.Response().Header().Get(echo.HeaderXRequestID))

	if req.Source.Kind == html2pdf.SourceURL {
		body, err := s.fetcher.Fetch(ctx, req.Source.URL, req.Headers)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, err.Error()).SetInternal(err)
		}
		req.Source = req.Source.WithBody(body)
	}

	started := time.Now()
	res, err := html2pdf.Generate(ctx, s.renderer, req, s.cfg.Retry)
	if err != nil {
		return echo.NewHTTPError(statusFor(err), "failed to generate PDF").SetInternal(err)
	}

	log.WithFields(logrus.Fields{
		"render_id": res.RequestID,
		"bytes":     len(res.PDF),
		"elapsed":   time.Since(started),
	}).Info("pdf generated")

	return c.Blob(http.StatusOK, "application/pdf", res.PDF)
}

func (s *Server) authorized(token string) bool {
	if s.cfg.AuthToken == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) == 1
}

// statusFor maps a generation error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, html2pdf.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, html2pdf.ErrUpstreamFetch):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the status.
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
