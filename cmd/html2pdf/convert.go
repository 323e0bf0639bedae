package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	html2pdf "github.com/alnah/go-html2pdf"
	"github.com/alnah/go-html2pdf/internal/config"
	"github.com/alnah/go-html2pdf/internal/docpath"
	"github.com/alnah/go-html2pdf/internal/fetch"
	"github.com/alnah/go-html2pdf/internal/logging"
	"github.com/alnah/go-html2pdf/internal/markdown"
	"github.com/alnah/go-html2pdf/internal/yamlutil"
)

// Sentinel errors for CLI operations.
var (
	ErrNoInput      = errors.New("one of --url, --html or --markdown is required")
	ErrSourceFlags  = errors.New("--url, --html and --markdown are mutually exclusive")
	ErrReadInput    = errors.New("failed to read input file")
	ErrReadOptions  = errors.New("failed to read options file")
	ErrInvalidFetch = errors.New("invalid --header")
	ErrWritePDF     = errors.New("failed to write PDF file")
)

// previewSize is how many bytes of each end --preview shows.
const previewSize = 128

// filePermissions for written PDFs: rw-r--r--.
const filePermissions = 0o644

// runConvert resolves the request, renders it and writes the result.
func runConvert(ctx context.Context, f *convertFlags, env *Environment) error {
	cfg, err := env.LoadConfig(f.config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := cfg.Log.Level
	if f.verbose {
		level = "debug"
	}
	logger, err := logging.New(env.Stderr, level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrConfigInvalid, err)
	}

	payload, err := buildPayload(ctx, f, cfg)
	if err != nil {
		return err
	}
	req, err := html2pdf.ParseRequest(payload)
	if err != nil {
		return err
	}

	if req.Source.Kind == html2pdf.SourceURL {
		body, err := newFetcher(cfg).Fetch(ctx, req.Source.URL, req.Headers)
		if err != nil {
			return err
		}
		req.Source = req.Source.WithBody(body)
	}

	renderer, closeRenderer := env.NewRenderer(cfg, logger)
	defer func() {
		if err := closeRenderer(); err != nil {
			logger.WithError(err).Warn("closing browser")
		}
	}()

	policy := html2pdf.RetryPolicy{
		MaxAttempts: cfg.Render.Attempts,
		Interval:    cfg.Render.RetryInterval,
		Logger:      logger,
	}
	res, err := html2pdf.Generate(ctx, renderer, req, policy)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"request_id": res.RequestID,
		"bytes":      len(res.PDF),
		"elapsed":    res.Duration,
	}).Debug("pdf generated")

	return writeOutput(f, res.PDF, env)
}

func newFetcher(cfg *config.Config) *fetch.Fetcher {
	opts := []fetch.Option{
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithMaxBodySize(cfg.Fetch.MaxBodySize),
	}
	if cfg.Fetch.UserAgent != "" {
		opts = append(opts, fetch.WithUserAgent(cfg.Fetch.UserAgent))
	}
	return fetch.New(opts...)
}

// buildPayload layers config defaults, the --options file and flags, in
// increasing precedence, into a request payload.
func buildPayload(ctx context.Context, f *convertFlags, cfg *config.Config) (map[string]any, error) {
	payload := cfg.PayloadDefaults()

	if f.options != "" {
		data, err := os.ReadFile(f.options) // #nosec G304 -- user-provided path
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReadOptions, err)
		}
		fromFile, err := yamlutil.UnmarshalMap(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrReadOptions, f.options, err)
		}
		payload = html2pdf.MergePayload(payload, fromFile)
	}

	payload = html2pdf.MergePayload(payload, flagOptions(f))

	if err := addSource(ctx, f, payload); err != nil {
		return nil, err
	}
	if len(f.headers) > 0 {
		headers, err := parseHeaderFlags(f.headers)
		if err != nil {
			return nil, err
		}
		payload["headers"] = headers
	}
	return payload, nil
}

// flagOptions returns the print options set on the command line.
func flagOptions(f *convertFlags) map[string]any {
	opts := make(map[string]any)

	if f.set("format") {
		opts["format"] = f.page.format
	}
	if f.set("landscape") && f.page.landscape {
		opts["orientation"] = string(html2pdf.OrientationLandscape)
	}
	if f.set("unit") {
		opts["unit"] = f.page.unit
	}
	if f.set("margin") {
		m := f.page.margin
		opts["margins"] = map[string]any{"top": m, "right": m, "bottom": m, "left": m}
	}
	if f.set("scale") {
		opts["scale"] = f.page.scale
	}
	if f.set("pages") {
		opts["pageRanges"] = f.page.pageRanges
	}
	if f.set("header-template") {
		opts["header"] = f.page.headerTemplate
	}
	if f.set("footer-template") {
		opts["footer"] = f.page.footerTemplate
	}
	if f.set("no-background") {
		opts["printBackground"] = !f.page.noBackground
	}
	if f.set("wait") {
		opts["waitForLifecycleEvent"] = f.render.wait
	}
	if f.set("timeout") {
		opts["timeout"] = math.Ceil(f.render.timeout.Seconds())
	}
	if f.set("media") {
		opts["emulateMedia"] = f.render.emulateMedia
	}
	if f.set("no-scripts") {
		opts["disableScriptExecution"] = f.render.disableScripts
	}
	return opts
}

// addSource puts the url or html key in payload. Local files have their
// relative resource paths anchored to their own directory.
func addSource(ctx context.Context, f *convertFlags, payload map[string]any) error {
	set := 0
	for _, s := range []string{f.source.url, f.source.html, f.source.markdown} {
		if s != "" {
			set++
		}
	}
	switch {
	case set == 0:
		return ErrNoInput
	case set > 1:
		return ErrSourceFlags
	}

	switch {
	case f.source.url != "":
		payload["url"] = f.source.url
		return nil

	case f.source.markdown != "":
		content, err := readInput(f.source.markdown)
		if err != nil {
			return err
		}
		html, err := markdown.NewConverter().ToHTML(ctx, content)
		if err != nil {
			return err
		}
		return putLocalHTML(payload, html, f.source.markdown)

	case strings.HasPrefix(f.source.html, "@"):
		path := strings.TrimPrefix(f.source.html, "@")
		content, err := readInput(path)
		if err != nil {
			return err
		}
		return putLocalHTML(payload, content, path)

	default:
		payload["html"] = f.source.html
		return nil
	}
}

func putLocalHTML(payload map[string]any, html, path string) error {
	anchored, err := docpath.Absolutize(html, filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrReadInput, path, err)
	}
	payload["html"] = anchored
	return nil
}

func readInput(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided path
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReadInput, err)
	}
	return string(data), nil
}

// parseHeaderFlags turns "Name: value" pairs into a payload headers object.
func parseHeaderFlags(raw []string) (map[string]any, error) {
	headers := make(map[string]any, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q (want \"Name: value\")", ErrInvalidFetch, h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// writeOutput writes pdf to the output file, stdout, or a preview of it.
func writeOutput(f *convertFlags, pdf []byte, env *Environment) error {
	if f.preview {
		_, err := env.Stdout.Write(preview(pdf))
		return err
	}

	if f.output == "" || f.output == "-" {
		if _, err := env.Stdout.Write(pdf); err != nil {
			return fmt.Errorf("%w: %v", ErrWritePDF, err)
		}
		return nil
	}

	if dir := filepath.Dir(f.output); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("%w: %w", ErrWritePDF, err)
		}
	}
	if err := os.WriteFile(f.output, pdf, filePermissions); err != nil {
		return fmt.Errorf("%w: %w", ErrWritePDF, err)
	}
	return nil
}

// preview shows both ends of pdf around a "[...]" marker. Short documents
// are shown whole.
func preview(pdf []byte) []byte {
	if len(pdf) <= 2*previewSize {
		out := append([]byte{}, pdf...)
		return append(out, '\n')
	}
	var buf bytes.Buffer
	buf.Write(pdf[:previewSize])
	buf.WriteString("\n[...]\n")
	buf.Write(pdf[len(pdf)-previewSize:])
	buf.WriteByte('\n')
	return buf.Bytes()
}
