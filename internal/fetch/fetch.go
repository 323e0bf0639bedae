// Package fetch retrieves remote documents ahead of rendering, so the browser
// only ever loads local content and upstream failures surface before a
// browser is launched.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrUpstreamFetch reports a transport failure or a non-2xx response.
var ErrUpstreamFetch = errors.New("upstream fetch failed")

// Defaults for New.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 32 << 20 // 32 MiB
	DefaultUserAgent   = "go-html2pdf"
)

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %s: status %d", ErrUpstreamFetch, e.URL, e.StatusCode)
}

// Is makes StatusError match ErrUpstreamFetch.
func (e *StatusError) Is(target error) bool {
	return target == ErrUpstreamFetch
}

// Fetcher downloads documents over HTTP(S).
type Fetcher struct {
	client  *resty.Client
	maxBody int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds each fetch, connection and body included.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.SetTimeout(d)
		}
	}
}

// WithMaxBodySize caps the accepted body. Larger bodies fail with ErrUpstreamFetch.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// WithUserAgent sets the User-Agent sent when the request carries none.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.client.SetHeader("User-Agent", ua)
	}
}

// New returns a Fetcher. Redirects are followed up to 10 hops.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: resty.New().
			SetTimeout(DefaultTimeout).
			SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
			SetHeader("User-Agent", DefaultUserAgent),
		maxBody: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch GETs url with headers and returns the body of a 2xx response.
func (f *Fetcher) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstreamFetch, url, err)
	}

	raw := resp.RawBody()
	defer raw.Close()

	if !resp.IsSuccess() {
		_, _ = io.Copy(io.Discard, io.LimitReader(raw, 64<<10))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode()}
	}

	body, err := io.ReadAll(io.LimitReader(raw, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading body: %v", ErrUpstreamFetch, url, err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("%w: %s: body exceeds %d bytes", ErrUpstreamFetch, url, f.maxBody)
	}
	return body, nil
}
