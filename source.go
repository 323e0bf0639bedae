package html2pdf

import (
	"net/url"
	"strings"
)

// SourceKind tells which variant a Source holds.
type SourceKind int

// Source kinds.
const (
	SourceURL SourceKind = iota + 1
	SourceHTML
)

func (k SourceKind) String() string {
	switch k {
	case SourceURL:
		return "url"
	case SourceHTML:
		return "html"
	default:
		return "unknown"
	}
}

// Source is the document to print: either a URL or inline HTML.
//
// A URL source may carry a Body fetched ahead of time; the body is then
// staged locally and the browser never contacts the remote host.
type Source struct {
	Kind SourceKind
	URL  string
	HTML string
	Body []byte
}

// URLSource returns a Source navigating to u.
func URLSource(u string) Source {
	return Source{Kind: SourceURL, URL: u}
}

// HTMLSource returns a Source rendering html.
func HTMLSource(html string) Source {
	return Source{Kind: SourceHTML, HTML: html}
}

// NewSource builds a Source from the url and html request fields.
// Exactly one of them must be non-empty.
func NewSource(rawURL, html string) (Source, error) {
	hasURL := strings.TrimSpace(rawURL) != ""
	hasHTML := html != ""

	switch {
	case hasURL && hasHTML:
		return Source{}, invalid(ErrInvalidOption, "url and html are mutually exclusive")
	case !hasURL && !hasHTML:
		return Source{}, invalid(ErrInvalidOption, "either url or html must be set")
	case hasHTML:
		return HTMLSource(html), nil
	}

	s := URLSource(strings.TrimSpace(rawURL))
	if err := s.Validate(); err != nil {
		return Source{}, err
	}
	return s, nil
}

// Validate checks the variant invariants.
func (s Source) Validate() error {
	switch s.Kind {
	case SourceHTML:
		if s.HTML == "" {
			return invalid(ErrInvalidOption, "html source is empty")
		}
		if s.URL != "" {
			return invalid(ErrInvalidOption, "url and html are mutually exclusive")
		}
		return nil
	case SourceURL:
		if s.HTML != "" {
			return invalid(ErrInvalidOption, "url and html are mutually exclusive")
		}
		u, err := url.Parse(s.URL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return &OptionError{Field: "url", Expected: "absolute http(s) URL", Actual: s.URL}
		}
		return nil
	default:
		return invalid(ErrInvalidOption, "either url or html must be set")
	}
}

// WithBody returns a copy of s carrying a prefetched body.
func (s Source) WithBody(body []byte) Source {
	s.Body = body
	return s
}

// Relaxed reports whether cross-origin protection may be lifted. Inline
// HTML never leaves the local workspace, so it is treated as same-origin.
func (s Source) Relaxed() bool {
	return s.Kind == SourceHTML
}

// needsStaging reports whether content must be written to the workspace.
func (s Source) needsStaging() bool {
	return s.Kind == SourceHTML || len(s.Body) > 0
}

// Request is a fully parsed generation request.
type Request struct {
	Source  Source
	Headers map[string]string // forwarded when fetching a URL source
	Options PrintOptions
}

// MergePayload overlays payload on base, recursing into nested objects, so
// a partial "margins" object keeps the base values of the sides it omits.
// Neither input is modified.
func MergePayload(base, payload map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(payload))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range payload {
		under, okBase := out[k].(map[string]any)
		over, okOver := v.(map[string]any)
		if okBase && okOver {
			out[k] = MergePayload(under, over)
			continue
		}
		out[k] = v
	}
	return out
}

// ParseRequest splits a decoded payload into source, fetch headers and
// resolved print options. See ResolveOptions for the option keys.
func ParseRequest(payload map[string]any) (Request, error) {
	p := fields{m: payload}

	rawURL, _, err := p.str("url")
	if err != nil {
		return Request{}, err
	}
	html, _, err := p.str("html")
	if err != nil {
		return Request{}, err
	}
	src, err := NewSource(rawURL, html)
	if err != nil {
		return Request{}, err
	}

	headers, err := parseHeaders(p)
	if err != nil {
		return Request{}, err
	}

	opts, err := ResolveOptions(payload)
	if err != nil {
		return Request{}, err
	}

	return Request{Source: src, Headers: headers, Options: opts}, nil
}

func parseHeaders(p fields) (map[string]string, error) {
	obj, ok, err := p.object("headers")
	if err != nil || !ok {
		return nil, err
	}
	headers := make(map[string]string, len(obj.m))
	for k := range obj.m {
		v, present, err := obj.str(k)
		if err != nil {
			return nil, err
		}
		if present {
			headers[k] = v
		}
	}
	return headers, nil
}
