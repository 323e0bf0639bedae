// Package markdown turns Markdown files into standalone HTML documents that
// the PDF engine can print. GitHub-flavored extensions, footnotes, ==mark==
// highlights and syntax-highlighted code blocks are supported.
package markdown

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// ErrConversion indicates Markdown to HTML conversion failed.
var ErrConversion = errors.New("markdown conversion failed")

// Highlight placeholders use Unicode Private Use Area characters, which
// pass through goldmark unchanged and are swapped for <mark> afterwards.
const (
	markStart = "\uE000"
	markEnd   = "\uE001"
)

var (
	crlfOrCR           = regexp.MustCompile(`\r\n?`)
	multipleBlankLines = regexp.MustCompile(`\n{3,}`)
	highlightPattern   = regexp.MustCompile(`==(.*?)==`)
	firstHeading       = regexp.MustCompile(`(?m)^#\s+(.+?)\s*#*\s*$`)
)

// documentTemplate wraps the fragment in an HTML5 document. Code highlighting
// uses a monochrome chroma style inlined in the head.
const documentTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; line-height: 1.5; }
pre { padding: 0.75em; overflow-x: auto; background: #f6f8fa; }
table { border-collapse: collapse; }
th, td { border: 1px solid #d0d7de; padding: 0.3em 0.6em; }
mark { background: #fff3a3; }
%s
</style>
</head>
<body>
%s
</body>
</html>`

// Converter converts Markdown using goldmark (pure Go).
type Converter struct {
	md  goldmark.Markdown
	css string
}

// NewConverter creates a Converter with GFM extensions and syntax highlighting.
func NewConverter() *Converter {
	const style = "github"

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			highlighting.NewHighlighting(
				highlighting.WithStyle(style),
				highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
			),
		),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithXHTML(),
			// WithUnsafe is not set: raw HTML in the source is dropped.
		),
	)

	return &Converter{md: md, css: chromaCSS(style)}
}

// ToHTML converts content to a standalone HTML5 document. The title is taken
// from the first level-one heading.
// Goldmark has no context support, so conversion runs in a goroutine and
// ctx only bounds the wait.
func (c *Converter) ToHTML(ctx context.Context, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		html string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		src := preprocess(content)
		var buf bytes.Buffer
		if err := c.md.Convert([]byte(src), &buf); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", ErrConversion, err)}
			return
		}
		body := strings.NewReplacer(markStart, "<mark>", markEnd, "</mark>").Replace(buf.String())
		done <- result{html: fmt.Sprintf(documentTemplate, html.EscapeString(title(src)), c.css, body)}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.html, r.err
	}
}

// preprocess normalizes line endings, marks ==highlights== and compresses
// runs of blank lines.
func preprocess(content string) string {
	content = crlfOrCR.ReplaceAllString(content, "\n")
	content = highlightPattern.ReplaceAllString(content, markStart+"$1"+markEnd)
	return multipleBlankLines.ReplaceAllString(content, "\n\n")
}

func title(src string) string {
	m := firstHeading.FindStringSubmatch(src)
	if m == nil {
		return "Document"
	}
	return strings.NewReplacer(markStart, "", markEnd, "").Replace(m[1])
}

// chromaCSS renders the class-based stylesheet for a chroma style.
func chromaCSS(style string) string {
	var buf bytes.Buffer
	if err := chromahtml.New(chromahtml.WithClasses(true)).WriteCSS(&buf, styles.Get(style)); err != nil {
		return ""
	}
	return buf.String()
}
