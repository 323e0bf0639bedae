package markdown

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// TestToHTML - Markdown features
// ---------------------------------------------------------------------------

func TestToHTML(t *testing.T) {
	t.Parallel()

	c := NewConverter()

	tests := []struct {
		name     string
		input    string
		contains []string
		excludes []string
	}{
		{
			name:     "heading and title",
			input:    "# Quarterly Report\n\nBody",
			contains: []string{"<title>Quarterly Report</title>", `<h1 id="quarterly-report">Quarterly Report</h1>`},
		},
		{
			name:     "default title",
			input:    "no heading",
			contains: []string{"<title>Document</title>"},
		},
		{
			name:     "table",
			input:    "| a | b |\n|---|---|\n| 1 | 2 |",
			contains: []string{"<table>", "<td>1</td>"},
		},
		{
			name:     "highlight",
			input:    "this is ==important== text",
			contains: []string{"<mark>important</mark>"},
			excludes: []string{"\uE000", "\uE001"},
		},
		{
			name:     "code block uses classes",
			input:    "```go\nfunc main() {}\n```",
			contains: []string{`class="chroma"`},
		},
		{
			name:     "raw html dropped",
			input:    "<script>alert(1)</script>",
			excludes: []string{"<script>alert(1)</script>"},
		},
		{
			name:     "title escaped",
			input:    "# A <b> & C",
			contains: []string{"<title>A &lt;b&gt; &amp; C</title>"},
		},
		{
			name:     "crlf normalized",
			input:    "line one\r\nline two",
			contains: []string{"line one<br />\nline two"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := c.ToHTML(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("ToHTML() error = %v", err)
			}
			if !strings.HasPrefix(got, "<!DOCTYPE html>") {
				t.Error("expected a full HTML document")
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q", want)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("output contains %q", bad)
				}
			}
		})
	}
}

func TestToHTML_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewConverter().ToHTML(ctx, "# x")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestPreprocess(t *testing.T) {
	t.Parallel()

	got := preprocess("a\r\n\n\n\n\nb ==c==")
	want := "a\n\nb \uE000c\uE001"
	if got != want {
		t.Errorf("preprocess() = %q, want %q", got, want)
	}
}

func TestChromaCSS(t *testing.T) {
	t.Parallel()

	if css := chromaCSS("github"); !strings.Contains(css, ".chroma") {
		t.Errorf("chromaCSS() = %q, want .chroma rules", css)
	}
}
