package html2pdf

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alnah/go-html2pdf/workspace"
)

func TestStageContent(t *testing.T) {
	t.Parallel()

	t.Run("bare url is returned as is", func(t *testing.T) {
		t.Parallel()

		ws := workspace.New(t.TempDir())
		got, err := stageContent(URLSource("https://example.com"), ws)
		if err != nil {
			t.Fatalf("stageContent() error = %v", err)
		}
		if got != "https://example.com" {
			t.Errorf("got %q", got)
		}
		if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
			t.Error("workspace created for a bare URL")
		}
	})

	t.Run("html is written to a fresh file", func(t *testing.T) {
		t.Parallel()

		ws := workspace.New(t.TempDir())
		first, err := stageContent(HTMLSource("<p>one</p>"), ws)
		if err != nil {
			t.Fatalf("stageContent() error = %v", err)
		}
		second, err := stageContent(HTMLSource("<p>two</p>"), ws)
		if err != nil {
			t.Fatalf("stageContent() error = %v", err)
		}
		if first == second {
			t.Error("staged files should have unique names")
		}

		path := strings.TrimPrefix(first, "file://")
		if filepath.Dir(filepath.FromSlash(path)) != ws.Dir {
			t.Errorf("staged at %q, want inside %q", path, ws.Dir)
		}
		data, err := os.ReadFile(filepath.FromSlash(path))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "<p>one</p>" {
			t.Errorf("content = %q", data)
		}
	})

	t.Run("unwritable root", func(t *testing.T) {
		t.Parallel()

		root := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(root, nil, 0o600); err != nil {
			t.Fatal(err)
		}
		ws := workspace.New(root)

		_, err := stageContent(HTMLSource("<p>"), ws)
		if !errors.Is(err, ErrWorkspaceNotWritable) {
			t.Errorf("error = %v, want ErrWorkspaceNotWritable", err)
		}
	})
}

func TestInjectBaseHref(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		base string
		want string
	}{
		{
			name: "after head",
			doc:  "<html><head><title>x</title></head></html>",
			base: "https://a.b/c/",
			want: `<html><head><base href="https://a.b/c/"><title>x</title></head></html>`,
		},
		{
			name: "head with attributes",
			doc:  `<HEAD lang="en"></HEAD>`,
			base: "https://a.b/",
			want: `<HEAD lang="en"><base href="https://a.b/"></HEAD>`,
		},
		{
			name: "no head",
			doc:  "<p>x</p>",
			base: "https://a.b/",
			want: `<base href="https://a.b/"><p>x</p>`,
		},
		{
			name: "existing base kept",
			doc:  `<head><base href="/"></head>`,
			base: "https://a.b/",
			want: `<head><base href="/"></head>`,
		},
		{
			name: "escaped",
			doc:  "<p>",
			base: `https://a.b/?q="x"&y`,
			want: `<base href="https://a.b/?q=&#34;x&#34;&amp;y"><p>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := injectBaseHref(tt.doc, tt.base); got != tt.want {
				t.Errorf("injectBaseHref() = %q, want %q", got, tt.want)
			}
		})
	}
}
