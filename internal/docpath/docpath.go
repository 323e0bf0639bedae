// Package docpath anchors relative resource paths of a local HTML document
// to the directory it was read from. Staged documents are loaded from a
// scratch workspace, where relative paths would no longer resolve.
package docpath

import (
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// rewritten maps element names to the attribute holding a resource path.
var rewritten = map[string]string{
	"img":    "src",
	"a":      "href",
	"link":   "href", // stylesheets, icons
	"object": "data",
}

// Absolutize converts relative resource paths to file:// URLs under baseDir.
// An empty baseDir returns the document unchanged. URLs, anchors, absolute
// paths and paths escaping baseDir are left alone. script[src] is never
// touched.
func Absolutize(doc, baseDir string) (string, error) {
	if baseDir == "" {
		return doc, nil
	}

	absDir, err := filepath.Abs(baseDir)
	if err != nil {
		return "", err
	}

	root, isFragment, err := parse(doc)
	if err != nil {
		return "", err
	}
	walk(root, absDir)
	return render(root, isFragment)
}

// parse handles both full documents and fragments.
func parse(content string) (*html.Node, bool, error) {
	trimmed := strings.ToLower(strings.TrimSpace(content))
	if strings.HasPrefix(trimmed, "<!doctype") || strings.HasPrefix(trimmed, "<html") {
		doc, err := html.Parse(strings.NewReader(content))
		return doc, false, err
	}

	body := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	nodes, err := html.ParseFragment(strings.NewReader(content), body)
	if err != nil {
		return nil, true, err
	}
	container := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return container, true, nil
}

// render avoids adding an <html><body> wrapper around fragments.
func render(doc *html.Node, isFragment bool) (string, error) {
	var buf strings.Builder
	if !isFragment {
		err := html.Render(&buf, doc)
		return buf.String(), err
	}
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func walk(n *html.Node, dir string) {
	if n.Type == html.ElementNode {
		if attr, ok := rewritten[n.Data]; ok {
			rewriteAttr(n, attr, dir)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, dir)
	}
}

func rewriteAttr(n *html.Node, key, dir string) {
	for i, attr := range n.Attr {
		if attr.Key != key || !isRelative(attr.Val) {
			continue
		}
		// Keep query and fragment out of the filesystem path.
		path, suffix := attr.Val, ""
		if j := strings.IndexAny(path, "?#"); j >= 0 {
			path, suffix = path[:j], path[j:]
		}
		abs := filepath.Join(dir, filepath.FromSlash(path))
		if !within(abs, dir) {
			continue
		}
		n.Attr[i].Val = fileURL(abs) + suffix
	}
}

// isRelative reports whether p is a relative filesystem path.
func isRelative(p string) bool {
	if p == "" || strings.HasPrefix(p, "#") || strings.HasPrefix(p, "//") || filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return false
	}
	if u, err := url.Parse(p); err == nil && u.Scheme != "" {
		return false // http:, https:, file:, data:, mailto:
	}
	return true
}

// within checks that path stays under dir (no traversal).
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// fileURL handles Windows paths as well.
func fileURL(abs string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}
