package html2pdf

import (
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"

	"github.com/alnah/go-html2pdf/internal/fileutil"
	"github.com/alnah/go-html2pdf/workspace"
)

// stagedExtension is the extension of files written for the browser.
const stagedExtension = "html"

// stageContent makes src loadable by the browser. Inline HTML and prefetched
// bodies are written to a uniquely named file in ws and returned as a file://
// URI; a bare URL is returned unchanged. It never touches the network.
func stageContent(src Source, ws *workspace.Workspace) (string, error) {
	if !src.needsStaging() {
		return src.URL, nil
	}

	var content []byte
	if src.Kind == SourceHTML {
		content = []byte(src.HTML)
	} else {
		content = []byte(injectBaseHref(string(src.Body), src.URL))
	}

	if err := ws.Ensure(); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrWorkspaceNotWritable, ws.Dir, err)
	}

	name := "page-" + uuid.NewString() + "." + stagedExtension
	path, err := fileutil.WriteExclusive(ws.Dir, name, content)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrWorkspaceNotWritable, ws.Dir, err)
	}

	return fileutil.FileURI(path), nil
}

// injectBaseHref adds <base href> so relative links in a prefetched page
// still resolve against its origin once served from a local file.
// Documents that already declare a base are left untouched.
func injectBaseHref(doc, baseURL string) string {
	if baseURL == "" {
		return doc
	}
	lower := strings.ToLower(doc)
	if strings.Contains(lower, "<base ") {
		return doc
	}

	tag := `<base href="` + html.EscapeString(baseURL) + `">`

	if i := strings.Index(lower, "<head"); i >= 0 {
		if end := strings.IndexByte(lower[i:], '>'); end >= 0 {
			at := i + end + 1
			return doc[:at] + tag + doc[at:]
		}
	}
	return tag + doc
}
