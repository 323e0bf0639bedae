// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"net/http"
	"os"
	"strings"

	"github.com/alnah/go-html2pdf/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// inCI reports whether a CI runner is detected.
func inCI() bool {
	return os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != "" ||
		os.Getenv("GITLAB_CI") != "" ||
		os.Getenv("JENKINS_URL") != ""
}

// ForBrowserLaunch returns hints for browser launch errors. browserFound
// tells whether a local Chrome/Chromium was detected.
func ForBrowserLaunch(browserFound bool) string {
	var hints []string

	if !browserFound && os.Getenv("ROD_BROWSER_BIN") == "" && os.Getenv("HTML2PDF_BROWSER_BIN") == "" {
		hints = append(hints, "install Chromium or set ROD_BROWSER_BIN to its path")
	}

	// The sandbox needs privileges containers rarely grant.
	if (inCI() || IsInContainer()) && strings.EqualFold(os.Getenv("HTML2PDF_NO_SANDBOX"), "false") {
		hints = append(hints, "unset HTML2PDF_NO_SANDBOX=false in Docker/CI")
	}

	return formatHints(hints)
}

// ForTimeout returns a hint about slow pages.
func ForTimeout() string {
	return format("for slow pages, raise --timeout or drop --wait")
}

// ForUpstream returns a hint for a failed source fetch with the given
// HTTP status (0 when the request never got a response).
func ForUpstream(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return format("pass credentials with --header 'Authorization: ...'")
	case status == http.StatusNotFound:
		return format("check the URL is reachable from this host")
	case status == 0:
		return format("check DNS and network access to the source host")
	default:
		return ""
	}
}

// ForWorkspace returns a hint for workspace staging errors.
func ForWorkspace() string {
	return format("set HTML2PDF_WORKSPACE_ROOT to a writable directory")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config flag and creating a config in ~/.config/go-html2pdf/.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	for _, p := range searchedPaths {
		if strings.Contains(filepath2slash(p), ".config/go-html2pdf") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

func filepath2slash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
