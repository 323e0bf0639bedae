// Package html2pdf converts HTML documents and web pages to PDF using
// headless Chrome.
//
// # Quick Start
//
// Create a converter, convert a request, and close when done:
//
//	conv := html2pdf.NewConverter()
//	defer conv.Close()
//
//	req, err := html2pdf.ParseRequest(map[string]any{
//	    "html":    "<h1>Hello</h1>",
//	    "format":  "A4",
//	    "margins": map[string]any{"top": 10, "right": 10, "bottom": 10, "left": 10, "unit": "mm"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := conv.Convert(ctx, req)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("output.pdf", result.PDF, 0644)
//
// # Rendering
//
// Each Convert call runs the same sequence under a single timeout budget:
//
//  1. Stage inline HTML (or a prefetched body) in a fresh workspace
//  2. Launch a browser session and open a page
//  3. Navigate and wait for the "load" event
//  4. Optionally wait for a named lifecycle event (e.g. networkIdle)
//  5. Print to PDF, then close the page and the session
//
// Convert never retries. Generate wraps any Renderer with retries of
// transient failures (launch failure, lost session, timeout).
//
// # Print Options
//
// ResolveOptions turns a loosely typed payload, as decoded from JSON, into
// PrintOptions. Lengths are given in px, in, cm or mm and stored in inches.
// A named format sets the paper size unless an explicit width and height
// are given. Defaults are A4 portrait with 0.4in margins.
//
// # Workspaces
//
// Staged documents live in per-request directories tracked by a
// workspace.Registry. Successful renders release theirs immediately. A
// failed render retires its workspace once the browser is closed, and
// Registry.Sweep removes it from a periodic janitor. Workspaces of renders
// still in flight are never swept; Registry.SweepAll reclaims everything at
// shutdown.
//
// # Browser Process
//
// By default every request launches its own browser process. WithSharedBrowser
// keeps one process and gives each request an incognito context instead.
//
// Set ROD_BROWSER_BIN (or WithBrowserBin) to choose the Chrome binary.
// The sandbox is disabled by default, as containers rarely allow it.
package html2pdf
