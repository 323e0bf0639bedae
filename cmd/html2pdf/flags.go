package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"
)

// ErrUsage wraps flag parsing errors.
var ErrUsage = errors.New("invalid usage")

// sourceFlags selects the document. Exactly one must be set.
type sourceFlags struct {
	url      string
	html     string // literal HTML, or @path to read a file
	markdown string // path to a Markdown file
}

// pageFlags holds page layout flags.
type pageFlags struct {
	format         string
	landscape      bool
	margin         float64
	unit           string
	scale          float64
	pageRanges     string
	headerTemplate string
	footerTemplate string
	noBackground   bool
}

// renderFlags holds browser-side behavior flags.
type renderFlags struct {
	wait           string
	timeout        time.Duration
	emulateMedia   string
	disableScripts bool
}

// convertFlags holds all flags of the default command.
type convertFlags struct {
	source  sourceFlags
	page    pageFlags
	render  renderFlags
	headers []string // "Name: value", sent when fetching --url
	options string   // YAML file of print options
	output  string
	preview bool
	config  string
	verbose bool

	// changed lists the flags given on the command line.
	changed map[string]bool
}

func (f *convertFlags) set(name string) bool {
	return f.changed[name]
}

func addSourceFlags(fs *flag.FlagSet, f *sourceFlags) {
	fs.StringVar(&f.url, "url", "", "")
	fs.StringVar(&f.html, "html", "", "")
	fs.StringVar(&f.markdown, "markdown", "", "")
}

func addPageFlags(fs *flag.FlagSet, f *pageFlags) {
	fs.StringVarP(&f.format, "format", "f", "", "")
	fs.BoolVar(&f.landscape, "landscape", false, "")
	fs.Float64Var(&f.margin, "margin", 0, "")
	fs.StringVar(&f.unit, "unit", "", "")
	fs.Float64Var(&f.scale, "scale", 0, "")
	fs.StringVar(&f.pageRanges, "pages", "", "")
	fs.StringVar(&f.headerTemplate, "header-template", "", "")
	fs.StringVar(&f.footerTemplate, "footer-template", "", "")
	fs.BoolVar(&f.noBackground, "no-background", false, "")
}

func addRenderFlags(fs *flag.FlagSet, f *renderFlags) {
	fs.StringVar(&f.wait, "wait", "", "")
	fs.DurationVar(&f.timeout, "timeout", 0, "")
	fs.StringVar(&f.emulateMedia, "media", "", "")
	fs.BoolVar(&f.disableScripts, "no-scripts", false, "")
}

// parseConvertFlags parses the default command. Positional arguments are
// rejected; every input goes through a flag.
func parseConvertFlags(args []string) (*convertFlags, error) {
	fs := flag.NewFlagSet("html2pdf", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	f := &convertFlags{changed: make(map[string]bool)}
	addSourceFlags(fs, &f.source)
	addPageFlags(fs, &f.page)
	addRenderFlags(fs, &f.render)
	fs.StringArrayVarP(&f.headers, "header", "H", nil, "")
	fs.StringVar(&f.options, "options", "", "")
	fs.StringVarP(&f.output, "output", "o", "", "")
	fs.BoolVar(&f.preview, "preview", false, "")
	fs.StringVarP(&f.config, "config", "c", "", "")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected argument %q", ErrUsage, fs.Arg(0))
	}

	fs.Visit(func(fl *flag.Flag) {
		f.changed[fl.Name] = true
	})
	return f, nil
}

func isHelp(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}
