package html2pdf

import (
	"github.com/go-rod/rod/lib/proto"
)

// buildPrintCommand maps resolved options to Page.printToPDF parameters.
// Paper dimensions left at zero are omitted so Chrome applies its default.
// Margins are always sent: zero is a meaningful margin.
func buildPrintCommand(opts PrintOptions) *proto.PagePrintToPDF {
	req := &proto.PagePrintToPDF{
		Landscape:           opts.Orientation == OrientationLandscape,
		DisplayHeaderFooter: opts.DisplayHeaderFooter,
		PrintBackground:     opts.PrintBackground,
		PreferCSSPageSize:   opts.PreferCSSPageSize,
		PageRanges:          opts.PageRanges,
		MarginTop:           floatPtr(opts.Margins.Top),
		MarginRight:         floatPtr(opts.Margins.Right),
		MarginBottom:        floatPtr(opts.Margins.Bottom),
		MarginLeft:          floatPtr(opts.Margins.Left),
		Scale:               floatPtr(opts.Scale),
	}

	if opts.PaperWidth > 0 {
		req.PaperWidth = floatPtr(opts.PaperWidth)
	}
	if opts.PaperHeight > 0 {
		req.PaperHeight = floatPtr(opts.PaperHeight)
	}
	if opts.Scale == 0 {
		req.Scale = nil
	}

	if opts.DisplayHeaderFooter {
		req.HeaderTemplate = templateOrPlaceholder(opts.Header)
		req.FooterTemplate = templateOrPlaceholder(opts.Footer)
	}

	return req
}

// templateOrPlaceholder keeps Chrome from printing its default title/date
// header into a slot the caller left empty.
func templateOrPlaceholder(tpl string) string {
	if tpl == "" {
		return placeholderTemplate
	}
	return tpl
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}
