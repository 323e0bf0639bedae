package html2pdf

import (
	"sort"
	"strings"
)

// Paper format names.
const (
	FormatLetter  = "letter"
	FormatA0      = "a0"
	FormatA1      = "a1"
	FormatA2      = "a2"
	FormatA3      = "a3"
	FormatA4      = "a4"
	FormatA5      = "a5"
	FormatA6      = "a6"
	FormatLegal   = "legal"
	FormatTabloid = "tabloid"
	FormatLedger  = "ledger"
)

// PaperSize is a width and height in inches.
type PaperSize struct {
	Width  float64
	Height float64
}

// paperFormats lists portrait dimensions in inches. Ledger is tabloid turned
// sideways and is listed as such.
var paperFormats = map[string]PaperSize{
	FormatLetter:  {8.5, 11},
	FormatA0:      {33.1, 46.8},
	FormatA1:      {23.4, 33.1},
	FormatA2:      {16.54, 23.4},
	FormatA3:      {11.7, 16.54},
	FormatA4:      {8.27, 11.7},
	FormatA5:      {5.83, 8.27},
	FormatA6:      {4.13, 5.83},
	FormatLegal:   {8.5, 14},
	FormatTabloid: {11, 17},
	FormatLedger:  {17, 11},
}

// LookupPaperFormat resolves a format name (case-insensitive).
func LookupPaperFormat(name string) (PaperSize, error) {
	size, ok := paperFormats[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return PaperSize{}, invalid(ErrUnknownPaperFormat, "%q (available: %s)", name, strings.Join(PaperFormats(), ", "))
	}
	return size, nil
}

// PaperFormats returns the known format names, sorted.
func PaperFormats() []string {
	names := make([]string, 0, len(paperFormats))
	for name := range paperFormats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
