package html2pdf

import (
	"errors"
	"sort"
	"testing"
)

func TestLookupPaperFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		width float64
		high  float64
	}{
		{"letter", 8.5, 11},
		{"a0", 33.1, 46.8},
		{"a1", 23.4, 33.1},
		{"a2", 16.54, 23.4},
		{"a3", 11.7, 16.54},
		{"a4", 8.27, 11.7},
		{"A4", 8.27, 11.7},
		{"a5", 5.83, 8.27},
		{"a6", 4.13, 5.83},
		{"legal", 8.5, 14},
		{"Tabloid", 11, 17},
		{"ledger", 17, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := LookupPaperFormat(tt.name)
			if err != nil {
				t.Fatalf("LookupPaperFormat(%q) error = %v", tt.name, err)
			}
			if got.Width != tt.width || got.Height != tt.high {
				t.Errorf("LookupPaperFormat(%q) = %vx%v, want %vx%v", tt.name, got.Width, got.Height, tt.width, tt.high)
			}
		})
	}
}

func TestLookupPaperFormat_Unknown(t *testing.T) {
	t.Parallel()

	_, err := LookupPaperFormat("b5")
	if !errors.Is(err, ErrUnknownPaperFormat) || !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrUnknownPaperFormat", err)
	}
}

func TestPaperFormats(t *testing.T) {
	t.Parallel()

	got := PaperFormats()
	if len(got) != 11 {
		t.Errorf("len = %d, want 11", len(got))
	}
	if !sort.StringsAreSorted(got) {
		t.Errorf("PaperFormats() not sorted: %v", got)
	}
}
