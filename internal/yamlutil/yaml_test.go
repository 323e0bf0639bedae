package yamlutil_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/alnah/go-html2pdf/internal/yamlutil"
)

type testConfig struct {
	Name    string `yaml:"name"`
	Count   int    `yaml:"count"`
	Enabled bool   `yaml:"enabled"`
}

// ---------------------------------------------------------------------------
// TestUnmarshal - Parses YAML into Go structs
// ---------------------------------------------------------------------------

func TestUnmarshal(t *testing.T) {
	t.Parallel()

	var cfg testConfig
	err := yamlutil.Unmarshal([]byte("name: test\ncount: 42\nenabled: true\nextra: ignored"), &cfg)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if cfg.Name != "test" || cfg.Count != 42 || !cfg.Enabled {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestUnmarshal_InputErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		dest    any
		wantErr error
	}{
		{"nil data", nil, &testConfig{}, yamlutil.ErrNilData},
		{"empty data", []byte{}, &testConfig{}, yamlutil.ErrNilData},
		{"nil destination", []byte("name: x"), nil, yamlutil.ErrNilDestination},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if err := yamlutil.Unmarshal(tt.data, tt.dest); !errors.Is(err, tt.wantErr) {
				t.Errorf("Unmarshal() error = %v, want %v", err, tt.wantErr)
			}
			if err := yamlutil.UnmarshalStrict(tt.data, tt.dest); !errors.Is(err, tt.wantErr) {
				t.Errorf("UnmarshalStrict() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestUnmarshalStrict - Rejects unknown fields
// ---------------------------------------------------------------------------

func TestUnmarshalStrict(t *testing.T) {
	t.Parallel()

	var cfg testConfig
	err := yamlutil.UnmarshalStrict([]byte("name: test\nunknown: field"), &cfg)
	if err == nil {
		t.Fatal("UnmarshalStrict() should reject unknown fields")
	}
	if !strings.HasPrefix(err.Error(), "yamlutil:") {
		t.Errorf("error = %q, want yamlutil prefix", err)
	}
}

// ---------------------------------------------------------------------------
// TestUnmarshalMap - Loosely typed documents
// ---------------------------------------------------------------------------

func TestUnmarshalMap(t *testing.T) {
	t.Parallel()

	doc := `
format: a4
scale: 1
landscape: true
margins:
  top: 10
  unit: mm
ranges: [1, 2]
`
	m, err := yamlutil.UnmarshalMap([]byte(doc))
	if err != nil {
		t.Fatalf("UnmarshalMap() error = %v", err)
	}

	if m["format"] != "a4" || m["landscape"] != true {
		t.Errorf("m = %v", m)
	}
	if v, ok := m["scale"].(float64); !ok || v != 1 {
		t.Errorf("scale = %#v, want float64(1)", m["scale"])
	}
	margins, ok := m["margins"].(map[string]any)
	if !ok {
		t.Fatalf("margins = %T, want map[string]any", m["margins"])
	}
	if v, ok := margins["top"].(float64); !ok || v != 10 {
		t.Errorf("margins.top = %#v, want float64(10)", margins["top"])
	}
	if list, ok := m["ranges"].([]any); !ok || list[0] != float64(1) {
		t.Errorf("ranges = %#v", m["ranges"])
	}
}

func TestUnmarshalMap_NotMapping(t *testing.T) {
	t.Parallel()

	_, err := yamlutil.UnmarshalMap([]byte("- a\n- b\n"))
	if !errors.Is(err, yamlutil.ErrNotMapping) {
		t.Errorf("error = %v, want ErrNotMapping", err)
	}
}

// ---------------------------------------------------------------------------
// TestInputSizeLimit
// ---------------------------------------------------------------------------

// Not parallel: modifies package-level MaxInputSize.
func TestInputSizeLimit(t *testing.T) {
	orig := yamlutil.MaxInputSize
	yamlutil.MaxInputSize = 16
	t.Cleanup(func() { yamlutil.MaxInputSize = orig })

	var cfg testConfig
	err := yamlutil.Unmarshal([]byte("name: "+strings.Repeat("x", 32)), &cfg)
	if !errors.Is(err, yamlutil.ErrInputTooLarge) {
		t.Errorf("error = %v, want ErrInputTooLarge", err)
	}
}
