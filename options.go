package html2pdf

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// Orientation of the printed page.
type Orientation string

// Orientation constants.
const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// Scale bounds accepted by Chrome's printToPDF.
const (
	MinScale = 0.1
	MaxScale = 2.0
)

// Defaults applied by ResolveOptions.
const (
	DefaultFormat  = FormatA4
	DefaultMargin  = 0.4 // inches, all sides
	DefaultScale   = 1.0
	DefaultTimeout = 30 * time.Second
	DefaultUnit    = UnitInch
)

// placeholderTemplate fills the header or footer slot the caller left empty
// when the other one is set. Chrome prints title and date into an empty slot.
const placeholderTemplate = "<p></p>"

// Lifecycle event names reported by Chrome's Page.lifecycleEvent.
var lifecycleEvents = map[proto.PageLifecycleEventName]bool{
	proto.PageLifecycleEventNameInit:                          true,
	proto.PageLifecycleEventNameDOMContentLoaded:              true,
	proto.PageLifecycleEventNameLoad:                          true,
	proto.PageLifecycleEventNameFirstPaint:                    true,
	proto.PageLifecycleEventNameFirstContentfulPaint:          true,
	proto.PageLifecycleEventNameFirstImagePaint:               true,
	proto.PageLifecycleEventNameFirstMeaningfulPaintCandidate: true,
	proto.PageLifecycleEventNameFirstMeaningfulPaint:          true,
	proto.PageLifecycleEventNameNetworkAlmostIdle:             true,
	proto.PageLifecycleEventNameNetworkIdle:                   true,
}

// Margins holds page margins in inches.
type Margins struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// PrintOptions is the canonical, validated print configuration. All lengths
// are in inches. Values are passed by copy; nothing mutates them after
// resolution.
type PrintOptions struct {
	Orientation            Orientation
	PaperWidth             float64
	PaperHeight            float64
	Format                 string // empty when an explicit paper size was given
	Margins                Margins
	Unit                   Unit // unit the request was expressed in
	Header                 string
	Footer                 string
	DisplayHeaderFooter    bool
	PrintBackground        bool
	PreferCSSPageSize      bool
	Scale                  float64
	PageRanges             string
	WaitForLifecycleEvent  string
	DisableScriptExecution bool
	EmulateMedia           string
	Timeout                time.Duration
}

// DefaultPrintOptions returns A4 portrait with 0.4in margins and a
// DefaultTimeout budget.
func DefaultPrintOptions() PrintOptions {
	a4 := paperFormats[DefaultFormat]
	return PrintOptions{
		Orientation:     OrientationPortrait,
		PaperWidth:      a4.Width,
		PaperHeight:     a4.Height,
		Format:          DefaultFormat,
		Margins:         Margins{DefaultMargin, DefaultMargin, DefaultMargin, DefaultMargin},
		Unit:            DefaultUnit,
		PrintBackground: true,
		Scale:           DefaultScale,
		Timeout:         DefaultTimeout,
	}
}

// Validate checks options built by hand rather than through ResolveOptions.
//
// This is a TRUST BOUNDARY for library users who fill PrintOptions directly.
func (o PrintOptions) Validate() error {
	switch o.Orientation {
	case OrientationPortrait, OrientationLandscape:
	default:
		return invalid(ErrInvalidOrientation, "%q (must be portrait or landscape)", o.Orientation)
	}
	if o.Scale < MinScale || o.Scale > MaxScale {
		return invalid(ErrScaleOutOfRange, "%g (must be between %g and %g)", o.Scale, MinScale, MaxScale)
	}
	for name, v := range map[string]float64{
		"paperWidth":     o.PaperWidth,
		"paperHeight":    o.PaperHeight,
		"margins.top":    o.Margins.Top,
		"margins.right":  o.Margins.Right,
		"margins.bottom": o.Margins.Bottom,
		"margins.left":   o.Margins.Left,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return &OptionError{Field: name, Expected: "non-negative number", Actual: v}
		}
	}
	if o.WaitForLifecycleEvent != "" && !lifecycleEvents[proto.PageLifecycleEventName(o.WaitForLifecycleEvent)] {
		return &OptionError{Field: "waitForLifecycleEvent", Expected: "a Chrome lifecycle event name", Actual: o.WaitForLifecycleEvent}
	}
	if o.Timeout < 0 {
		return &OptionError{Field: "timeout", Expected: "positive seconds", Actual: o.Timeout}
	}
	return nil
}

// ResolveOptions turns a loosely typed payload (decoded JSON or YAML) into
// PrintOptions. Unknown keys are ignored and null counts as absent.
//
// Recognized keys: orientation, format, unit, paper{width,height,unit},
// margins{top,right,bottom,left,unit}, header, footer, displayHeaderFooter,
// printBackground, preferCSSPageSize, scale, pageRanges,
// waitForLifecycleEvent, disableScriptExecution, emulateMedia, timeout.
//
// The top-level unit is the default for paper and margins; each nested
// object may override it. An explicit paper width and height take
// precedence over format.
func ResolveOptions(payload map[string]any) (PrintOptions, error) {
	opts := DefaultPrintOptions()
	// Zero lets the Converter apply its own budget (WithTimeout).
	opts.Timeout = 0
	p := fields{m: payload}

	unit := DefaultUnit
	if s, ok, err := p.str("unit"); err != nil {
		return PrintOptions{}, err
	} else if ok {
		if unit, err = ParseUnit(s); err != nil {
			return PrintOptions{}, err
		}
	}
	opts.Unit = unit

	if s, ok, err := p.str("orientation"); err != nil {
		return PrintOptions{}, err
	} else if ok {
		switch o := Orientation(strings.ToLower(s)); o {
		case OrientationPortrait, OrientationLandscape:
			opts.Orientation = o
		default:
			return PrintOptions{}, invalid(ErrInvalidOrientation, "%q (must be portrait or landscape)", s)
		}
	}

	if err := resolvePaper(p, unit, &opts); err != nil {
		return PrintOptions{}, err
	}
	if err := resolveMargins(p, unit, &opts); err != nil {
		return PrintOptions{}, err
	}
	if err := resolveHeaderFooter(p, &opts); err != nil {
		return PrintOptions{}, err
	}

	for key, dst := range map[string]*bool{
		"printBackground":        &opts.PrintBackground,
		"preferCSSPageSize":      &opts.PreferCSSPageSize,
		"disableScriptExecution": &opts.DisableScriptExecution,
	} {
		if b, ok, err := p.boolean(key); err != nil {
			return PrintOptions{}, err
		} else if ok {
			*dst = b
		}
	}

	if v, ok, err := p.number("scale"); err != nil {
		return PrintOptions{}, err
	} else if ok {
		if v < MinScale || v > MaxScale {
			return PrintOptions{}, invalid(ErrScaleOutOfRange, "%g (must be between %g and %g)", v, MinScale, MaxScale)
		}
		opts.Scale = v
	}

	if s, ok, err := p.str("pageRanges"); err != nil {
		return PrintOptions{}, err
	} else if ok {
		opts.PageRanges = strings.TrimSpace(s)
	}

	if s, ok, err := p.str("waitForLifecycleEvent"); err != nil {
		return PrintOptions{}, err
	} else if ok && s != "" {
		if !lifecycleEvents[proto.PageLifecycleEventName(s)] {
			return PrintOptions{}, &OptionError{Field: "waitForLifecycleEvent", Expected: "a Chrome lifecycle event name", Actual: s}
		}
		opts.WaitForLifecycleEvent = s
	}

	if s, ok, err := p.str("emulateMedia"); err != nil {
		return PrintOptions{}, err
	} else if ok && s != "" {
		media := strings.ToLower(s)
		if media != "screen" && media != "print" {
			return PrintOptions{}, &OptionError{Field: "emulateMedia", Expected: "screen or print", Actual: s}
		}
		opts.EmulateMedia = media
	}

	if v, ok, err := p.number("timeout"); err != nil {
		return PrintOptions{}, err
	} else if ok {
		if v <= 0 || v != math.Trunc(v) {
			return PrintOptions{}, &OptionError{Field: "timeout", Expected: "positive integer seconds", Actual: v}
		}
		opts.Timeout = time.Duration(v) * time.Second
	}

	return opts, nil
}

func resolvePaper(p fields, unit Unit, opts *PrintOptions) error {
	format := DefaultFormat
	if s, ok, err := p.str("format"); err != nil {
		return err
	} else if ok && s != "" {
		format = s
	}
	size, err := LookupPaperFormat(format)
	if err != nil {
		return err
	}

	paper, ok, err := p.object("paper")
	if err != nil {
		return err
	}
	if ok {
		if s, ok, err := paper.str("unit"); err != nil {
			return err
		} else if ok {
			if unit, err = ParseUnit(s); err != nil {
				return err
			}
		}
		width, hasWidth, err := paper.length("width")
		if err != nil {
			return err
		}
		height, hasHeight, err := paper.length("height")
		if err != nil {
			return err
		}
		if hasWidth && hasHeight && width > 0 && height > 0 {
			opts.PaperWidth = unit.ToInches(width)
			opts.PaperHeight = unit.ToInches(height)
			opts.Format = ""
			return nil
		}
	}

	opts.PaperWidth = size.Width
	opts.PaperHeight = size.Height
	opts.Format = strings.ToLower(strings.TrimSpace(format))
	return nil
}

func resolveMargins(p fields, unit Unit, opts *PrintOptions) error {
	margins, ok, err := p.object("margins")
	if err != nil || !ok {
		return err
	}

	if s, ok, err := margins.str("unit"); err != nil {
		return err
	} else if ok {
		if unit, err = ParseUnit(s); err != nil {
			return err
		}
	}

	for key, dst := range map[string]*float64{
		"top":    &opts.Margins.Top,
		"right":  &opts.Margins.Right,
		"bottom": &opts.Margins.Bottom,
		"left":   &opts.Margins.Left,
	} {
		v, ok, err := margins.length(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = unit.ToInches(v)
		}
	}
	return nil
}

func resolveHeaderFooter(p fields, opts *PrintOptions) error {
	header, _, err := p.str("header")
	if err != nil {
		return err
	}
	footer, _, err := p.str("footer")
	if err != nil {
		return err
	}
	if b, ok, err := p.boolean("displayHeaderFooter"); err != nil {
		return err
	} else if ok {
		opts.DisplayHeaderFooter = b
	}

	if header != "" || footer != "" {
		if header == "" {
			header = placeholderTemplate
		}
		if footer == "" {
			footer = placeholderTemplate
		}
		opts.DisplayHeaderFooter = true
	}
	opts.Header = header
	opts.Footer = footer
	return nil
}

// fields reads typed values out of a decoded payload. Each getter returns
// (value, present, error); present is false for missing or null keys.
type fields struct {
	prefix string
	m      map[string]any
}

func (f fields) name(key string) string {
	if f.prefix == "" {
		return key
	}
	return f.prefix + "." + key
}

func (f fields) get(key string) (any, bool) {
	v, ok := f.m[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (f fields) str(key string) (string, bool, error) {
	v, ok := f.get(key)
	if !ok {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", false, &OptionError{Field: f.name(key), Expected: "string", Actual: v}
	}
	return s, true, nil
}

func (f fields) boolean(key string) (bool, bool, error) {
	v, ok := f.get(key)
	if !ok {
		return false, false, nil
	}
	b, isBool := v.(bool)
	if !isBool {
		return false, false, &OptionError{Field: f.name(key), Expected: "boolean", Actual: v}
	}
	return b, true, nil
}

func (f fields) number(key string) (float64, bool, error) {
	v, ok := f.get(key)
	if !ok {
		return 0, false, nil
	}
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case uint64:
		n = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false, &OptionError{Field: f.name(key), Expected: "number", Actual: v}
		}
		n = parsed
	default:
		return 0, false, &OptionError{Field: f.name(key), Expected: "number", Actual: v}
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false, &OptionError{Field: f.name(key), Expected: "finite number", Actual: v}
	}
	return n, true, nil
}

// length is a number that must not be negative.
func (f fields) length(key string) (float64, bool, error) {
	n, ok, err := f.number(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	if n < 0 {
		return 0, false, &OptionError{Field: f.name(key), Expected: "non-negative number", Actual: n}
	}
	return n, true, nil
}

func (f fields) object(key string) (fields, bool, error) {
	v, ok := f.get(key)
	if !ok {
		return fields{}, false, nil
	}
	m, isMap := v.(map[string]any)
	if !isMap {
		return fields{}, false, &OptionError{Field: f.name(key), Expected: "object", Actual: v}
	}
	return fields{prefix: f.name(key), m: m}, true, nil
}

// String renders the options for logs.
func (o PrintOptions) String() string {
	size := o.Format
	if size == "" {
		size = fmt.Sprintf("%.2fx%.2fin", o.PaperWidth, o.PaperHeight)
	}
	return fmt.Sprintf("%s %s scale=%g margins=%.2f/%.2f/%.2f/%.2fin",
		size, o.Orientation, o.Scale, o.Margins.Top, o.Margins.Right, o.Margins.Bottom, o.Margins.Left)
}
