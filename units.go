package html2pdf

import (
	"strings"
)

// Unit is a length unit accepted in request payloads.
type Unit string

// Supported units.
const (
	UnitPixel      Unit = "px"
	UnitInch       Unit = "in"
	UnitCentimeter Unit = "cm"
	UnitMillimeter Unit = "mm"
)

// cssPixelsPerInch is the CSS reference density.
const cssPixelsPerInch = 96.0

// inchesPerMillimeter is applied directly for mm; the pixel table value
// (3.78) is a rounded approximation.
const inchesPerMillimeter = 0.0393701

// pixelsPerUnit maps a unit to CSS pixels.
var pixelsPerUnit = map[Unit]float64{
	UnitPixel:      1,
	UnitInch:       96,
	UnitCentimeter: 37.8,
	UnitMillimeter: 3.78,
}

// ParseUnit normalizes a unit name (case-insensitive).
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := pixelsPerUnit[u]; !ok {
		return "", invalid(ErrUnknownUnit, "%q (must be px, in, cm or mm)", s)
	}
	return u, nil
}

// factor returns inches per one unit.
func (u Unit) factor() float64 {
	if u == UnitMillimeter {
		return inchesPerMillimeter
	}
	return pixelsPerUnit[u] / cssPixelsPerInch
}

// ToInches converts v expressed in u to inches.
func (u Unit) ToInches(v float64) float64 {
	return v * u.factor()
}

// FromInches converts v inches to u. It is the exact inverse of ToInches.
func (u Unit) FromInches(v float64) float64 {
	return v / u.factor()
}

// Units returns the supported units.
func Units() []Unit {
	return []Unit{UnitPixel, UnitInch, UnitCentimeter, UnitMillimeter}
}
