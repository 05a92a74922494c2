// Package units provides shared constants, parsing and conversion for
// frequency units.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unit constants
const (
	Hz  = "hz"
	KHz = "khz"
	MHz = "mhz"
	GHz = "ghz"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Hz, KHz, MHz, GHz}

var scale = map[string]float64{
	Hz:  1,
	KHz: 1e3,
	MHz: 1e6,
	GHz: 1e9,
}

// IsValid checks if the given unit is in the list of valid units.
// Units are case-insensitive.
func IsValid(unit string) bool {
	_, ok := scale[strings.ToLower(unit)]
	return ok
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "Hz, kHz, MHz, GHz"
}

// ConvertFrequency converts a frequency in Hz to the target units.
// Unknown units leave the value in Hz.
func ConvertFrequency(hz float64, targetUnits string) float64 {
	s, ok := scale[strings.ToLower(targetUnits)]
	if !ok {
		return hz
	}
	return hz / s
}

// ParseFrequency parses a frequency such as "1500", "1.5kHz" or "2 MHz"
// and returns it in Hz. A bare number is taken as Hz.
func ParseFrequency(s string) (float64, error) {
	t := strings.TrimSpace(s)
	i := len(t)
	for i > 0 && isLetter(t[i-1]) {
		i--
	}
	num, unit := strings.TrimSpace(t[:i]), t[i:]
	mult := 1.0
	if unit != "" {
		var ok bool
		if mult, ok = scale[strings.ToLower(unit)]; !ok {
			return 0, fmt.Errorf("invalid frequency unit %q in %q (valid: %s)", unit, s, GetValidUnitsString())
		}
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frequency %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid frequency %q: not finite", s)
	}
	return v * mult, nil
}

// ParseFrequencyRange parses "lo:hi", each side as accepted by
// ParseFrequency, and checks lo < hi.
func ParseFrequencyRange(s string) (lo, hi float64, err error) {
	l, h, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid frequency range %q: want lo:hi", s)
	}
	if lo, err = ParseFrequency(l); err != nil {
		return 0, 0, err
	}
	if hi, err = ParseFrequency(h); err != nil {
		return 0, 0, err
	}
	if lo >= hi {
		return 0, 0, fmt.Errorf("invalid frequency range %q: low must be below high", s)
	}
	return lo, hi, nil
}

// FormatFrequency renders hz in the largest unit that keeps the value at
// or above one.
func FormatFrequency(hz float64) string {
	a := math.Abs(hz)
	switch {
	case a >= 1e9:
		return strconv.FormatFloat(hz/1e9, 'g', -1, 64) + " GHz"
	case a >= 1e6:
		return strconv.FormatFloat(hz/1e6, 'g', -1, 64) + " MHz"
	case a >= 1e3:
		return strconv.FormatFloat(hz/1e3, 'g', -1, 64) + " kHz"
	default:
		return strconv.FormatFloat(hz, 'g', -1, 64) + " Hz"
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
