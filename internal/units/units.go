// Package units provides parsing and formatting for the frequency and
// angle values accepted by the API and command-line flags.
package units

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// freqPattern matches values like "3.2GHz", "850 MHz", "100kHz". The space
// between quantity and prefix is optional, as is the Hz unit.
var freqPattern = regexp.MustCompile(`^(?P<val>\d+\.?\d*(?:[eE][+-]?\d+)?)\s*(?P<prefix>[GMk])?(?:[hH]z)?$`)

var multByPrefix = map[string]float64{
	"G": 1e9,
	"M": 1e6,
	"k": 1e3,
	"":  1,
}

// ParseFrequency parses a frequency string with an optional SI prefix
// (G, M, k) and optional Hz unit, returning the value in Hz.
func ParseFrequency(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}

	m := freqPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid frequency %q", s)
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frequency %q: %w", s, err)
	}
	return val * multByPrefix[m[2]], nil
}

// FormatFrequency renders a frequency in Hz with the largest SI prefix
// that keeps the quantity at or above one.
func FormatFrequency(hz float64) string {
	abs := math.Abs(hz)
	switch {
	case abs >= 1e9:
		return trimZeros(hz/1e9) + " GHz"
	case abs >= 1e6:
		return trimZeros(hz/1e6) + " MHz"
	case abs >= 1e3:
		return trimZeros(hz/1e3) + " kHz"
	default:
		return trimZeros(hz) + " Hz"
	}
}

func trimZeros(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NormalizeDegrees wraps an angle into the half-open interval (-180, 180].
func NormalizeDegrees(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}
