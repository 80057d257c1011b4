// Package network holds the in-memory model of angle-tagged antenna
// measurements collected during a chamber scan. A Model accumulates one
// Sweep per visited positioner pose and answers the axis-filtered queries
// the plotting and API layers need: the shared frequency grid, the azimuth
// and elevation cut axes, and dB magnitudes versus angle or frequency.
package network

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrFreqNotFound is returned when a magnitude query names a frequency
	// that is not a point on the sweep grid.
	ErrFreqNotFound = errors.New("frequency not on sweep grid")

	// ErrGridMismatch is returned when an appended sweep was captured on a
	// different frequency grid than the sweeps already in the model.
	ErrGridMismatch = errors.New("sweep frequency grid differs from model grid")
)

// Sweep is one frequency-domain capture at a fixed positioner pose.
type Sweep struct {
	Freqs     []float64    // Hz, ascending
	Response  []complex128 // network parameter, parallel to Freqs
	Azimuth   float64      // degrees
	Elevation float64      // degrees
}

// dbFloor bounds reported magnitudes from below. A zero response point
// would otherwise read as -Inf, which JSON cannot carry; -200 dB is far
// below any chamber's noise floor.
const dbFloor = -200.0

// DB returns the magnitude of the response at grid index i in dB,
// clamped at dbFloor.
func (s Sweep) DB(i int) float64 {
	mag := cmplx.Abs(s.Response[i])
	if mag == 0 {
		return dbFloor
	}
	v := 20 * math.Log10(mag)
	if v < dbFloor {
		return dbFloor
	}
	return v
}

// DBVector returns the full per-frequency magnitude vector in dB.
func (s Sweep) DBVector() []float64 {
	out := make([]float64, len(s.Response))
	for i := range s.Response {
		out[i] = s.DB(i)
	}
	return out
}

// FreqIndex returns the grid index of the given frequency, or false when
// the frequency is not a grid point. Lookups are exact: plot settings are
// expected to offer only frequencies taken from Frequencies().
func (s Sweep) FreqIndex(f float64) (int, bool) {
	for i, g := range s.Freqs {
		if g == f {
			return i, true
		}
	}
	return 0, false
}

// Filter is a partial pose key. Nil fields match any value; a set field
// must equal the sweep's angle exactly. Zero is a real angle, not an
// absent filter.
type Filter struct {
	Azimuth   *float64
	Elevation *float64
}

func (f Filter) matches(s Sweep) bool {
	if f.Azimuth != nil && s.Azimuth != *f.Azimuth {
		return false
	}
	if f.Elevation != nil && s.Elevation != *f.Elevation {
		return false
	}
	return true
}

// Query selects magnitudes from a model. With Freq set the result is one
// dB value per sweep matching the angular filter (magnitude versus angle,
// for polar cuts); without Freq it is the full dB vector of the first
// matching sweep (magnitude versus frequency, for rectangular plots).
type Query struct {
	Freq      *float64
	Azimuth   *float64
	Elevation *float64
}

// Model is an ordered collection of sweeps sharing one frequency grid.
// Append is persistent: it returns a new Model and leaves the receiver
// untouched, so a snapshot handed to a reader stays valid while the scan
// worker keeps appending.
type Model struct {
	sweeps []Sweep
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{}
}

// Len reports the number of stored sweeps.
func (m *Model) Len() int {
	if m == nil {
		return 0
	}
	return len(m.sweeps)
}

// At returns the sweep at index i in stored order.
func (m *Model) At(i int) Sweep {
	return m.sweeps[i]
}

// Append returns a new model holding all existing sweeps plus s. A sweep
// at an already-visited pose overwrites the prior record, keeping its slot
// in the stored order; a positioner retry at the same pose must not
// produce duplicate cut points. Sweeps captured on a different frequency
// grid are rejected rather than silently mixed.
func (m *Model) Append(s Sweep) (*Model, error) {
	if len(s.Freqs) != len(s.Response) {
		return nil, fmt.Errorf("response has %d points for %d grid frequencies: %w",
			len(s.Response), len(s.Freqs), ErrGridMismatch)
	}
	if m.Len() > 0 && !floats.Equal(m.sweeps[0].Freqs, s.Freqs) {
		return nil, fmt.Errorf("append at az=%g el=%g: %w", s.Azimuth, s.Elevation, ErrGridMismatch)
	}

	next := make([]Sweep, m.Len(), m.Len()+1)
	copy(next, m.sweeps)
	replaced := false
	for i := range next {
		if next[i].Azimuth == s.Azimuth && next[i].Elevation == s.Elevation {
			next[i] = s
			replaced = true
			break
		}
	}
	if !replaced {
		next = append(next, s)
	}
	return &Model{sweeps: next}, nil
}

// Frequencies returns the shared frequency grid, taken from the first
// stored sweep. Empty model yields an empty grid.
func (m *Model) Frequencies() []float64 {
	if m.Len() == 0 {
		return nil
	}
	out := make([]float64, len(m.sweeps[0].Freqs))
	copy(out, m.sweeps[0].Freqs)
	return out
}

// Azimuths returns the azimuth axis of the elevation-zero cut: the azimuth
// of every sweep captured at elevation 0, in stored order. A scan that
// never visits elevation 0 has no azimuth cut and yields an empty axis.
func (m *Model) Azimuths() []float64 {
	zero := 0.0
	var out []float64
	for _, s := range m.Select(Filter{Elevation: &zero}) {
		out = append(out, s.Azimuth)
	}
	return out
}

// Elevations returns the elevation axis of the azimuth-zero cut.
func (m *Model) Elevations() []float64 {
	zero := 0.0
	var out []float64
	for _, s := range m.Select(Filter{Azimuth: &zero}) {
		out = append(out, s.Elevation)
	}
	return out
}

// Select returns the sweeps matching the partial pose key, in stored
// order. An empty filter matches every sweep.
func (m *Model) Select(f Filter) []Sweep {
	if m == nil {
		return nil
	}
	var out []Sweep
	for _, s := range m.sweeps {
		if f.matches(s) {
			out = append(out, s)
		}
	}
	return out
}

// Magnitudes answers the axis-filtered dB queries described on Query.
// An empty model yields an empty result for any query.
func (m *Model) Magnitudes(q Query) ([]float64, error) {
	if m.Len() == 0 {
		return nil, nil
	}

	matches := m.Select(Filter{Azimuth: q.Azimuth, Elevation: q.Elevation})
	if q.Freq == nil {
		if len(matches) == 0 {
			return nil, nil
		}
		return matches[0].DBVector(), nil
	}

	out := make([]float64, 0, len(matches))
	for _, s := range matches {
		i, ok := s.FreqIndex(*q.Freq)
		if !ok {
			return nil, fmt.Errorf("%g Hz: %w", *q.Freq, ErrFreqNotFound)
		}
		out = append(out, s.DB(i))
	}
	return out, nil
}

// Sweeps returns a copy of the full ordered record sequence, for
// persistence.
func (m *Model) Sweeps() []Sweep {
	if m == nil {
		return nil
	}
	out := make([]Sweep, len(m.sweeps))
	copy(out, m.sweeps)
	return out
}
