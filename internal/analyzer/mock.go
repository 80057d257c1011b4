package analyzer

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"sync"
)

// Mock is an Analyzer that synthesizes sweeps of a broadside antenna
// pattern without hardware. The response depends only on the configured
// grid and the pose set via SetPose, so tests get deterministic data.
type Mock struct {
	mu     sync.Mutex
	freqs  []float64
	az, el float64
	closed bool

	// SweepCount records how many sweeps have been taken.
	SweepCount int
}

// NewMock returns a mock analyzer with a 201-point 1 to 3 GHz grid.
func NewMock() *Mock {
	m := &Mock{}
	m.SetFrequencyRange(context.Background(), 1e9, 3e9, 201)
	return m
}

// SetFrequencyRange rebuilds the stimulus grid.
func (m *Mock) SetFrequencyRange(_ context.Context, startHz, stopHz float64, points int) error {
	if stopHz <= startHz {
		return fmt.Errorf("stop frequency %g must exceed start %g", stopHz, startHz)
	}
	if points < 2 {
		return fmt.Errorf("sweep needs at least 2 points, got %d", points)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.freqs = make([]float64, points)
	step := (stopHz - startHz) / float64(points-1)
	for i := range m.freqs {
		m.freqs[i] = startHz + float64(i)*step
	}
	return nil
}

// SetPose tells the mock which pose the positioner is at, so synthesized
// sweeps roll off away from boresight like a real antenna cut.
func (m *Mock) SetPose(azimuth, elevation float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.az = azimuth
	m.el = elevation
}

// Sweep synthesizes one capture: a cosine-shaped pattern versus angle
// with a mild frequency slope, phase advancing along the grid.
func (m *Mock) Sweep(_ context.Context, measurement string) (*SweepData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("mock analyzer is closed")
	}
	m.SweepCount++

	freqs := make([]float64, len(m.freqs))
	copy(freqs, m.freqs)

	theta := math.Sqrt(m.az*m.az+m.el*m.el) * math.Pi / 180
	gain := math.Pow(math.Cos(theta/2), 2) // broadside lobe, unity at boresight
	if gain < 1e-6 {
		gain = 1e-6
	}

	resp := make([]complex128, len(freqs))
	for i, f := range freqs {
		slope := 1 - 0.1*(f-freqs[0])/(freqs[len(freqs)-1]-freqs[0])
		phase := 2 * math.Pi * f / 1e10
		resp[i] = cmplx.Rect(gain*slope, phase)
	}
	return &SweepData{Freqs: freqs, Response: resp}, nil
}

// Close marks the mock closed; further sweeps fail.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
