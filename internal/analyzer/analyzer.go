// Package analyzer talks to the network analyzer that captures a
// frequency sweep at each positioner pose. The real instrument speaks
// SCPI over a TCP socket; a mock generates deterministic sweeps for dev
// mode and tests.
package analyzer

import "context"

// SweepData is one frequency-domain capture: the stimulus grid in Hz and
// the complex network-parameter response, point for point.
type SweepData struct {
	Freqs    []float64
	Response []complex128
}

// Analyzer produces one sweep per request. Implementations must be safe
// for use from a single goroutine at a time; the scan worker is the only
// caller during a scan.
type Analyzer interface {
	// Sweep triggers a capture of the given measurement (e.g. "S21") and
	// returns the stimulus grid and complex response.
	Sweep(ctx context.Context, measurement string) (*SweepData, error)

	// SetFrequencyRange configures the stimulus grid for subsequent sweeps.
	SetFrequencyRange(ctx context.Context, startHz, stopHz float64, points int) error

	Close() error
}
