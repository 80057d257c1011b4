// Package scan orchestrates chamber sweeps: it steps the positioner over
// an azimuth/elevation extent, captures one analyzer sweep per pose per
// polarization, and accumulates the results into per-polarization network
// models. Abort is driven by context cancellation.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hrg-lab/chamber/internal/analyzer"
	"github.com/hrg-lab/chamber/internal/network"
)

// Positioner is the subset of the rotator controller the worker needs.
type Positioner interface {
	MoveAzimuthTo(ctx context.Context, deg float64) error
	MoveElevationTo(ctx context.Context, deg float64) error
	CurrentAzimuth() float64
	CurrentElevation() float64
	AbortAll() error
}

// Polarization names one measurement to capture at every pose.
type Polarization struct {
	Label       string `json:"label"`       // e.g. "vertical"
	Measurement string `json:"measurement"` // analyzer parameter, e.g. "S21"
}

// Params describes one scan. A nil range skips that axis: azimuth-only
// and elevation-only cuts hold the other axis at zero.
type Params struct {
	Azimuths      *Range         `json:"azimuths,omitempty"`
	Elevations    *Range         `json:"elevations,omitempty"`
	Polarizations []Polarization `json:"polarizations"`
}

// Validate rejects parameter sets the worker cannot run.
func (p Params) Validate() error {
	if p.Azimuths == nil && p.Elevations == nil {
		return errors.New("scan needs an azimuth range, an elevation range, or both")
	}
	if len(p.Polarizations) == 0 {
		return errors.New("scan needs at least one polarization")
	}
	seen := make(map[string]bool)
	for _, pol := range p.Polarizations {
		if pol.Label == "" || pol.Measurement == "" {
			return fmt.Errorf("polarization needs both label and measurement, got %+v", pol)
		}
		if seen[pol.Label] {
			return fmt.Errorf("duplicate polarization label %q", pol.Label)
		}
		seen[pol.Label] = true
	}
	if p.Azimuths != nil {
		if err := p.Azimuths.Validate(); err != nil {
			return fmt.Errorf("azimuth range: %w", err)
		}
	}
	if p.Elevations != nil {
		if err := p.Elevations.Validate(); err != nil {
			return fmt.Errorf("elevation range: %w", err)
		}
	}
	return nil
}

// Progress is one scan progress update.
type Progress struct {
	Percent    int           `json:"percent"`
	CutPercent int           `json:"cut_percent"`
	Remaining  time.Duration `json:"remaining_ns"`
	Azimuth    float64       `json:"azimuth"`
	Elevation  float64       `json:"elevation"`
}

// Result maps polarization label to the accumulated model.
type Result map[string]*network.Model

// poseHinter is implemented by the mock analyzer, which has no positioner
// feedback and needs to be told the pose to synthesize.
type poseHinter interface {
	SetPose(azimuth, elevation float64)
}

// Worker runs one scan at a time over a positioner and an analyzer.
type Worker struct {
	pos      Positioner
	an       analyzer.Analyzer
	progress chan Progress
}

// NewWorker creates a scan worker.
func NewWorker(pos Positioner, an analyzer.Analyzer) *Worker {
	return &Worker{
		pos:      pos,
		an:       an,
		progress: make(chan Progress, 16),
	}
}

// Progress returns the channel progress updates are delivered on. Updates
// are dropped rather than block a slow consumer.
func (w *Worker) Progress() <-chan Progress {
	return w.progress
}

func (w *Worker) emit(p Progress) {
	select {
	case w.progress <- p:
	default:
	}
}

// Run executes the scan described by params and returns the accumulated
// models. On cancellation the positioner is stopped and the partial
// result is returned alongside the context error, so an aborted scan
// still yields its completed cuts.
func (w *Worker) Run(ctx context.Context, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	models := make(Result, len(p.Polarizations))
	for _, pol := range p.Polarizations {
		models[pol.Label] = network.NewModel()
	}

	var azimuths, elevations []float64
	switch {
	case p.Azimuths != nil && p.Elevations != nil:
		azimuths = p.Azimuths.Values()
		elevations = p.Elevations.Values()
	case p.Azimuths != nil:
		azimuths = p.Azimuths.Values()
		elevations = []float64{0}
	default:
		azimuths = []float64{0}
		elevations = p.Elevations.Values()
	}

	total := len(azimuths) * len(elevations)
	completed := 0

	for _, az := range azimuths {
		if err := ctx.Err(); err != nil {
			return w.abort(models, err)
		}
		if err := w.pos.MoveAzimuthTo(ctx, az); err != nil {
			return w.abort(models, fmt.Errorf("move azimuth to %g: %w", az, err))
		}

		for j, el := range elevations {
			if err := ctx.Err(); err != nil {
				return w.abort(models, err)
			}
			start := time.Now()
			if err := w.pos.MoveElevationTo(ctx, el); err != nil {
				return w.abort(models, fmt.Errorf("move elevation to %g: %w", el, err))
			}

			if h, ok := w.an.(poseHinter); ok {
				h.SetPose(az, el)
			}

			for _, pol := range p.Polarizations {
				data, err := w.an.Sweep(ctx, pol.Measurement)
				if err != nil {
					return w.abort(models, fmt.Errorf("sweep %s at az=%g el=%g: %w", pol.Measurement, az, el, err))
				}
				next, err := models[pol.Label].Append(network.Sweep{
					Freqs:     data.Freqs,
					Response:  data.Response,
					Azimuth:   az,
					Elevation: el,
				})
				if err != nil {
					return w.abort(models, fmt.Errorf("record sweep at az=%g el=%g: %w", az, el, err))
				}
				models[pol.Label] = next
			}

			completed++
			w.emit(Progress{
				Percent:    completed * 100 / total,
				CutPercent: (j + 1) * 100 / len(elevations),
				Remaining:  time.Since(start) * time.Duration(total-completed),
				Azimuth:    az,
				Elevation:  el,
			})
		}
	}
	return models, nil
}

// abort stops the positioner and hands back whatever was captured.
func (w *Worker) abort(models Result, cause error) (Result, error) {
	if err := w.pos.AbortAll(); err != nil {
		log.Printf("positioner abort failed: %v", err)
	}
	return models, cause
}
