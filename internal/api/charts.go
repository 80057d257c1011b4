package api

import (
	"fmt"
	"net/http"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/hrg-lab/chamber/internal/network"
	"github.com/hrg-lab/chamber/internal/plot"
	"github.com/hrg-lab/chamber/internal/units"
)

// plotPolar renders a quick polar plot (HTML) of a pattern cut using
// go-echarts: magnitude versus angle at a fixed frequency. Query params:
//   - freq (required, SI-prefixed strings accepted)
//   - elevation or azimuth to pick the cut (defaults to elevation 0)
//   - pol (optional with a single published polarization)
func (s *Server) plotPolar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	model, err := s.model(r)
	if err != nil {
		s.writeJSONError(w, modelErrStatus(err), err.Error())
		return
	}
	q, err := magnitudesQuery(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Freq == nil {
		s.writeJSONError(w, http.StatusBadRequest, "polar plot needs a 'freq' parameter")
		return
	}

	// default cut: azimuth sweep across elevation 0
	angles := model.Azimuths()
	angleLabel := "azimuth"
	if q.Elevation == nil && q.Azimuth == nil {
		zero := 0.0
		q.Elevation = &zero
	} else if q.Azimuth != nil {
		angles = model.Elevations()
		angleLabel = "elevation"
	}

	mags, err := model.Magnitudes(q)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(mags) == 0 || len(mags) != len(angles) {
		s.writeJSONError(w, http.StatusNotFound, "no cut data for the requested pose")
		return
	}

	pts := plot.PolarPoints(angles, mags)
	data := make([]opts.ScatterData, len(pts))
	for i, p := range pts {
		data[i] = opts.ScatterData{Value: []interface{}{p.X, p.Y}}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("Pattern cut at %s (%s sweep)", units.FormatFrequency(*q.Freq), angleLabel),
		}),
		charts.WithInitializationOpts(opts.Initialization{Width: "700px", Height: "700px"}),
	)
	scatter.AddSeries("magnitude (dB, offset)", data)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := scatter.Render(w); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render failed: %v", err))
	}
}

// plotRectangular renders magnitude versus frequency at a fixed pose as
// an HTML line chart.
func (s *Server) plotRectangular(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	model, err := s.model(r)
	if err != nil {
		s.writeJSONError(w, modelErrStatus(err), err.Error())
		return
	}
	q, err := magnitudesQuery(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Freq != nil {
		s.writeJSONError(w, http.StatusBadRequest, "rectangular plot takes a pose, not a 'freq' parameter")
		return
	}

	mags, err := model.Magnitudes(q)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	freqs := model.Frequencies()
	if len(mags) == 0 || len(mags) != len(freqs) {
		s.writeJSONError(w, http.StatusNotFound, "no sweep data for the requested pose")
		return
	}

	xLabels := make([]string, len(freqs))
	data := make([]opts.LineData, len(mags))
	for i := range freqs {
		xLabels[i] = units.FormatFrequency(freqs[i])
		data[i] = opts.LineData{Value: mags[i]}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: pointTitle(q)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Magnitude (dB)"}),
	)
	line.SetXAxis(xLabels).AddSeries("magnitude", data)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(w); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render failed: %v", err))
	}
}

func pointTitle(q network.Query) string {
	az, el := 0.0, 0.0
	if q.Azimuth != nil {
		az = *q.Azimuth
	}
	if q.Elevation != nil {
		el = *q.Elevation
	}
	return fmt.Sprintf("Frequency response at az=%g el=%g", az, el)
}

// exportPNG writes a pattern cut to a PNG file and serves it. Takes the
// same parameters as /plot/polar.
func (s *Server) exportPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	model, err := s.model(r)
	if err != nil {
		s.writeJSONError(w, modelErrStatus(err), err.Error())
		return
	}
	q, err := magnitudesQuery(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Freq == nil {
		s.writeJSONError(w, http.StatusBadRequest, "PNG export needs a 'freq' parameter")
		return
	}
	if q.Elevation == nil && q.Azimuth == nil {
		zero := 0.0
		q.Elevation = &zero
	}

	angles := model.Azimuths()
	angleLabel := "Azimuth (deg)"
	if q.Azimuth != nil {
		angles = model.Elevations()
		angleLabel = "Elevation (deg)"
	}
	mags, err := model.Magnitudes(q)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(mags) == 0 || len(mags) != len(angles) {
		s.writeJSONError(w, http.StatusNotFound, "no cut data for the requested pose")
		return
	}

	dir, err := os.MkdirTemp("", "chamber-plot")
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.RemoveAll(dir)

	path, err := plot.WritePNG(dir, plot.Cut{
		Title:  fmt.Sprintf("Pattern cut at %s", units.FormatFrequency(*q.Freq)),
		XLabel: angleLabel,
		X:      angles,
		DB:     mags,
	})
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render failed: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}
