// Package plot renders radiation-pattern cuts to PNG files for report
// export. Interactive plots are served by the API as go-echarts pages;
// this package covers the file outputs.
package plot

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Cut is one 1-D slice of the pattern: magnitude in dB versus angle in
// degrees, or versus frequency in Hz.
type Cut struct {
	Title  string
	XLabel string
	X      []float64
	DB     []float64
}

// WritePNG renders the cut as a line plot into dir, returning the path
// of the written file.
func WritePNG(dir string, c Cut) (string, error) {
	if len(c.X) != len(c.DB) {
		return "", fmt.Errorf("cut has %d x values for %d magnitudes", len(c.X), len(c.DB))
	}
	if len(c.X) == 0 {
		return "", fmt.Errorf("cut %q has no points", c.Title)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = c.XLabel
	p.Y.Label.Text = "Magnitude (dB)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(c.X))
	for i := range c.X {
		pts[i].X = c.X[i]
		pts[i].Y = c.DB[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return "", err
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(line)

	out := filepath.Join(dir, sanitize(c.Title)+".png")
	if err := p.Save(8*vg.Inch, 5*vg.Inch, out); err != nil {
		return "", err
	}
	return out, nil
}

// PolarPoints projects an angle/dB cut onto cartesian coordinates for a
// polar-style scatter, offsetting magnitudes so the weakest point sits at
// the origin.
func PolarPoints(angles, db []float64) plotter.XYs {
	floor := math.Inf(1)
	for _, v := range db {
		if v < floor {
			floor = v
		}
	}
	pts := make(plotter.XYs, len(angles))
	for i := range angles {
		r := db[i] - floor
		theta := angles[i] * math.Pi / 180
		pts[i].X = r * math.Cos(theta)
		pts[i].Y = r * math.Sin(theta)
	}
	return pts
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		case r == ' ':
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "cut"
	}
	return string(out)
}
