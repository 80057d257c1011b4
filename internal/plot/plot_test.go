package plot

import (
	"math"
	"os"
	"testing"
)

func TestWritePNG(t *testing.T) {
	dir := t.TempDir()

	angles := make([]float64, 37)
	db := make([]float64, 37)
	for i := range angles {
		angles[i] = float64(i*10 - 180)
		db[i] = -20 * math.Abs(angles[i]) / 180
	}

	path, err := WritePNG(dir, Cut{
		Title:  "E-plane cut 2.4 GHz",
		XLabel: "Azimuth (deg)",
		X:      angles,
		DB:     db,
	})
	if err != nil {
		t.Fatalf("WritePNG: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.Size() == 0 {
		t.Error("wrote empty PNG")
	}
}

func TestWritePNGRejectsBadCuts(t *testing.T) {
	dir := t.TempDir()

	if _, err := WritePNG(dir, Cut{Title: "empty"}); err == nil {
		t.Error("empty cut accepted")
	}
	if _, err := WritePNG(dir, Cut{Title: "ragged", X: []float64{1, 2}, DB: []float64{1}}); err == nil {
		t.Error("ragged cut accepted")
	}
}

func TestPolarPoints(t *testing.T) {
	pts := PolarPoints([]float64{0, 90}, []float64{0, -10})

	// the weakest point collapses to the origin
	if pts[1].X != 0 || pts[1].Y != 0 {
		t.Errorf("weakest point at (%g, %g), want origin", pts[1].X, pts[1].Y)
	}
	// the strongest point sits on the positive x axis at radius 10
	if math.Abs(pts[0].X-10) > 1e-9 || math.Abs(pts[0].Y) > 1e-9 {
		t.Errorf("boresight point at (%g, %g), want (10, 0)", pts[0].X, pts[0].Y)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"E-plane cut 2.4 GHz", "E-plane_cut_24_GHz"},
		{"///", "cut"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in); got != tt.want {
			t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
