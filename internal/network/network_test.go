package network

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func ptr(v float64) *float64 { return &v }

func testSweep(az, el float64, resp ...complex128) Sweep {
	freqs := make([]float64, len(resp))
	for i := range freqs {
		freqs[i] = 1e9 + float64(i)*1e9
	}
	return Sweep{Freqs: freqs, Response: resp, Azimuth: az, Elevation: el}
}

func mustAppend(t *testing.T, m *Model, s Sweep) *Model {
	t.Helper()
	next, err := m.Append(s)
	if err != nil {
		t.Fatalf("Append(az=%g el=%g): %v", s.Azimuth, s.Elevation, err)
	}
	return next
}

func TestEmptyModel(t *testing.T) {
	m := NewModel()

	if got := m.Frequencies(); len(got) != 0 {
		t.Errorf("Frequencies() on empty model = %v, want empty", got)
	}
	if got := m.Azimuths(); len(got) != 0 {
		t.Errorf("Azimuths() on empty model = %v, want empty", got)
	}
	if got := m.Elevations(); len(got) != 0 {
		t.Errorf("Elevations() on empty model = %v, want empty", got)
	}

	mags, err := m.Magnitudes(Query{})
	if err != nil {
		t.Fatalf("Magnitudes() on empty model: %v", err)
	}
	if len(mags) != 0 {
		t.Errorf("Magnitudes() on empty model = %v, want empty", mags)
	}

	// even a fully keyed query is answerable on an empty model
	mags, err = m.Magnitudes(Query{Freq: ptr(1e9), Azimuth: ptr(10), Elevation: ptr(0)})
	if err != nil {
		t.Fatalf("keyed Magnitudes() on empty model: %v", err)
	}
	if len(mags) != 0 {
		t.Errorf("keyed Magnitudes() on empty model = %v, want empty", mags)
	}
}

func TestAppendPreservesOrderAndKeys(t *testing.T) {
	poses := []struct{ az, el float64 }{
		{0, 0}, {10, 0}, {20, 0}, {0, 10}, {0, 20},
	}

	m := NewModel()
	for i, p := range poses {
		m = mustAppend(t, m, testSweep(p.az, p.el, complex(float64(i+1), 0), complex(0.5, 0)))
	}

	if m.Len() != len(poses) {
		t.Fatalf("Len() = %d, want %d", m.Len(), len(poses))
	}
	for i, p := range poses {
		got := m.Select(Filter{Azimuth: ptr(p.az), Elevation: ptr(p.el)})
		if len(got) != 1 {
			t.Fatalf("Select(az=%g, el=%g) matched %d sweeps, want 1", p.az, p.el, len(got))
		}
		if got[0].Response[0] != complex(float64(i+1), 0) {
			t.Errorf("Select(az=%g, el=%g) returned wrong record", p.az, p.el)
		}
	}
}

func TestAxisExtraction(t *testing.T) {
	// 3x3 grid of poses; the azimuth axis comes from the elevation==0 row
	// and the elevation axis from the azimuth==0 column.
	m := NewModel()
	for _, el := range []float64{-10, 0, 10} {
		for _, az := range []float64{-20, 0, 20} {
			m = mustAppend(t, m, testSweep(az, el, complex(1, 0)))
		}
	}

	if diff := cmp.Diff([]float64{-20, 0, 20}, m.Azimuths()); diff != "" {
		t.Errorf("Azimuths() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{-10, 0, 10}, m.Elevations()); diff != "" {
		t.Errorf("Elevations() mismatch (-want +got):\n%s", diff)
	}
}

func TestMagnitudesVersusAngle(t *testing.T) {
	// fixed frequency across an azimuth cut: one dB value per matching pose
	m := NewModel()
	responses := []complex128{1, 0.8, 0.5}
	for i, az := range []float64{0, 10, 20} {
		m = mustAppend(t, m, testSweep(az, 0, responses[i], complex(0.1, 0)))
	}

	mags, err := m.Magnitudes(Query{Freq: ptr(1e9), Elevation: ptr(0)})
	if err != nil {
		t.Fatalf("Magnitudes: %v", err)
	}
	if len(mags) != len(responses) {
		t.Fatalf("got %d magnitudes, want %d", len(mags), len(responses))
	}
	for i, r := range responses {
		want := 20 * math.Log10(real(r))
		if math.Abs(mags[i]-want) > 1e-9 {
			t.Errorf("mags[%d] = %g, want %g", i, mags[i], want)
		}
	}
}

func TestMagnitudesVersusFrequency(t *testing.T) {
	m := NewModel()
	m = mustAppend(t, m, testSweep(0, 0, complex(1, 0), complex(0.5, 0), complex(0.25, 0)))
	m = mustAppend(t, m, testSweep(10, 0, complex(0.9, 0), complex(0.45, 0), complex(0.2, 0)))

	mags, err := m.Magnitudes(Query{Azimuth: ptr(10), Elevation: ptr(0)})
	if err != nil {
		t.Fatalf("Magnitudes: %v", err)
	}
	if len(mags) != 3 {
		t.Fatalf("got %d magnitudes, want full grid length 3", len(mags))
	}
	want := []float64{
		20 * math.Log10(0.9),
		20 * math.Log10(0.45),
		20 * math.Log10(0.2),
	}
	for i := range want {
		if math.Abs(mags[i]-want[i]) > 1e-9 {
			t.Errorf("mags[%d] = %g, want %g", i, mags[i], want[i])
		}
	}
}

func TestZeroAngleIsARealFilter(t *testing.T) {
	// pose (0,0) must be selectable through the query; zero is not "absent"
	m := NewModel()
	m = mustAppend(t, m, testSweep(0, 0, complex(1, 0)))
	m = mustAppend(t, m, testSweep(10, 0, complex(0.5, 0)))

	mags, err := m.Magnitudes(Query{Freq: ptr(1e9), Azimuth: ptr(0), Elevation: ptr(0)})
	if err != nil {
		t.Fatalf("Magnitudes: %v", err)
	}
	if len(mags) != 1 {
		t.Fatalf("az=0 el=0 query matched %d records, want 1", len(mags))
	}
	if math.Abs(mags[0]) > 1e-9 {
		t.Errorf("mags[0] = %g, want 0 dB", mags[0])
	}
}

func TestAppendIsPersistent(t *testing.T) {
	m := NewModel()
	m = mustAppend(t, m, testSweep(0, 0, complex(1, 0)))
	before := m.Len()

	next := mustAppend(t, m, testSweep(10, 0, complex(0.5, 0)))

	if m.Len() != before {
		t.Errorf("receiver mutated: Len() = %d, want %d", m.Len(), before)
	}
	if next.Len() != before+1 {
		t.Errorf("new model Len() = %d, want %d", next.Len(), before+1)
	}
}

func TestAppendOverwritesDuplicatePose(t *testing.T) {
	m := NewModel()
	m = mustAppend(t, m, testSweep(0, 0, complex(1, 0)))
	m = mustAppend(t, m, testSweep(10, 0, complex(0.5, 0)))

	// retry at an already-visited pose replaces the record in place
	m = mustAppend(t, m, testSweep(0, 0, complex(0.25, 0)))

	if m.Len() != 2 {
		t.Fatalf("Len() after re-append = %d, want 2", m.Len())
	}
	if diff := cmp.Diff([]float64{0, 10}, m.Azimuths()); diff != "" {
		t.Errorf("Azimuths() after re-append (-want +got):\n%s", diff)
	}
	if got := m.At(0).Response[0]; got != complex(0.25, 0) {
		t.Errorf("record at pose (0,0) = %v, want overwritten value 0.25", got)
	}
}

func TestAppendRejectsMismatchedGrid(t *testing.T) {
	m := NewModel()
	m = mustAppend(t, m, Sweep{
		Freqs:    []float64{1e9, 2e9},
		Response: []complex128{1, 1},
	})

	_, err := m.Append(Sweep{
		Freqs:    []float64{1e9, 3e9},
		Response: []complex128{1, 1},
		Azimuth:  10,
	})
	if !errors.Is(err, ErrGridMismatch) {
		t.Errorf("Append with different grid: err = %v, want ErrGridMismatch", err)
	}

	_, err = m.Append(Sweep{
		Freqs:    []float64{1e9, 2e9},
		Response: []complex128{1},
		Azimuth:  20,
	})
	if !errors.Is(err, ErrGridMismatch) {
		t.Errorf("Append with short response: err = %v, want ErrGridMismatch", err)
	}
}

func TestZeroResponseClampsAtFloor(t *testing.T) {
	m := mustAppend(t, NewModel(), testSweep(0, 0, 0, complex(1e-12, 0)))

	mags, err := m.Magnitudes(Query{Azimuth: ptr(0), Elevation: ptr(0)})
	if err != nil {
		t.Fatalf("Magnitudes: %v", err)
	}
	if len(mags) != 2 {
		t.Fatalf("got %d magnitudes, want 2", len(mags))
	}
	for i, v := range mags {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			t.Errorf("magnitude[%d] = %v, want finite", i, v)
		}
		if v != dbFloor {
			t.Errorf("magnitude[%d] = %v, want clamped to %v", i, v, dbFloor)
		}
	}
}

func TestMagnitudesUnknownFrequency(t *testing.T) {
	m := NewModel()
	m = mustAppend(t, m, testSweep(0, 0, complex(1, 0), complex(0.5, 0)))

	_, err := m.Magnitudes(Query{Freq: ptr(1.5e9)})
	if !errors.Is(err, ErrFreqNotFound) {
		t.Errorf("off-grid frequency: err = %v, want ErrFreqNotFound", err)
	}
}

func TestScenarioThreeRecords(t *testing.T) {
	m := NewModel()
	grid := []float64{1e9, 2e9}
	m = mustAppend(t, m, Sweep{Freqs: grid, Response: []complex128{1, 0.5}, Azimuth: 0, Elevation: 0})
	m = mustAppend(t, m, Sweep{Freqs: grid, Response: []complex128{0.8, 0.4}, Azimuth: 10, Elevation: 0})
	m = mustAppend(t, m, Sweep{Freqs: grid, Response: []complex128{0.9, 0.3}, Azimuth: 0, Elevation: 10})

	if diff := cmp.Diff([]float64{0, 10}, m.Azimuths()); diff != "" {
		t.Errorf("Azimuths() (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0, 10}, m.Elevations()); diff != "" {
		t.Errorf("Elevations() (-want +got):\n%s", diff)
	}

	mags, err := m.Magnitudes(Query{Freq: ptr(1e9), Elevation: ptr(0)})
	if err != nil {
		t.Fatalf("Magnitudes: %v", err)
	}
	want := []float64{0, 20 * math.Log10(0.8)}
	if len(mags) != len(want) {
		t.Fatalf("got %d magnitudes, want %d", len(mags), len(want))
	}
	for i := range want {
		if math.Abs(mags[i]-want[i]) > 1e-3 {
			t.Errorf("mags[%d] = %g, want %g", i, mags[i], want[i])
		}
	}
	if math.Abs(mags[1]-(-1.938)) > 1e-3 {
		t.Errorf("mags[1] = %g, want approx -1.938", mags[1])
	}
}
