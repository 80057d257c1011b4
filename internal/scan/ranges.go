package scan

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Range is an inclusive angular extent walked in fixed steps, in degrees.
type Range struct {
	Start float64 `json:"start"`
	Stop  float64 `json:"stop"`
	Step  float64 `json:"step"`
}

// Validate checks that the range can be expanded.
func (r Range) Validate() error {
	if r.Step == 0 {
		return fmt.Errorf("range step cannot be zero")
	}
	if r.Stop != r.Start && math.Signbit(r.Stop-r.Start) != math.Signbit(r.Step) {
		return fmt.Errorf("step %g walks away from stop %g", r.Step, r.Stop)
	}
	return nil
}

// Values expands the range into the visited angles, endpoints included.
// The stop angle is included only when it lands on a whole step.
func (r Range) Values() []float64 {
	if r.Start == r.Stop {
		return []float64{r.Start}
	}
	n := int(math.Floor((r.Stop-r.Start)/r.Step + 1e-9))
	if n < 0 {
		return []float64{r.Start}
	}
	dst := make([]float64, n+1)
	return floats.Span(dst, r.Start, r.Start+float64(n)*r.Step)
}
