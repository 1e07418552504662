package analysis

import (
	"math"
	"sort"
	"testing"
)

// testProfile builds a smooth decaying radial profile on the usual
// bin-center grid.
func testProfile(nr int, dr float64) (radii, rd []float64) {
	radii = make([]float64, nr)
	rd = make([]float64, nr)
	for i := 0; i < nr; i++ {
		radii[i] = (float64(i) + 0.5) * dr
		rd[i] = 0.2 * math.Exp(-1.5*radii[i])
	}
	return radii, rd
}

func TestInterpolateReflectance_RecoversKnots(t *testing.T) {
	radii, rd := testProfile(20, 0.2)

	// Sampling exactly on the tabulated radii must reproduce them.
	series, err := InterpolateReflectance(radii, rd, radii[0], radii[len(radii)-1], 0.2)
	if err != nil {
		t.Fatalf("interpolation failed: %v", err)
	}
	if len(series.Points) != len(radii) {
		t.Fatalf("expected %d points, got %d", len(radii), len(series.Points))
	}
	for i, p := range series.Points {
		if math.Abs(p.Distance-radii[i]) > 1e-9 {
			t.Errorf("point %d distance: expected %v, got %v", i, radii[i], p.Distance)
		}
		if math.Abs(p.Reflectance-rd[i]) > 1e-9 {
			t.Errorf("point %d value: expected %v, got %v", i, rd[i], p.Reflectance)
		}
	}
}

func TestInterpolateReflectance_Window(t *testing.T) {
	radii, rd := testProfile(20, 0.2)

	series, err := InterpolateReflectance(radii, rd, DefaultStartDistance, DefaultEndDistance, DefaultDistanceStep)
	if err != nil {
		t.Fatalf("interpolation failed: %v", err)
	}

	if len(series.Points) != 61 {
		t.Fatalf("expected 61 points over [0.5, 3.5] at 0.05, got %d", len(series.Points))
	}
	first := series.Points[0]
	last := series.Points[len(series.Points)-1]
	if math.Abs(first.Distance-0.5) > 1e-9 || math.Abs(last.Distance-3.5) > 1e-9 {
		t.Errorf("window spans [%v, %v], expected [0.5, 3.5]", first.Distance, last.Distance)
	}
}

func TestInterpolateReflectance_ZeroOutsideHull(t *testing.T) {
	radii, rd := testProfile(20, 0.2) // hull is [0.1, 3.9]

	series, err := InterpolateReflectance(radii, rd, 0.0, 4.2, 0.05)
	if err != nil {
		t.Fatalf("interpolation failed: %v", err)
	}
	for _, p := range series.Points {
		outside := p.Distance < radii[0]-1e-12 || p.Distance > radii[len(radii)-1]+1e-12
		if outside && p.Reflectance != 0 {
			t.Errorf("distance %v outside hull has value %v, expected 0", p.Distance, p.Reflectance)
		}
		if !outside && p.Reflectance <= 0 {
			t.Errorf("distance %v inside hull has non-positive value %v", p.Distance, p.Reflectance)
		}
	}
}

func TestInterpolateReflectance_MonotoneBetweenKnots(t *testing.T) {
	radii, rd := testProfile(20, 0.2)

	// Sample segment midpoints. On a monotone profile the interpolant
	// must stay between its bracketing knots.
	for i := 0; i < len(radii)-1; i++ {
		mid := (radii[i] + radii[i+1]) / 2
		series, err := InterpolateReflectance(radii, rd, mid, mid, 1.0)
		if err != nil {
			t.Fatalf("interpolation failed: %v", err)
		}
		v := series.Points[0].Reflectance
		if v > rd[i] || v < rd[i+1] {
			t.Errorf("midpoint %v value %v escapes [%v, %v]", mid, v, rd[i+1], rd[i])
		}
	}
}

func TestInterpolateReflectance_SortedSeries(t *testing.T) {
	radii, rd := testProfile(20, 0.2)

	series, err := InterpolateReflectance(radii, rd, 0.5, 3.5, 0.05)
	if err != nil {
		t.Fatalf("interpolation failed: %v", err)
	}

	if !sort.Float64sAreSorted(series.Sorted) {
		t.Error("Sorted series is not ascending")
	}
	if len(series.Sorted) != len(series.Points) {
		t.Fatalf("sorted length %d, points %d", len(series.Sorted), len(series.Points))
	}

	var sumPoints, sumSorted float64
	for i := range series.Points {
		sumPoints += series.Points[i].Reflectance
		sumSorted += series.Sorted[i]
	}
	if math.Abs(sumPoints-sumSorted) > 1e-12 {
		t.Error("Sorted is not a permutation of the point values")
	}

	// Sorting must not disturb the distance-ordered view.
	values := series.Values()
	for i := 1; i < len(values); i++ {
		if values[i] > values[i-1] {
			t.Errorf("decaying profile should sample decreasing: value %d rose", i)
		}
	}
}

func TestInterpolateReflectance_Validation(t *testing.T) {
	radii, rd := testProfile(20, 0.2)

	cases := []struct {
		name  string
		radii []float64
		rd    []float64
		start float64
		end   float64
		step  float64
	}{
		{"LengthMismatch", radii, rd[:10], 0.5, 3.5, 0.05},
		{"TooFewPoints", radii[:1], rd[:1], 0.5, 3.5, 0.05},
		{"NonIncreasingRadii", []float64{0.1, 0.1, 0.3}, []float64{1, 2, 3}, 0.5, 3.5, 0.05},
		{"ZeroStep", radii, rd, 0.5, 3.5, 0},
		{"NegativeStep", radii, rd, 0.5, 3.5, -0.1},
		{"ReversedWindow", radii, rd, 3.5, 0.5, 0.05},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := InterpolateReflectance(tc.radii, tc.rd, tc.start, tc.end, tc.step); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
