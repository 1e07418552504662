package analysis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// Defaults for the reflectance analysis window, in centimeters.
const (
	DefaultStartDistance = 0.5
	DefaultEndDistance   = 3.5
	DefaultDistanceStep  = 0.05
)

// ReflectancePoint is one sampled (distance, reflectance) pair.
type ReflectancePoint struct {
	Distance    float64
	Reflectance float64
}

// ReflectanceSeries is a diffuse-reflectance profile resampled onto an
// even distance grid.
type ReflectanceSeries struct {
	Points []ReflectancePoint
	// Sorted holds the same reflectance values in ascending order,
	// the form handed to Analyze.
	Sorted []float64
}

// Values returns the reflectance values in distance order.
func (s *ReflectanceSeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Reflectance
	}
	return out
}

// InterpolateReflectance resamples the radial profile rd, tabulated at
// the given radii, onto distances from start to end inclusive at the
// given step. Interpolation is monotone piecewise-cubic
// (Fritsch-Butland); distances outside the tabulated range yield zero.
func InterpolateReflectance(radii, rd []float64, start, end, step float64) (*ReflectanceSeries, error) {
	if len(radii) != len(rd) {
		return nil, fmt.Errorf("analysis: radii and reflectance lengths differ (%d vs %d)", len(radii), len(rd))
	}
	if len(radii) < 2 {
		return nil, fmt.Errorf("analysis: need at least two profile points, got %d", len(radii))
	}
	for i := 1; i < len(radii); i++ {
		if radii[i] <= radii[i-1] {
			return nil, fmt.Errorf("analysis: radii must be strictly increasing at index %d", i)
		}
	}
	if step <= 0 {
		return nil, fmt.Errorf("analysis: step must be positive, got %v", step)
	}
	if end < start {
		return nil, fmt.Errorf("analysis: end %v precedes start %v", end, start)
	}

	var fb interp.FritschButland
	if err := fb.Fit(radii, rd); err != nil {
		return nil, fmt.Errorf("analysis: fitting reflectance profile: %w", err)
	}

	count := int(math.Floor((end-start)/step+1e-9)) + 1
	distances := make([]float64, count)
	if count == 1 {
		distances[0] = start
	} else {
		floats.Span(distances, start, start+float64(count-1)*step)
	}

	series := &ReflectanceSeries{Points: make([]ReflectancePoint, count)}
	lo, hi := radii[0], radii[len(radii)-1]
	for i, d := range distances {
		v := 0.0
		// Tolerate rounding right at the hull edges.
		if d >= lo-1e-9 && d <= hi+1e-9 {
			v = fb.Predict(math.Min(math.Max(d, lo), hi))
		}
		series.Points[i] = ReflectancePoint{Distance: d, Reflectance: v}
	}

	series.Sorted = series.Values()
	sort.Float64s(series.Sorted)
	return series, nil
}
