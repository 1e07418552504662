// Package analysis provides grouped-frequency statistics and
// goodness-of-fit testing for simulation output series. Samples are
// binned with Sturges' rule, summarized through their interval
// midpoints, and checked against Normal and Exponential models with
// Pearson chi-squared tests.
package analysis

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// alpha is the significance level shared by the confidence intervals
// and the Pearson tests.
const alpha = 0.05

// minExpected is the smallest expected frequency allowed in a Pearson
// interval. Sparser intervals are merged with their successors.
const minExpected = 5.0

// ErrDegenerateData reports a series that cannot be binned: fewer than
// two samples, or all samples equal.
var ErrDegenerateData = errors.New("analysis: need at least two distinct sample values")

// Histogram is a grouped-frequency table with equal-width intervals.
type Histogram struct {
	Edges     []float64 // len(Counts)+1 interval boundaries
	Midpoints []float64 // interval centers, one per count
	Counts    []int
}

// Interval is a two-sided 95% confidence interval.
type Interval struct {
	Low  float64
	High float64
}

// FitResult reports a Pearson chi-squared test of the grouped samples
// against one candidate distribution.
type FitResult struct {
	Distribution string
	ChiSquared   float64
	DOF          int
	PValue       float64
	Accepted     bool
}

// Report holds the grouped statistics for one sample series. Mean and
// Variance are computed from the interval midpoints, not the raw
// samples, so they carry the usual grouping error of about h²/12.
type Report struct {
	N    int
	Min  float64
	Max  float64
	Step float64

	Mean     float64
	Variance float64
	StdDev   float64

	MeanCI     Interval
	VarianceCI Interval

	Histogram Histogram

	Normal      FitResult
	Exponential FitResult
}

// Analyze bins the samples and derives grouped statistics, confidence
// intervals, and distribution fits. It returns ErrDegenerateData when
// the series has no spread to bin.
func Analyze(samples []float64) (*Report, error) {
	n := len(samples)
	if n < 2 {
		return nil, ErrDegenerateData
	}

	min, max := samples[0], samples[0]
	for _, v := range samples[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max <= min {
		return nil, ErrDegenerateData
	}

	// Sturges' rule for the interval step.
	h := (max - min) / (1.0 + 3.322*math.Log(float64(n)))

	hist := bin(samples, min, max, h)
	mean, variance := groupedMoments(hist)
	stdDev := math.Sqrt(variance)

	report := &Report{
		N:         n,
		Min:       min,
		Max:       max,
		Step:      h,
		Mean:      mean,
		Variance:  variance,
		StdDev:    stdDev,
		Histogram: hist,
	}

	// Mean CI from the Student t distribution, variance CI from the
	// chi-squared pivot, both at N-1 degrees of freedom.
	nu := float64(n - 1)
	tCrit := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: nu}.Quantile(1 - alpha/2)
	margin := tCrit * stdDev / math.Sqrt(float64(n))
	report.MeanCI = Interval{Low: mean - margin, High: mean + margin}

	chi2 := distuv.ChiSquared{K: nu}
	report.VarianceCI = Interval{
		Low:  nu * variance / chi2.Quantile(1-alpha/2),
		High: nu * variance / chi2.Quantile(alpha/2),
	}

	normal := distuv.Normal{Mu: mean, Sigma: stdDev}
	report.Normal = pearsonTest("Normal", hist, n, normal.CDF, 3)

	if mean > 0 {
		exponential := distuv.Exponential{Rate: 1 / mean}
		report.Exponential = pearsonTest("Exponential", hist, n, exponential.CDF, 2)
	} else {
		report.Exponential = FitResult{
			Distribution: "Exponential",
			ChiSquared:   math.NaN(),
			DOF:          1,
			PValue:       math.NaN(),
		}
	}

	return report, nil
}

// bin builds the grouped-frequency table. The first edge sits half a
// step below the minimum so the smallest sample lands on the first
// midpoint, and the edges overrun the maximum so every sample has a
// bin.
func bin(samples []float64, min, max, h float64) Histogram {
	start := min - h/2
	numBins := int(math.Floor((max-min)/h)) + 2

	hist := Histogram{
		Edges:     make([]float64, numBins+1),
		Midpoints: make([]float64, numBins),
		Counts:    make([]int, numBins),
	}
	for i := 0; i <= numBins; i++ {
		hist.Edges[i] = start + float64(i)*h
	}
	for i := 0; i < numBins; i++ {
		hist.Midpoints[i] = (hist.Edges[i] + hist.Edges[i+1]) / 2
	}
	for _, v := range samples {
		idx := int((v - start) / h)
		if idx < 0 {
			idx = 0
		} else if idx >= numBins {
			idx = numBins - 1
		}
		hist.Counts[idx]++
	}
	return hist
}

// groupedMoments computes the frequency-weighted mean and the unbiased
// frequency-weighted variance over the interval midpoints. The weights
// sum to N, so the variance denominator is N-1.
func groupedMoments(hist Histogram) (mean, variance float64) {
	weights := make([]float64, len(hist.Counts))
	for i, c := range hist.Counts {
		weights[i] = float64(c)
	}
	mean = stat.Mean(hist.Midpoints, weights)
	variance = stat.Variance(hist.Midpoints, weights)
	return mean, variance
}

// pearsonTest runs a Pearson chi-squared test of the observed counts
// against expected counts from cdf. Intervals are merged left to right
// until each expected count reaches minExpected; constraints is the
// number of degrees of freedom consumed by the candidate (1 for the
// total plus one per fitted parameter).
func pearsonTest(name string, hist Histogram, n int, cdf func(float64) float64, constraints int) FitResult {
	expected := make([]float64, len(hist.Counts))
	for i := range expected {
		expected[i] = float64(n) * (cdf(hist.Edges[i+1]) - cdf(hist.Edges[i]))
	}
	obs, exp := mergeIntervals(hist.Counts, expected)

	k := len(exp)
	dof := k - constraints
	if dof < 1 {
		dof = 1
	}
	result := FitResult{Distribution: name, DOF: dof}

	// Too few usable intervals leaves the statistic undefined.
	if k < constraints {
		result.ChiSquared = math.NaN()
		result.PValue = math.NaN()
		return result
	}

	statistic := 0.0
	for i := range exp {
		diff := obs[i] - exp[i]
		statistic += diff * diff / exp[i]
	}
	result.ChiSquared = statistic
	result.PValue = distuv.ChiSquared{K: float64(dof)}.Survival(statistic)
	result.Accepted = result.PValue >= alpha
	return result
}

// mergeIntervals pools adjacent intervals until each pooled expected
// count reaches minExpected. A sparse tail folds into the last pooled
// interval.
func mergeIntervals(counts []int, expected []float64) (obs, exp []float64) {
	var accObs, accExp float64
	for i, e := range expected {
		accObs += float64(counts[i])
		accExp += e
		if accExp >= minExpected {
			obs = append(obs, accObs)
			exp = append(exp, accExp)
			accObs, accExp = 0, 0
		}
	}
	if accExp > 0 && len(exp) > 0 {
		obs[len(obs)-1] += accObs
		exp[len(exp)-1] += accExp
	}
	return obs, exp
}
