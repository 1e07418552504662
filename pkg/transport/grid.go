package transport

import "math"

// GridSpec configures the spatial recording grids. Bin widths are in cm.
type GridSpec struct {
	DR float64 // radial bin width
	DZ float64 // depth bin width
	NR int     // number of radial bins
	NZ int     // number of depth bins
}

// DefaultGridSpec returns the standard recording grid: 20 radial bins of
// 0.2 cm and 10 depth bins of 0.2 cm.
func DefaultGridSpec() GridSpec {
	return GridSpec{DR: 0.2, DZ: 0.2, NR: 20, NZ: 10}
}

// RadialRecorder accumulates spatially resolved weight during histories:
// diffuse reflectance and transmittance by exit radius, absorption by
// depth. Events past the outermost bin are folded into it, so grid totals
// stay consistent with the dataset totals. Recorders are worker-local;
// Merge combines them after the run.
type RadialRecorder struct {
	spec GridSpec
	rd   []float64 // reflected weight per radial bin
	tt   []float64 // transmitted weight per radial bin
	az   []float64 // absorbed weight per depth bin
}

// NewRadialRecorder creates an empty recorder for the given grid
func NewRadialRecorder(spec GridSpec) *RadialRecorder {
	return &RadialRecorder{
		spec: spec,
		rd:   make([]float64, spec.NR),
		tt:   make([]float64, spec.NR),
		az:   make([]float64, spec.NZ),
	}
}

// RecordDeposit implements Recorder for absorption events
func (r *RadialRecorder) RecordDeposit(z, weight float64) {
	i := int(z / r.spec.DZ)
	if i >= r.spec.NZ {
		i = r.spec.NZ - 1
	}
	if i < 0 {
		i = 0
	}
	r.az[i] += weight
}

// RecordExit implements Recorder for escape events
func (r *RadialRecorder) RecordExit(fate Fate, radius, weight float64) {
	i := int(radius / r.spec.DR)
	if i >= r.spec.NR {
		i = r.spec.NR - 1
	}
	switch fate {
	case FateReflected:
		r.rd[i] += weight
	case FateTransmitted:
		r.tt[i] += weight
	}
}

// Merge adds another recorder's accumulations into this one. The grids
// must share a spec.
func (r *RadialRecorder) Merge(other *RadialRecorder) {
	for i, w := range other.rd {
		r.rd[i] += w
	}
	for i, w := range other.tt {
		r.tt[i] += w
	}
	for i, w := range other.az {
		r.az[i] += w
	}
}

// Profiles are the normalized spatial distributions of a completed run.
// Rd and Tt are per unit area (1/cm^2) over annular exit bins; Az is per
// unit depth (1/cm).
type Profiles struct {
	Radii []float64 // bin-center radii for Rd and Tt
	Rd    []float64 // diffuse reflectance per area
	Tt    []float64 // transmittance per area
	Depth []float64 // bin-center depths for Az
	Az    []float64 // absorbed energy density per depth
}

// Profiles normalizes the raw grids by photon count and bin geometry.
// Radial bins divide by the annulus area 2*pi*(i+1/2)*dr^2; depth bins
// divide by the bin height.
func (r *RadialRecorder) Profiles(totalPhotons int) *Profiles {
	p := &Profiles{
		Radii: make([]float64, r.spec.NR),
		Rd:    make([]float64, r.spec.NR),
		Tt:    make([]float64, r.spec.NR),
		Depth: make([]float64, r.spec.NZ),
		Az:    make([]float64, r.spec.NZ),
	}
	if totalPhotons == 0 {
		return p
	}
	n := float64(totalPhotons)

	for i := 0; i < r.spec.NR; i++ {
		center := (float64(i) + 0.5) * r.spec.DR
		p.Radii[i] = center
		area := 2 * math.Pi * center * r.spec.DR
		p.Rd[i] = r.rd[i] / (area * n)
		p.Tt[i] = r.tt[i] / (area * n)
	}
	for i := 0; i < r.spec.NZ; i++ {
		p.Depth[i] = (float64(i) + 0.5) * r.spec.DZ
		p.Az[i] = r.az[i] / (r.spec.DZ * n)
	}
	return p
}
