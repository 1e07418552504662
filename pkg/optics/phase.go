package optics

import (
	"math"

	"github.com/tissueoptics/nirmc/pkg/core"
)

// isotropicG is the anisotropy magnitude below which Henyey-Greenstein
// sampling degenerates numerically and the isotropic form is used instead
const isotropicG = 1e-6

// HenyeyGreenstein is the single-scattering phase function used for tissue,
// parameterized by the anisotropy factor g in [-1, 1]. g > 0 favors forward
// scattering; g = 0 is isotropic.
type HenyeyGreenstein struct {
	G float64
}

// SampleCosTheta draws a deflection-angle cosine from the phase function
// by inverting its CDF. sample must be in [0, 1).
func (hg HenyeyGreenstein) SampleCosTheta(sample float64) float64 {
	g := hg.G
	if math.Abs(g) < isotropicG {
		return 2*sample - 1
	}
	var temp float64
	// The denominator vanishes only for g=1 with sample=0, where the
	// distribution is a pure forward delta
	if denom := 1 - g + 2*g*sample; denom != 0 {
		temp = (1 - g*g) / denom
	}
	cosTheta := (1 + g*g - temp*temp) / (2 * g)
	// Inverse CDF can drift just outside [-1,1] in floating point
	return math.Max(-1, math.Min(1, cosTheta))
}

// PDF evaluates the phase function density over cos(theta)
func (hg HenyeyGreenstein) PDF(cosTheta float64) float64 {
	g := hg.G
	denom := 1 + g*g - 2*g*cosTheta
	return (1 - g*g) / (2 * denom * math.Sqrt(denom))
}

// SampleDirection rotates the unit direction d by a deflection angle drawn
// from the phase function and a uniform azimuth. sample.X drives the
// deflection, sample.Y the azimuth.
func (hg HenyeyGreenstein) SampleDirection(d core.Vec3, sample core.Vec2) core.Vec3 {
	cosTheta := hg.SampleCosTheta(sample.X)
	sinTheta := math.Sqrt(1 - cosTheta*cosTheta)

	psi := 2 * math.Pi * sample.Y
	cosPsi := math.Cos(psi)
	sinPsi := math.Sin(psi)

	if math.Abs(d.Z) > cosZero {
		// Travelling along z: the local frame is the lab frame
		uz := cosTheta
		if d.Z < 0 {
			uz = -cosTheta
		}
		return core.NewVec3(sinTheta*cosPsi, sinTheta*sinPsi, uz)
	}

	temp := math.Sqrt(1 - d.Z*d.Z)
	ux := sinTheta*(d.X*d.Z*cosPsi-d.Y*sinPsi)/temp + d.X*cosTheta
	uy := sinTheta*(d.Y*d.Z*cosPsi+d.X*sinPsi)/temp + d.Y*cosTheta
	uz := -sinTheta*cosPsi*temp + d.Z*cosTheta
	return core.NewVec3(ux, uy, uz)
}
